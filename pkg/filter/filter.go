// Package filter decides which commits and blobs contribute to a line count.
//
// A filter is either stateless, a pure function of its input, or stateful,
// remembering earlier inputs within one traversal. Stateful filters implement
// Stateful and are reset by Pipeline.Reset before every run, so their history
// never leaks from one run into the next.
package filter

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
)

// ErrFilter wraps any failure raised by a filter. It aborts the run.
var ErrFilter = errors.New("filter failed")

// CommitFilter decides whether a commit is reported.
type CommitFilter interface {
	IncludeCommit(commit backend.Commit) (bool, error)
}

// BlobFilter decides whether a blob contributes to its commit's total.
type BlobFilter interface {
	IncludeBlob(blob backend.Blob) (bool, error)
}

// Stateful is implemented by filters that keep history across calls.
type Stateful interface {
	// Reset forgets everything seen so far.
	Reset()
}

// CommitFunc adapts a plain predicate to CommitFilter.
type CommitFunc func(commit backend.Commit) bool

// IncludeCommit implements CommitFilter.
func (f CommitFunc) IncludeCommit(commit backend.Commit) (bool, error) {
	return f(commit), nil
}

// BlobFunc adapts a plain predicate to BlobFilter.
type BlobFunc func(blob backend.Blob) bool

// IncludeBlob implements BlobFilter.
func (f BlobFunc) IncludeBlob(blob backend.Blob) (bool, error) {
	return f(blob), nil
}

// Pipeline pairs a commit filter with a blob filter. A nil member includes
// everything.
type Pipeline struct {
	Commit CommitFilter
	Blob   BlobFilter
}

// IncludeCommit runs the commit filter. Errors wrap ErrFilter.
func (p Pipeline) IncludeCommit(commit backend.Commit) (bool, error) {
	if p.Commit == nil {
		return true, nil
	}

	ok, err := p.Commit.IncludeCommit(commit)
	if err != nil {
		return false, wrap("commit "+commit.ID, err)
	}

	return ok, nil
}

// IncludeBlob runs the blob filter. Errors wrap ErrFilter.
func (p Pipeline) IncludeBlob(blob backend.Blob) (bool, error) {
	if p.Blob == nil {
		return true, nil
	}

	ok, err := p.Blob.IncludeBlob(blob)
	if err != nil {
		return false, wrap("blob "+blob.Name, err)
	}

	return ok, nil
}

// Reset resets every stateful member.
func (p Pipeline) Reset() {
	reset(p.Commit)
	reset(p.Blob)
}

func reset(f any) {
	if s, ok := f.(Stateful); ok {
		s.Reset()
	}
}

func wrap(what string, err error) error {
	if errors.Is(err, ErrFilter) {
		return err
	}

	return fmt.Errorf("%w: %s: %w", ErrFilter, what, err)
}

// AllCommits accepts a commit only if every filter does. Evaluation stops at
// the first rejection, so later stateful filters only see commits the earlier
// ones accepted.
type AllCommits []CommitFilter

// IncludeCommit implements CommitFilter.
func (all AllCommits) IncludeCommit(commit backend.Commit) (bool, error) {
	for _, f := range all {
		ok, err := f.IncludeCommit(commit)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

// Reset implements Stateful.
func (all AllCommits) Reset() {
	for _, f := range all {
		reset(f)
	}
}

// AllBlobs accepts a blob only if every filter does.
type AllBlobs []BlobFilter

// IncludeBlob implements BlobFilter.
func (all AllBlobs) IncludeBlob(blob backend.Blob) (bool, error) {
	for _, f := range all {
		ok, err := f.IncludeBlob(blob)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

// Reset implements Stateful.
func (all AllBlobs) Reset() {
	for _, f := range all {
		reset(f)
	}
}
