// Package backend defines the repository access contract consumed by the
// line-count engine and the types it produces.
//
// A Backend yields commits most-recent-first by committer time, constrained
// so that a commit is never yielded before any of its children, even when
// clocks were skewed (git log --date-order). Stateful commit filters that
// keep "first match wins" history rely on this order.
package backend

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ErrUnavailable is returned when the repository cannot be opened or history,
// trees or blob content cannot be resolved. It is fatal for a run.
var ErrUnavailable = errors.New("repository backend unavailable")

// ErrUnknownKind is returned by Open for an unregistered backend name.
var ErrUnknownKind = errors.New("unknown backend")

// DefaultRevision is the revision history is listed from when none is given.
const DefaultRevision = "HEAD"

// Commit is an immutable history entry.
type Commit struct {
	// ID is the commit hash.
	ID string
	// TreeID identifies the commit's file snapshot.
	TreeID string
	// When is the author timestamp.
	When time.Time
}

// Blob is a file snapshot inside a commit's tree.
type Blob struct {
	// ID is the content-addressed blob hash. Same content, same ID.
	ID string
	// Name is the slash-separated path of the blob within the tree.
	Name string
}

// CommitIter yields commits. Next returns io.EOF once exhausted.
type CommitIter interface {
	Next() (Commit, error)
	Close()
}

// BlobIter yields the blobs of one tree. Next returns io.EOF once exhausted.
type BlobIter interface {
	Next() (Blob, error)
	Close()
}

// Backend exposes immutable history data. It does no caching and no filtering.
type Backend interface {
	// Commits lists the reachable history most-recent-first. The iterator is
	// finite and cannot be restarted.
	Commits(ctx context.Context) (CommitIter, error)
	// Blobs lists every blob of the commit's tree, recursively.
	Blobs(ctx context.Context, commit Commit) (BlobIter, error)
	// CountLines returns the number of line terminators in the blob content.
	CountLines(ctx context.Context, blob Blob) (int64, error)
	// Close releases the repository handle.
	Close() error
}

// Options configures how a backend lists history.
type Options struct {
	// Revision is the starting point of the walk. Empty means HEAD.
	Revision string
	// FirstParent follows only the first parent of merge commits.
	FirstParent bool
}

// RevisionOrHead returns the configured revision, or HEAD when unset.
func (o Options) RevisionOrHead() string {
	if o.Revision == "" {
		return DefaultRevision
	}

	return o.Revision
}

// OpenFunc opens a repository at path.
type OpenFunc func(path string, opts Options) (Backend, error)

var registry = map[string]OpenFunc{}

// Register makes a backend implementation available to Open under name.
// It is meant to be called from init functions of implementation packages.
func Register(name string, open OpenFunc) {
	registry[name] = open
}

// Kinds returns the registered backend names.
func Kinds() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Open opens the repository at path with the backend registered as kind.
func Open(kind, path string, opts Options) (Backend, error) {
	open, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	return open(path, opts)
}

// Unavailable wraps err as an ErrUnavailable failure of the named operation.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
