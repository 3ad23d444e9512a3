// Package libgit2 implements backend.Backend on top of libgit2 through the
// pkg/gitlib wrapper.
package libgit2

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
	"github.com/Sumatoshi-tech/gitlines/pkg/gitlib"
)

// Kind is the name the backend is registered under.
const Kind = "libgit2"

func init() {
	backend.Register(Kind, func(path string, opts backend.Options) (backend.Backend, error) {
		return Open(path, opts)
	})
}

// Backend reads history through libgit2. Object lookups are serialized on a
// single repository handle.
type Backend struct {
	mu   sync.Mutex
	repo *gitlib.Repository
	opts backend.Options
}

// Open opens the repository at path.
func Open(path string, opts backend.Options) (*Backend, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, backend.Unavailable("open "+path, err)
	}

	return &Backend{repo: repo, opts: opts}, nil
}

// Commits implements backend.Backend.
func (b *Backend) Commits(ctx context.Context) (backend.CommitIter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	iter, err := b.repo.Log(gitlib.LogOptions{
		Revision:    b.opts.RevisionOrHead(),
		FirstParent: b.opts.FirstParent,
	})
	if err != nil {
		return nil, backend.Unavailable("list commits", err)
	}

	return &commitIter{ctx: ctx, mu: &b.mu, iter: iter}, nil
}

// Blobs implements backend.Backend.
func (b *Backend) Blobs(ctx context.Context, commit backend.Commit) (backend.BlobIter, error) {
	hash, err := gitlib.ParseHash(commit.TreeID)
	if err != nil {
		return nil, backend.Unavailable("list tree", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tree, err := b.repo.LookupTree(hash)
	if err != nil {
		return nil, backend.Unavailable("list tree", err)
	}
	defer tree.Free()

	var blobs []backend.Blob

	err = tree.WalkBlobs(func(path string, id gitlib.Hash) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		blobs = append(blobs, backend.Blob{ID: id.String(), Name: path})

		return nil
	})
	if err != nil {
		return nil, backend.Unavailable("list tree "+commit.TreeID, err)
	}

	return backend.BlobSlice(blobs), nil
}

// CountLines implements backend.Backend.
func (b *Backend) CountLines(ctx context.Context, blob backend.Blob) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	hash, err := gitlib.ParseHash(blob.ID)
	if err != nil {
		return 0, backend.Unavailable("read blob", err)
	}

	b.mu.Lock()
	obj, err := b.repo.LookupBlob(hash)
	b.mu.Unlock()

	if err != nil {
		return 0, backend.Unavailable("read blob", err)
	}
	defer obj.Free()

	return backend.CountLines(obj.Contents()), nil
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.repo.Free()

	return nil
}

type commitIter struct {
	ctx  context.Context
	mu   *sync.Mutex
	iter *gitlib.CommitIter
}

func (it *commitIter) Next() (backend.Commit, error) {
	if err := it.ctx.Err(); err != nil {
		return backend.Commit{}, err
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	commit, err := it.iter.Next()
	if errors.Is(err, io.EOF) {
		return backend.Commit{}, io.EOF
	}

	if err != nil {
		return backend.Commit{}, backend.Unavailable("walk history", err)
	}
	defer commit.Free()

	return backend.Commit{
		ID:     commit.Hash().String(),
		TreeID: commit.TreeHash().String(),
		When:   commit.Author().When,
	}, nil
}

func (it *commitIter) Close() {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.iter.Close()
}
