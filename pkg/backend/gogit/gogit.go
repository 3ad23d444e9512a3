// Package gogit implements backend.Backend in pure Go on go-git.
package gogit

import (
	"container/heap"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
)

// Kind is the name the backend is registered under.
const Kind = "gogit"

// ErrInvalidID is returned for object IDs that are not 40 hex digits.
var ErrInvalidID = errors.New("invalid object id")

const hashHexLen = 40

func init() {
	backend.Register(Kind, func(path string, opts backend.Options) (backend.Backend, error) {
		return Open(path, opts)
	})
}

// Backend reads history with go-git. Object access goes through one storer
// and is serialized.
type Backend struct {
	mu   sync.Mutex
	repo *git.Repository
	opts backend.Options
}

// Open opens the repository at path.
func Open(path string, opts backend.Options) (*Backend, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, backend.Unavailable("open "+path, err)
	}

	return &Backend{repo: repo, opts: opts}, nil
}

// Commits implements backend.Backend. Commits are ordered by committer time,
// newest first, but never before any of their children, like
// git log --date-order. With FirstParent only first parents are followed.
// The full history is loaded before the first commit is returned.
func (b *Backend) Commits(ctx context.Context) (backend.CommitIter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rev := b.opts.RevisionOrHead()

	start, err := b.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, backend.Unavailable("resolve "+rev, err)
	}

	if b.opts.FirstParent {
		return &firstParentIter{ctx: ctx, b: b, next: *start}, nil
	}

	commits, err := dateOrder(ctx, b.repo, *start)
	if err != nil {
		return nil, err
	}

	return backend.CommitSlice(commits), nil
}

// dateOrder lists the history reachable from start. A commit becomes ready
// once all of its children were emitted; ready commits leave newest first.
func dateOrder(ctx context.Context, repo *git.Repository, start plumbing.Hash) ([]backend.Commit, error) {
	graph := make(map[plumbing.Hash]*object.Commit)
	children := make(map[plumbing.Hash]int)
	pending := []plumbing.Hash{start}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hash := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if _, seen := graph[hash]; seen {
			continue
		}

		c, err := repo.CommitObject(hash)
		if err != nil {
			return nil, backend.Unavailable("walk history", err)
		}

		graph[hash] = c

		for _, parent := range c.ParentHashes {
			children[parent]++
			pending = append(pending, parent)
		}
	}

	ready := &byCommitterTime{graph[start]}
	out := make([]backend.Commit, 0, len(graph))

	for ready.Len() > 0 {
		c, _ := heap.Pop(ready).(*object.Commit)
		out = append(out, toCommit(c))

		for _, parent := range c.ParentHashes {
			children[parent]--
			if children[parent] == 0 {
				heap.Push(ready, graph[parent])
			}
		}
	}

	return out, nil
}

// byCommitterTime is a max-heap of commits on committer time.
type byCommitterTime []*object.Commit

func (h byCommitterTime) Len() int { return len(h) }

func (h byCommitterTime) Less(i, j int) bool {
	return h[i].Committer.When.After(h[j].Committer.When)
}

func (h byCommitterTime) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *byCommitterTime) Push(x any) {
	c, _ := x.(*object.Commit)
	*h = append(*h, c)
}

func (h *byCommitterTime) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]

	return c
}

// Blobs implements backend.Backend.
func (b *Backend) Blobs(ctx context.Context, commit backend.Commit) (backend.BlobIter, error) {
	hash, err := parseHash(commit.TreeID)
	if err != nil {
		return nil, backend.Unavailable("list tree", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tree, err := b.repo.TreeObject(hash)
	if err != nil {
		return nil, backend.Unavailable("list tree "+commit.TreeID, err)
	}

	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	var blobs []backend.Blob

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		name, entry, nextErr := walker.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return nil, backend.Unavailable("list tree "+commit.TreeID, nextErr)
		}

		// Skips subtrees and submodules.
		if !entry.Mode.IsFile() {
			continue
		}

		blobs = append(blobs, backend.Blob{ID: entry.Hash.String(), Name: name})
	}

	return backend.BlobSlice(blobs), nil
}

// CountLines implements backend.Backend.
func (b *Backend) CountLines(ctx context.Context, blob backend.Blob) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	hash, err := parseHash(blob.ID)
	if err != nil {
		return 0, backend.Unavailable("read blob", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	obj, err := b.repo.BlobObject(hash)
	if err != nil {
		return 0, backend.Unavailable("read blob "+blob.ID, err)
	}

	reader, err := obj.Reader()
	if err != nil {
		return 0, backend.Unavailable("read blob "+blob.ID, err)
	}

	n, err := backend.CountLinesReader(reader)
	closeErr := reader.Close()

	if err = errors.Join(err, closeErr); err != nil {
		return 0, backend.Unavailable("read blob "+blob.ID, err)
	}

	return n, nil
}

// Close implements backend.Backend. It releases the packfile handles of the
// storer.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	closer, ok := b.repo.Storer.(io.Closer)
	if !ok {
		return nil
	}

	err := closer.Close()
	if err != nil {
		return fmt.Errorf("close repository: %w", err)
	}

	return nil
}

func parseHash(s string) (plumbing.Hash, error) {
	if len(s) != hashHexLen {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	if _, err := hex.DecodeString(s); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	return plumbing.NewHash(s), nil
}

func toCommit(c *object.Commit) backend.Commit {
	return backend.Commit{
		ID:     c.Hash.String(),
		TreeID: c.TreeHash.String(),
		When:   c.Author.When,
	}
}

// firstParentIter follows the first parent chain, like git log --first-parent.
type firstParentIter struct {
	ctx  context.Context
	b    *Backend
	next plumbing.Hash
	done bool
}

func (it *firstParentIter) Next() (backend.Commit, error) {
	if it.done {
		return backend.Commit{}, io.EOF
	}

	if err := it.ctx.Err(); err != nil {
		return backend.Commit{}, err
	}

	it.b.mu.Lock()
	defer it.b.mu.Unlock()

	c, err := it.b.repo.CommitObject(it.next)
	if err != nil {
		return backend.Commit{}, backend.Unavailable("walk history", err)
	}

	if len(c.ParentHashes) == 0 {
		it.done = true
	} else {
		it.next = c.ParentHashes[0]
	}

	return toCommit(c), nil
}

func (it *firstParentIter) Close() {
	it.done = true
}
