package backend

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotFound is returned by the memory backend for unknown commits or blobs.
var ErrNotFound = errors.New("object not found")

// MemoryFile is a named blob with content, used to build in-memory trees.
// An empty ID is replaced by the git blob hash of Content.
type MemoryFile struct {
	Name    string
	ID      string
	Content []byte
}

// BlobID returns the git object ID of a blob holding content.
func BlobID(content []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, content).String()
}

// Memory is a Backend over commits held in memory. It is used by tests and by
// callers that already have history data. Commits are yielded in the order
// they were added, so add them most-recent-first.
type Memory struct {
	mu       sync.Mutex
	commits  []Commit
	trees    map[string][]Blob
	contents map[string][]byte
	counted  map[string]int
	closed   bool

	// FailCommits, FailBlobs and FailCount inject errors for tests.
	FailCommits error
	FailBlobs   map[string]error
	FailCount   map[string]error
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		trees:     make(map[string][]Blob),
		contents:  make(map[string][]byte),
		counted:   make(map[string]int),
		FailBlobs: make(map[string]error),
		FailCount: make(map[string]error),
	}
}

// AddCommit appends a commit whose tree holds files. When the commit has no
// TreeID the commit ID is used.
func (m *Memory) AddCommit(commit Commit, files ...MemoryFile) Commit {
	m.mu.Lock()
	defer m.mu.Unlock()

	if commit.TreeID == "" {
		commit.TreeID = commit.ID
	}

	blobs := make([]Blob, 0, len(files))

	for _, f := range files {
		if f.ID == "" {
			f.ID = BlobID(f.Content)
		}

		blobs = append(blobs, Blob{ID: f.ID, Name: f.Name})
		m.contents[f.ID] = f.Content
	}

	m.trees[commit.TreeID] = blobs
	m.commits = append(m.commits, commit)

	return commit
}

// CountCalls returns how many times CountLines was invoked for blobID.
func (m *Memory) CountCalls(blobID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counted[blobID]
}

// TotalCountCalls returns the number of CountLines invocations over all blobs.
func (m *Memory) TotalCountCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, n := range m.counted {
		total += n
	}

	return total
}

// Commits implements Backend.
func (m *Memory) Commits(_ context.Context) (CommitIter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCommits != nil {
		return nil, Unavailable("list commits", m.FailCommits)
	}

	commits := make([]Commit, len(m.commits))
	copy(commits, m.commits)

	return CommitSlice(commits), nil
}

// Blobs implements Backend.
func (m *Memory) Blobs(_ context.Context, commit Commit) (BlobIter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailBlobs[commit.ID]; err != nil {
		return nil, Unavailable("list tree "+commit.TreeID, err)
	}

	blobs, ok := m.trees[commit.TreeID]
	if !ok {
		return nil, Unavailable("list tree "+commit.TreeID, ErrNotFound)
	}

	items := make([]Blob, len(blobs))
	copy(items, blobs)

	return BlobSlice(items), nil
}

// CountLines implements Backend.
func (m *Memory) CountLines(_ context.Context, blob Blob) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counted[blob.ID]++

	if err := m.FailCount[blob.ID]; err != nil {
		return 0, Unavailable("read blob "+blob.ID, err)
	}

	content, ok := m.contents[blob.ID]
	if !ok {
		return 0, Unavailable("read blob "+blob.ID, ErrNotFound)
	}

	return CountLines(content), nil
}

// Close implements Backend.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	return nil
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// CommitSlice returns an iterator over an already materialized history.
func CommitSlice(commits []Commit) CommitIter {
	return &sliceIter[Commit]{items: commits}
}

// BlobSlice returns an iterator over an already materialized tree listing.
func BlobSlice(blobs []Blob) BlobIter {
	return &sliceIter[Blob]{items: blobs}
}

// sliceIter iterates over a materialized slice.
type sliceIter[T any] struct {
	items []T
	idx   int
}

func (it *sliceIter[T]) Next() (T, error) {
	var zero T

	if it.idx >= len(it.items) {
		return zero, io.EOF
	}

	item := it.items[it.idx]
	it.idx++

	return item, nil
}

func (it *sliceIter[T]) Close() {
	it.idx = len(it.items)
}
