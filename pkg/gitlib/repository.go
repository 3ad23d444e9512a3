package gitlib

import (
	"fmt"
	"os"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
}

// OpenRepository opens a local git repository at path. Trailing separators
// are ignored.
func OpenRepository(path string) (*Repository, error) {
	path = strings.TrimRight(path, string(os.PathSeparator))

	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo}, nil
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// ResolveCommit resolves a revision expression (HEAD, branch, tag, hash,
// HEAD~3 and so on) to a commit hash.
func (r *Repository) ResolveCommit(revision string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(revision)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %q: %w", revision, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("peel %q to commit: %w", revision, err)
	}
	defer peeled.Free()

	return HashFromOid(peeled.Id()), nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree %s: %w", hash, err)
	}

	return &Tree{tree: tree, repo: r}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob %s: %w", hash, err)
	}

	return &Blob{blob: blob}, nil
}

// LogOptions configures the commit log iteration.
type LogOptions struct {
	// Revision is the walk start. Empty means HEAD.
	Revision string
	// FirstParent follows only the first parent (git log --first-parent).
	FirstParent bool
}

// Log returns an iterator over the history reachable from the configured
// revision, newest first.
func (r *Repository) Log(opts LogOptions) (*CommitIter, error) {
	revision := opts.Revision
	if revision == "" {
		revision = "HEAD"
	}

	start, err := r.ResolveCommit(revision)
	if err != nil {
		return nil, err
	}

	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	err = walk.Push(start.ToOid())
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push %s to revwalk: %w", start, err)
	}

	// Time order with topological tie-breaking: a child always precedes its parents.
	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	if opts.FirstParent {
		walk.SimplifyFirstParent()
	}

	return &CommitIter{walk: walk, repo: r}, nil
}
