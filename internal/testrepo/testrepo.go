// Package testrepo builds scratch git repositories for tests.
package testrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// Repo is a non-bare repository under a test temp directory.
type Repo struct {
	t    *testing.T
	Path string
	repo *git.Repository
}

// New initializes an empty repository.
func New(t *testing.T) *Repo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	return &Repo{t: t, Path: dir, repo: repo}
}

// Write creates or overwrites files in the work tree. Keys are
// slash-separated paths.
func (r *Repo) Write(files map[string]string) {
	r.t.Helper()

	for name, content := range files {
		path := filepath.Join(r.Path, filepath.FromSlash(name))

		require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// Remove deletes files from the work tree.
func (r *Repo) Remove(names ...string) {
	r.t.Helper()

	for _, name := range names {
		require.NoError(r.t, os.Remove(filepath.Join(r.Path, filepath.FromSlash(name))))
	}
}

// Commit stages every change and commits it with author and committer time
// set to when. It returns the commit hash.
func (r *Repo) Commit(message string, when time.Time) string {
	r.t.Helper()

	return r.CommitWithParents(message, when)
}

// CommitWithParents is Commit with explicit parent hashes. With no parents
// HEAD is used. HEAD moves to the new commit.
func (r *Repo) CommitWithParents(message string, when time.Time, parents ...string) string {
	r.t.Helper()

	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)

	require.NoError(r.t, wt.AddWithOptions(&git.AddOptions{All: true}))

	sig := &object.Signature{Name: "Test User", Email: "test@example.com", When: when}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
		Parents:           hashes(parents),
	})
	require.NoError(r.t, err)

	return hash.String()
}

// Tree returns the root tree hash of a commit.
func (r *Repo) Tree(commit string) string {
	r.t.Helper()

	c, err := r.repo.CommitObject(plumbing.NewHash(commit))
	require.NoError(r.t, err)

	return c.TreeHash.String()
}

// Branch creates a branch pointing at commit.
func (r *Repo) Branch(name, commit string) {
	r.t.Helper()

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), plumbing.NewHash(commit))
	require.NoError(r.t, r.repo.Storer.SetReference(ref))
}

func hashes(ids []string) []plumbing.Hash {
	out := make([]plumbing.Hash, 0, len(ids))
	for _, id := range ids {
		out = append(out, plumbing.NewHash(id))
	}

	return out
}
