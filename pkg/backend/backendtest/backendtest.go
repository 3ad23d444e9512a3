// Package backendtest holds the conformance suite every backend.Backend
// implementation runs in its tests.
package backendtest

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitlines/internal/testrepo"
	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
)

var base = time.Date(2014, time.September, 15, 10, 30, 0, 0, time.UTC)

// History is the fixture the suite runs against.
type History struct {
	Repo    *testrepo.Repo
	C1      string
	C2      string
	C3      string
	Content map[string]string
}

// NewHistory builds a three commit repository:
//
//	c1 2014-09-15  a.py, README
//	c2 2014-10-15  a.py, src/b.py, README
//	c3 2014-11-15  a.py, src/b.py, d.txt
func NewHistory(t *testing.T) *History {
	t.Helper()

	h := &History{
		Repo: testrepo.New(t),
		Content: map[string]string{
			"a.py":     "import os\nprint(os.name)\n",
			"README":   "readme\n",
			"src/b.py": "x = 1\ny = 2\nz = 3\n",
			"d.txt":    "no trailing newline",
		},
	}

	h.Repo.Write(pick(h.Content, "a.py", "README"))
	h.C1 = h.Repo.Commit("first", base)

	h.Repo.Write(pick(h.Content, "src/b.py"))
	h.C2 = h.Repo.Commit("second", base.AddDate(0, 1, 0))

	h.Repo.Remove("README")
	h.Repo.Write(pick(h.Content, "d.txt"))
	h.C3 = h.Repo.Commit("third", base.AddDate(0, 2, 0))

	return h
}

func pick(all map[string]string, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = all[name]
	}

	return out
}

// Run executes the conformance suite against the backend returned by open.
func Run(t *testing.T, open backend.OpenFunc) {
	t.Helper()

	t.Run("CommitsNewestFirst", func(t *testing.T) {
		t.Parallel()

		h := NewHistory(t)
		b := mustOpen(t, open, h.Repo.Path, backend.Options{})

		commits := Drain(t, b)
		require.Len(t, commits, 3)

		assert.Equal(t, []string{h.C3, h.C2, h.C1}, ids(commits))
		assert.Equal(t, h.Repo.Tree(h.C1), commits[2].TreeID)
		assert.Equal(t, h.Repo.Tree(h.C3), commits[0].TreeID)
		assert.True(t, base.Equal(commits[2].When), "got %s", commits[2].When)
		assert.True(t, base.AddDate(0, 2, 0).Equal(commits[0].When), "got %s", commits[0].When)
	})

	t.Run("BlobsRecursive", func(t *testing.T) {
		t.Parallel()

		h := NewHistory(t)
		b := mustOpen(t, open, h.Repo.Path, backend.Options{})

		blobs := drainBlobs(t, b, backend.Commit{ID: h.C2, TreeID: h.Repo.Tree(h.C2)})

		names := make([]string, 0, len(blobs))
		for _, blob := range blobs {
			names = append(names, blob.Name)
			assert.Equal(t, backend.BlobID([]byte(h.Content[blob.Name])), blob.ID, blob.Name)
		}

		slices.Sort(names)
		assert.Equal(t, []string{"README", "a.py", "src/b.py"}, names)
	})

	t.Run("CountLines", func(t *testing.T) {
		t.Parallel()

		h := NewHistory(t)
		b := mustOpen(t, open, h.Repo.Path, backend.Options{})
		ctx := context.Background()

		want := map[string]int64{"a.py": 2, "src/b.py": 3, "d.txt": 0}
		for _, blob := range drainBlobs(t, b, backend.Commit{ID: h.C3, TreeID: h.Repo.Tree(h.C3)}) {
			n, err := b.CountLines(ctx, blob)
			require.NoError(t, err)
			assert.Equal(t, want[blob.Name], n, blob.Name)
		}
	})

	t.Run("Revision", func(t *testing.T) {
		t.Parallel()

		h := NewHistory(t)
		b := mustOpen(t, open, h.Repo.Path, backend.Options{Revision: h.C2})

		assert.Equal(t, []string{h.C2, h.C1}, ids(Drain(t, b)))
	})

	t.Run("UnknownRevision", func(t *testing.T) {
		t.Parallel()

		h := NewHistory(t)

		b, err := open(h.Repo.Path, backend.Options{Revision: "no-such-branch"})
		if err == nil {
			t.Cleanup(func() { _ = b.Close() })

			_, err = b.Commits(context.Background())
		}

		require.ErrorIs(t, err, backend.ErrUnavailable)
	})

	t.Run("UnknownBlob", func(t *testing.T) {
		t.Parallel()

		h := NewHistory(t)
		b := mustOpen(t, open, h.Repo.Path, backend.Options{})

		_, err := b.CountLines(context.Background(), backend.Blob{
			ID:   "1234567890123456789012345678901234567890",
			Name: "ghost.py",
		})
		require.ErrorIs(t, err, backend.ErrUnavailable)
	})

	t.Run("MissingRepository", func(t *testing.T) {
		t.Parallel()

		_, err := open(filepath.Join(t.TempDir(), "missing"), backend.Options{})
		require.ErrorIs(t, err, backend.ErrUnavailable)
	})

	t.Run("FirstParent", func(t *testing.T) {
		t.Parallel()

		repo := testrepo.New(t)

		repo.Write(map[string]string{"a.py": "1\n"})
		root := repo.Commit("root", base)

		repo.Write(map[string]string{"side.py": "1\n"})
		side := repo.CommitWithParents("side", base.Add(time.Hour), root)

		repo.Write(map[string]string{"main.py": "1\n"})
		trunk := repo.CommitWithParents("main", base.Add(2*time.Hour), root)

		merge := repo.CommitWithParents("merge", base.Add(3*time.Hour), trunk, side)

		full := mustOpen(t, open, repo.Path, backend.Options{})
		assert.Equal(t, []string{merge, trunk, side, root}, ids(Drain(t, full)))

		first := mustOpen(t, open, repo.Path, backend.Options{FirstParent: true})
		assert.Equal(t, []string{merge, trunk, root}, ids(Drain(t, first)))
	})

	t.Run("ChildrenBeforeParents", func(t *testing.T) {
		t.Parallel()

		repo := testrepo.New(t)

		repo.Write(map[string]string{"a.py": "1\n"})
		root := repo.Commit("root", base.Add(10*time.Hour))

		repo.Write(map[string]string{"main.py": "1\n"})
		trunk := repo.CommitWithParents("main", base.Add(20*time.Hour), root)

		// The clock of the side branch ran behind its parent.
		repo.Write(map[string]string{"side.py": "1\n"})
		side := repo.CommitWithParents("side", base.Add(5*time.Hour), root)

		merge := repo.CommitWithParents("merge", base.Add(30*time.Hour), trunk, side)

		b := mustOpen(t, open, repo.Path, backend.Options{})
		assert.Equal(t, []string{merge, trunk, side, root}, ids(Drain(t, b)))
	})
}

func mustOpen(t *testing.T, open backend.OpenFunc, path string, opts backend.Options) backend.Backend {
	t.Helper()

	b, err := open(path, opts)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, b.Close()) })

	return b
}

// Drain lists every commit of b.
func Drain(t *testing.T, b backend.Backend) []backend.Commit {
	t.Helper()

	iter, err := b.Commits(context.Background())
	require.NoError(t, err)

	defer iter.Close()

	var out []backend.Commit

	for {
		commit, nextErr := iter.Next()
		if errors.Is(nextErr, io.EOF) {
			return out
		}

		require.NoError(t, nextErr)

		out = append(out, commit)
	}
}

func drainBlobs(t *testing.T, b backend.Backend, commit backend.Commit) []backend.Blob {
	t.Helper()

	iter, err := b.Blobs(context.Background(), commit)
	require.NoError(t, err)

	defer iter.Close()

	var out []backend.Blob

	for {
		blob, nextErr := iter.Next()
		if errors.Is(nextErr, io.EOF) {
			return out
		}

		require.NoError(t, nextErr)

		out = append(out, blob)
	}
}

func ids(commits []backend.Commit) []string {
	out := make([]string, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.ID)
	}

	return out
}
