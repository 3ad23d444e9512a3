package gitlib_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitlines/pkg/gitlib"
)

// testRepo wraps a scratch repository for integration testing.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
	clock  time.Time
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{
		t:      t,
		path:   dir,
		native: repo,
		clock:  time.Date(2014, time.October, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)

	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

// commit stages the whole work tree and commits it one hour after the previous commit.
func (tr *testRepo) commit(message string) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	tr.clock = tr.clock.Add(time.Hour)
	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: tr.clock}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

func (tr *testRepo) open() *gitlib.Repository {
	tr.t.Helper()

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(tr.t, err)

	tr.t.Cleanup(repo.Free)

	return repo
}

func TestParseHash(t *testing.T) {
	t.Parallel()

	h, err := gitlib.ParseHash("0123456789abcdef0123456789ABCDEF01234567")
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", h.String())

	_, err = gitlib.ParseHash("abc")
	require.ErrorIs(t, err, gitlib.ErrInvalidHash)

	_, err = gitlib.ParseHash("zz23456789abcdef0123456789abcdef01234567")
	require.ErrorIs(t, err, gitlib.ErrInvalidHash)
}

func TestOpenRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo, err := gitlib.OpenRepository("/nonexistent/path/to/repo")

	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}

func TestResolveCommit(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("a.txt", "one\n")
	first := tr.commit("first")
	tr.createFile("b.txt", "two\n")
	second := tr.commit("second")

	repo := tr.open()

	head, err := repo.ResolveCommit("HEAD")
	require.NoError(t, err)
	assert.Equal(t, second, head)

	resolved, err := repo.ResolveCommit("HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, first, resolved)

	_, err = repo.ResolveCommit("no-such-branch")
	require.Error(t, err)
}

func TestLogNewestFirst(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("a.txt", "1\n")
	first := tr.commit("first")
	tr.createFile("a.txt", "1\n2\n")
	second := tr.commit("second")
	tr.createFile("b.txt", "3\n")
	third := tr.commit("third")

	repo := tr.open()

	iter, err := repo.Log(gitlib.LogOptions{})
	require.NoError(t, err)

	defer iter.Close()

	var got []gitlib.Hash

	for {
		commit, nextErr := iter.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		require.NoError(t, nextErr)

		got = append(got, commit.Hash())
		commit.Free()
	}

	assert.Equal(t, []gitlib.Hash{third, second, first}, got)

	_, err = iter.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLogFromRevision(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("a.txt", "1\n")
	first := tr.commit("first")
	tr.createFile("a.txt", "2\n")
	tr.commit("second")

	repo := tr.open()

	iter, err := repo.Log(gitlib.LogOptions{Revision: first.String()})
	require.NoError(t, err)

	defer iter.Close()

	commit, err := iter.Next()
	require.NoError(t, err)

	defer commit.Free()

	assert.Equal(t, first, commit.Hash())
	assert.Equal(t, "Test User", commit.Author().Name)

	_, err = iter.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWalkBlobsRecursive(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("README", "readme\n")
	tr.createFile("src/main.py", "print(1)\nprint(2)\n")
	tr.createFile("src/pkg/util.py", "x = 1\n")
	commitHash := tr.commit("tree")

	repo := tr.open()

	iter, err := repo.Log(gitlib.LogOptions{Revision: commitHash.String()})
	require.NoError(t, err)

	defer iter.Close()

	commit, err := iter.Next()
	require.NoError(t, err)

	defer commit.Free()

	tree, err := repo.LookupTree(commit.TreeHash())
	require.NoError(t, err)

	defer tree.Free()

	paths := map[string]gitlib.Hash{}

	err = tree.WalkBlobs(func(path string, hash gitlib.Hash) error {
		paths[path] = hash

		return nil
	})
	require.NoError(t, err)

	assert.Len(t, paths, 3)
	assert.Contains(t, paths, "README")
	assert.Contains(t, paths, "src/main.py")
	assert.Contains(t, paths, "src/pkg/util.py")

	blob, err := repo.LookupBlob(paths["src/main.py"])
	require.NoError(t, err)

	defer blob.Free()

	assert.Equal(t, []byte("print(1)\nprint(2)\n"), blob.Contents())
}

func TestLookupNotFound(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("a.txt", "x")
	tr.commit("init")

	repo := tr.open()
	missing, err := gitlib.ParseHash("1234567890123456789012345678901234567890")
	require.NoError(t, err)

	_, err = repo.LookupTree(missing)
	require.Error(t, err)

	_, err = repo.LookupBlob(missing)
	require.Error(t, err)
}

func TestFreeIsIdempotent(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("x.txt", "x")
	head := tr.commit("init")

	repo, err := gitlib.OpenRepository(tr.path + string(os.PathSeparator))
	require.NoError(t, err)

	resolved, err := repo.ResolveCommit("HEAD")
	require.NoError(t, err)
	assert.Equal(t, head, resolved)

	repo.Free()
	repo.Free()
}
