package gitcli_test

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
	"github.com/Sumatoshi-tech/gitlines/pkg/backend/backendtest"
	"github.com/Sumatoshi-tech/gitlines/pkg/backend/gitcli"
)

func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

func TestConformance(t *testing.T) {
	t.Parallel()
	requireGit(t)

	backendtest.Run(t, func(path string, opts backend.Options) (backend.Backend, error) {
		return gitcli.Open(path, opts)
	})
}

func TestRegistered(t *testing.T) {
	t.Parallel()
	requireGit(t)

	assert.Contains(t, backend.Kinds(), gitcli.Kind)

	h := backendtest.NewHistory(t)

	b, err := backend.Open(gitcli.Kind, h.Repo.Path, backend.Options{})
	require.NoError(t, err)

	defer b.Close()

	assert.Len(t, backendtest.Drain(t, b), 3)
}

func TestBatchSurvivesMissingObject(t *testing.T) {
	t.Parallel()
	requireGit(t)

	h := backendtest.NewHistory(t)

	b, err := gitcli.Open(h.Repo.Path, backend.Options{})
	require.NoError(t, err)

	defer b.Close()

	_, err = b.CountLines(t.Context(), backend.Blob{ID: "1234567890123456789012345678901234567890"})
	require.ErrorIs(t, err, gitcli.ErrMissingObject)

	n, err := b.CountLines(t.Context(), backend.Blob{ID: backend.BlobID([]byte(h.Content["src/b.py"]))})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCloseWithoutReads(t *testing.T) {
	t.Parallel()
	requireGit(t)

	h := backendtest.NewHistory(t)

	b, err := gitcli.Open(h.Repo.Path, backend.Options{})
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestIgnoresLogConfiguration(t *testing.T) {
	t.Parallel()
	requireGit(t)

	h := backendtest.NewHistory(t)

	for _, kv := range [][2]string{{"log.showSignature", "true"}, {"color.ui", "always"}} {
		cmd := exec.Command("git", "config", kv[0], kv[1])
		cmd.Dir = h.Repo.Path
		require.NoError(t, cmd.Run())
	}

	b, err := gitcli.Open(h.Repo.Path, backend.Options{})
	require.NoError(t, err)

	defer b.Close()

	commits := backendtest.Drain(t, b)
	require.Len(t, commits, 3)
	assert.Equal(t, h.C3, commits[0].ID)
}
