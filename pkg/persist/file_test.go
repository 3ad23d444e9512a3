package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_ReadFile(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"cache.json", "cache.json.lz4"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "nested", name)
			codec := CodecForPath(path)
			original := map[string]int64{"abc": 10, "def": 0}

			require.NoError(t, WriteFile(path, codec, original))

			var loaded map[string]int64

			require.NoError(t, ReadFile(path, codec, &loaded))
			assert.Equal(t, original, loaded)
		})
	}
}

func TestWriteFile_ReplacesAndLeavesNoTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	require.NoError(t, WriteFile(path, NewJSONCodec(), map[string]int{"old": 1, "gone": 2}))
	require.NoError(t, WriteFile(path, NewJSONCodec(), map[string]int{"new": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "gone")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFile_EncodeErrorKeepsOld(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	require.NoError(t, WriteFile(path, NewJSONCodec(), map[string]int{"keep": 1}))

	err := WriteFile(path, NewJSONCodec(), make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode state")

	var loaded map[string]int

	require.NoError(t, ReadFile(path, NewJSONCodec(), &loaded))
	assert.Equal(t, map[string]int{"keep": 1}, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadFile_NotExist(t *testing.T) {
	t.Parallel()

	var state map[string]int

	err := ReadFile(filepath.Join(t.TempDir(), "missing.json"), NewJSONCodec(), &state)

	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadFile_DecodeError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json{{{"), 0o600))

	var state map[string]int

	err := ReadFile(path, NewJSONCodec(), &state)

	require.ErrorIs(t, err, ErrCorrupt)
}

func TestReadFile_IOErrorIsNotCorrupt(t *testing.T) {
	t.Parallel()

	var state map[string]int

	// Reading a directory fails before any decoding.
	err := ReadFile(t.TempDir(), NewJSONCodec(), &state)

	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCorrupt)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestWriteFile_Mode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	created := filepath.Join(dir, "new.json")
	require.NoError(t, WriteFile(created, NewJSONCodec(), map[string]int{"a": 1}))

	info, err := os.Stat(created)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	for _, mode := range []os.FileMode{0o644, 0o600, 0o664} {
		path := filepath.Join(dir, fmt.Sprintf("existing-%o.json", mode))

		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
		require.NoError(t, os.Chmod(path, mode))

		require.NoError(t, WriteFile(path, NewJSONCodec(), map[string]int{"a": 1}))

		info, err = os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, mode, info.Mode().Perm())
	}
}

func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	ok, err := Exists(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Exists(dir)
	require.NoError(t, err)
	assert.True(t, ok)
}
