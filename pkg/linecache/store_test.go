package linecache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitlines/pkg/linecache"
)

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	snap, err := linecache.LoadFile(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"cache.json", "cache.json.lz4"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), name)
			snap := map[string]int64{
				"e69de29bb2d1d6434b8b29ae775ad8c2e48c5391": 0,
				"ce013625030ba8dba906f756967f9e9ca394464a": 1,
				"big": 9_007_199_254_740_993,
			}

			require.NoError(t, linecache.SaveFile(path, snap))

			loaded, err := linecache.LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, snap, loaded)
		})
	}
}

func TestSaveFileDeterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	snap := map[string]int64{"b": 2, "a": 1, "c": 3}

	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	require.NoError(t, linecache.SaveFile(first, snap))
	require.NoError(t, linecache.SaveFile(second, snap))

	a, err := os.ReadFile(first)
	require.NoError(t, err)

	b, err := os.ReadFile(second)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": 2,\n  \"c\": 3\n}\n", string(a))
}

func TestLoadFileMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"garbage", "not json{{{"},
		{"array", `[1, 2, 3]`},
		{"null", `null`},
		{"string value", `{"abc": "ten"}`},
		{"negative", `{"abc": -1}`},
		{"fraction", `{"abc": 1.5}`},
		{"empty key", `{"": 3}`},
		{"trailing garbage", `{"abc": 1} garbage`},
		{"concatenated", `{"abc": 1}{"def": 2}`},
		{"stray bracket", `{"abc": 1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "cache.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := linecache.LoadFile(path)
			require.ErrorIs(t, err, linecache.ErrMalformedCacheFile)

			_, err = linecache.Open(path)
			require.ErrorIs(t, err, linecache.ErrMalformedCacheFile)
		})
	}
}

func TestLoadFileUnreadable(t *testing.T) {
	t.Parallel()

	// A directory in place of the file cannot be read.
	_, err := linecache.LoadFile(t.TempDir())
	require.Error(t, err)
	require.NotErrorIs(t, err, linecache.ErrMalformedCacheFile)
}

func TestOpenAndSave(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")

	c, err := linecache.Open(path)
	require.NoError(t, err)
	assert.Zero(t, c.Len())

	require.NoError(t, c.Insert("abc", 12))
	require.NoError(t, c.Save(path))

	reopened, err := linecache.Open(path)
	require.NoError(t, err)

	n, ok := reopened.Lookup("abc")
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := linecache.Summarize(map[string]int64{"a": 3, "b": 10, "c": 0})

	assert.Equal(t, linecache.Summary{Entries: 3, TotalLines: 13, MaxLines: 10}, s)
	assert.Equal(t, linecache.Summary{}, linecache.Summarize(nil))
}
