package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
	"github.com/Sumatoshi-tech/gitlines/pkg/filter"
)

func includeBlob(t *testing.T, f filter.BlobFilter, name string) bool {
	t.Helper()

	ok, err := f.IncludeBlob(backend.Blob{ID: "id", Name: name})
	require.NoError(t, err)

	return ok
}

func TestExtensionsCaseSensitive(t *testing.T) {
	t.Parallel()

	f := filter.NewExtensions([]string{"php", "js", "pl", "py"}, true)

	assert.False(t, includeBlob(t, f, "app.PY"))
	assert.True(t, includeBlob(t, f, "app.py"))
	assert.True(t, includeBlob(t, f, "lib.test.js"))
	assert.False(t, includeBlob(t, f, "README"))
}

func TestExtensionsCaseInsensitiveDefault(t *testing.T) {
	t.Parallel()

	f := filter.NewExtensions([]string{".PHP", "js", " py ", ""}, false)

	assert.True(t, includeBlob(t, f, "app.PY"))
	assert.True(t, includeBlob(t, f, "index.php"))
	assert.True(t, includeBlob(t, f, "src/lib.test.js"))
	assert.False(t, includeBlob(t, f, "README"))
	assert.False(t, includeBlob(t, f, "notes.txt"))
}

func TestExtensionsUsesBaseName(t *testing.T) {
	t.Parallel()

	f := filter.NewExtensions([]string{"d"}, false)

	assert.False(t, includeBlob(t, f, "conf.d/README"))
	assert.True(t, includeBlob(t, f, "conf.d/x.d"))
}

func TestExtensionsEmptySetRejectsAll(t *testing.T) {
	t.Parallel()

	f := filter.NewExtensions(nil, false)

	assert.False(t, includeBlob(t, f, "a.py"))
}

func TestExtension(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		ext  string
		ok   bool
	}{
		{"a.py", "py", true},
		{"lib.test.js", "js", true},
		{"README", "", false},
		{".bashrc", "bashrc", true},
		{"trailing.", "", true},
		{"dir.v2/Makefile", "", false},
	} {
		ext, ok := filter.Extension(tt.name)
		assert.Equal(t, tt.ext, ext, tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
	}
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	f := filter.NewLanguages([]string{"python", "Go", " "})

	assert.True(t, includeBlob(t, f, "src/app.py"))
	assert.True(t, includeBlob(t, f, "main.go"))
	assert.False(t, includeBlob(t, f, "index.php"))
	assert.False(t, includeBlob(t, f, "data.zzzunknown"))
}

func TestDetectLanguages(t *testing.T) {
	t.Parallel()

	assert.Contains(t, filter.DetectLanguages("tools/Makefile"), "Makefile")
	assert.Contains(t, filter.DetectLanguages("a/b/c.py"), "Python")
	assert.Empty(t, filter.DetectLanguages("no-extension-here"))
}

func TestSkipVendored(t *testing.T) {
	t.Parallel()

	f := filter.SkipVendored{}

	assert.False(t, includeBlob(t, f, "vendor/github.com/x/y.go"))
	assert.False(t, includeBlob(t, f, "node_modules/lodash/index.js"))
	assert.True(t, includeBlob(t, f, "src/app.py"))
}

func TestAllBlobs(t *testing.T) {
	t.Parallel()

	f := filter.AllBlobs{filter.SkipVendored{}, filter.NewExtensions([]string{"js"}, false)}

	assert.True(t, includeBlob(t, f, "src/app.js"))
	assert.False(t, includeBlob(t, f, "node_modules/lodash/index.js"))
	assert.False(t, includeBlob(t, f, "src/app.py"))

	f.Reset()
}
