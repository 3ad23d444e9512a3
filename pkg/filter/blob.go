package filter

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
)

// Extensions accepts blobs whose file name has a '.' and whose text after
// the last '.' is in the set. Only the base name is looked at, so dots in
// directory names do not count.
type Extensions struct {
	set           map[string]struct{}
	caseSensitive bool
}

// NewExtensions builds the filter. Leading dots are ignored, so "py" and
// ".py" are the same extension. Matching ignores case unless caseSensitive.
func NewExtensions(exts []string, caseSensitive bool) *Extensions {
	e := &Extensions{set: make(map[string]struct{}, len(exts)), caseSensitive: caseSensitive}

	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}

		e.set[e.normalize(ext)] = struct{}{}
	}

	return e
}

func (e *Extensions) normalize(s string) string {
	if e.caseSensitive {
		return s
	}

	return strings.ToLower(s)
}

// IncludeBlob implements BlobFilter.
func (e *Extensions) IncludeBlob(blob backend.Blob) (bool, error) {
	ext, ok := Extension(blob.Name)
	if !ok {
		return false, nil
	}

	_, ok = e.set[e.normalize(ext)]

	return ok, nil
}

// Extension returns the text after the last '.' of the base name of a
// slash-separated path, and whether there was a '.' at all.
func Extension(name string) (string, bool) {
	base := path.Base(name)

	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return "", false
	}

	return base[i+1:], true
}

// Languages accepts blobs whose language, guessed from the file name and
// extension alone, is one of the configured languages. Language names match
// ignoring case ("python" matches "Python").
type Languages struct {
	set map[string]struct{}
}

// NewLanguages builds the filter.
func NewLanguages(languages []string) *Languages {
	l := &Languages{set: make(map[string]struct{}, len(languages))}

	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang != "" {
			l.set[strings.ToLower(lang)] = struct{}{}
		}
	}

	return l
}

// IncludeBlob implements BlobFilter.
func (l *Languages) IncludeBlob(blob backend.Blob) (bool, error) {
	for _, lang := range DetectLanguages(blob.Name) {
		if _, ok := l.set[strings.ToLower(lang)]; ok {
			return true, nil
		}
	}

	return false, nil
}

// DetectLanguages returns the candidate languages for a path without looking
// at content. Well-known file names (Makefile, Dockerfile) win over
// extensions.
func DetectLanguages(name string) []string {
	base := path.Base(name)

	if langs := enry.GetLanguagesByFilename(base, nil, nil); len(langs) > 0 {
		return langs
	}

	return enry.GetLanguagesByExtension(base, nil, nil)
}

// SkipVendored rejects vendored and third-party paths (vendor/,
// node_modules/, minified assets and the like) and accepts everything else.
type SkipVendored struct{}

// IncludeBlob implements BlobFilter.
func (SkipVendored) IncludeBlob(blob backend.Blob) (bool, error) {
	return !enry.IsVendor(blob.Name), nil
}
