package linecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/gitlines/pkg/persist"
)

// fileSchema describes a persisted cache: one object mapping blob IDs to
// non-negative integer line counts.
const fileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "propertyNames": {"minLength": 1},
  "additionalProperties": {"type": "integer", "minimum": 0}
}`

// maxReportedSchemaErrors caps the validation messages folded into an error.
const maxReportedSchemaErrors = 3

var schemaLoader = gojsonschema.NewStringLoader(fileSchema)

// LoadFile reads a persisted cache. A missing file yields an empty map.
// Anything unparseable, followed by trailing data, or not matching the cache
// shape is ErrMalformedCacheFile. A file that cannot be read at all is
// reported as an I/O error.
func LoadFile(path string) (map[string]int64, error) {
	var raw any

	err := persist.ReadFile(path, persist.CodecForPath(path), &raw)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]int64{}, nil
	}

	if errors.Is(err, persist.ErrCorrupt) {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedCacheFile, path, err)
	}

	if err != nil {
		return nil, fmt.Errorf("load cache %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedCacheFile, path, err)
	}

	if !result.Valid() {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformedCacheFile, path, describe(result.Errors()))
	}

	// The schema guarantees an object of integers.
	obj, _ := raw.(map[string]any)
	out := make(map[string]int64, len(obj))

	for id, v := range obj {
		num, _ := v.(json.Number)

		n, convErr := num.Int64()
		if convErr != nil {
			return nil, fmt.Errorf("%w: %s: blob %s: %w", ErrMalformedCacheFile, path, id, convErr)
		}

		out[id] = n
	}

	return out, nil
}

// SaveFile replaces path with snapshot. Keys are written sorted, so the
// same snapshot always produces the same bytes.
func SaveFile(path string, snapshot map[string]int64) error {
	err := persist.WriteFile(path, persist.CodecForPath(path), snapshot)
	if err != nil {
		return fmt.Errorf("save cache %s: %w", path, err)
	}

	return nil
}

// Open creates a cache seeded from path. See LoadFile.
func Open(path string) (*Cache, error) {
	snapshot, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	c := New()

	err = c.Load(snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedCacheFile, path, err)
	}

	return c, nil
}

// Save writes the cache contents to path.
func (c *Cache) Save(path string) error {
	return SaveFile(path, c.Snapshot())
}

// Summary describes a snapshot.
type Summary struct {
	Entries    int
	TotalLines int64
	MaxLines   int64
}

// Summarize aggregates a snapshot.
func Summarize(snapshot map[string]int64) Summary {
	s := Summary{Entries: len(snapshot)}

	for _, n := range snapshot {
		s.TotalLines += n
		s.MaxLines = max(s.MaxLines, n)
	}

	return s
}

func describe(errs []gojsonschema.ResultError) string {
	parts := make([]string, 0, min(len(errs), maxReportedSchemaErrors))

	for i, e := range errs {
		if i == maxReportedSchemaErrors {
			parts = append(parts, fmt.Sprintf("and %d more", len(errs)-i))

			break
		}

		parts = append(parts, e.Field()+": "+e.Description())
	}

	return strings.Join(parts, "; ")
}
