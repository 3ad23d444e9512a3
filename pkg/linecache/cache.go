// Package linecache stores per-blob line counts keyed by blob content
// identity.
//
// A blob ID names its content, so a count recorded for an ID never changes.
// Entries are never evicted or overwritten; a second, different count for the
// same ID is reported as a consistency violation and the first value is kept.
package linecache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Sentinel errors.
var (
	// ErrConsistencyViolation means one blob ID was given two different counts.
	ErrConsistencyViolation = errors.New("cache consistency violation")
	// ErrNegativeCount rejects counts below zero.
	ErrNegativeCount = errors.New("negative line count")
	// ErrMalformedCacheFile means a persisted cache could not be parsed.
	ErrMalformedCacheFile = errors.New("malformed cache file")
)

// ConflictError describes a consistency violation.
type ConflictError struct {
	ID       string
	Cached   int64
	Computed int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: blob %s cached as %d, got %d", ErrConsistencyViolation, e.ID, e.Cached, e.Computed)
}

// Unwrap makes errors.Is(err, ErrConsistencyViolation) hold.
func (e *ConflictError) Unwrap() error {
	return ErrConsistencyViolation
}

// ComputeFunc produces the line count of a blob on a cache miss.
type ComputeFunc func(ctx context.Context) (int64, error)

// Cache maps blob IDs to line counts. It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]int64
	group   singleflight.Group

	// Metrics (atomic for lock-free reads).
	hits      atomic.Int64
	misses    atomic.Int64
	conflicts atomic.Int64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]int64)}
}

// Lookup returns the count recorded for id.
func (c *Cache) Lookup(id string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.entries[id]

	return n, ok
}

// Insert records n for id. Inserting the value already recorded is a no-op.
// A different value keeps the recorded one and returns a *ConflictError.
func (c *Cache) Insert(id string, n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: blob %s: %d", ErrNegativeCount, id, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.insertLocked(id, n)
}

func (c *Cache) insertLocked(id string, n int64) error {
	cached, ok := c.entries[id]
	if !ok {
		c.entries[id] = n

		return nil
	}

	if cached != n {
		c.conflicts.Add(1)

		return &ConflictError{ID: id, Cached: cached, Computed: n}
	}

	return nil
}

// Load seeds the cache with a persisted snapshot. Every entry is checked the
// way Insert checks it; all problems are returned joined, and valid entries
// are loaded regardless.
func (c *Cache) Load(snapshot map[string]int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	for id, n := range snapshot {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%w: blob %s: %d", ErrNegativeCount, id, n))

			continue
		}

		err := c.insertLocked(id, n)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Snapshot returns a copy of every entry.
func (c *Cache) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.entries)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

type resolved struct {
	n   int64
	hit bool
}

// Resolve returns the count for id, running compute and recording its result
// on a miss. Concurrent calls for the same id share one compute; only the
// caller that ran it sees a miss. The boolean reports whether the value came
// from the cache or another caller's compute.
func (c *Cache) Resolve(ctx context.Context, id string, compute ComputeFunc) (int64, bool, error) {
	if n, ok := c.Lookup(id); ok {
		c.hits.Add(1)

		return n, true, nil
	}

	ran := false

	v, err, _ := c.group.Do(id, func() (any, error) {
		ran = true

		// Another flight may have finished between Lookup and Do.
		if n, ok := c.Lookup(id); ok {
			c.hits.Add(1)

			return resolved{n: n, hit: true}, nil
		}

		c.misses.Add(1)

		n, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		err = c.Insert(id, n)
		if err != nil {
			return nil, err
		}

		return resolved{n: n}, nil
	})
	if err != nil {
		return 0, false, err
	}

	r, _ := v.(resolved)

	if !ran {
		c.hits.Add(1)

		return r.n, true, nil
	}

	return r.n, r.hit, nil
}

// Stats holds cache counters.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Conflicts int64
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Conflicts: c.conflicts.Load(),
	}
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}
