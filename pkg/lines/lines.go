// Package lines computes the per-commit line totals of a repository history.
//
// An Aggregator walks the commits of a backend most-recent-first, applies a
// filter pipeline, and sums the line counts of the accepted blobs of every
// accepted commit. Line counts are resolved through a content-addressed
// cache so that a blob shared by many commits is read once.
package lines

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
	"github.com/Sumatoshi-tech/gitlines/pkg/filter"
	"github.com/Sumatoshi-tech/gitlines/pkg/linecache"
	"github.com/Sumatoshi-tech/gitlines/pkg/observability"
	"github.com/Sumatoshi-tech/gitlines/pkg/report"
)

// EmitFunc receives each record as soon as its commit is counted.
type EmitFunc func(rec report.Record) error

// Options configures an Aggregator. The zero value counts sequentially,
// trusts the cache, and treats cache conflicts as fatal.
type Options struct {
	// Workers bounds the number of blobs of one commit resolved concurrently.
	// Values below 2 resolve blobs one at a time.
	Workers int

	// Verify recomputes the line count of every cache hit and records it, so
	// a stale cache entry surfaces as a consistency violation.
	Verify bool

	// Lenient logs consistency violations and keeps the cached value instead
	// of aborting the run.
	Lenient bool

	// TraceCommits starts a span per accepted commit.
	TraceCommits bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to the global gitlines tracer.
	Tracer trace.Tracer

	// Metrics receives the run statistics. Nil disables recording.
	Metrics *observability.RunMetrics
}

// Aggregator produces line count records. It is safe to reuse across runs
// but not to run concurrently with itself.
type Aggregator struct {
	opts Options

	mu    sync.Mutex
	stats observability.RunStats
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(observability.TracerName)
	}

	return &Aggregator{opts: opts}
}

// Stats returns the statistics of the most recent run.
func (a *Aggregator) Stats() observability.RunStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stats
}

// counters accumulates the statistics of one run. Blob counters are updated
// from worker goroutines.
type counters struct {
	commitsSeen     int64
	commitsAccepted int64
	lines           int64
	blobsSeen       atomic.Int64
	blobsAccepted   atomic.Int64
	hits            atomic.Int64
	misses          atomic.Int64
	conflicts       atomic.Int64
}

func (c *counters) snapshot(d time.Duration) observability.RunStats {
	return observability.RunStats{
		CommitsSeen:     c.commitsSeen,
		CommitsAccepted: c.commitsAccepted,
		BlobsSeen:       c.blobsSeen.Load(),
		BlobsAccepted:   c.blobsAccepted.Load(),
		Lines:           c.lines,
		CacheHits:       c.hits.Load(),
		CacheMisses:     c.misses.Load(),
		Conflicts:       c.conflicts.Load(),
		Duration:        d,
	}
}

// Run resets the pipeline, then counts every commit the backend yields and
// the pipeline accepts, in backend order. Each record is passed to emit (if
// non-nil) before the next commit is processed and is also returned. On error
// the records produced so far are returned along with it, and the cache may
// hold entries that must not be persisted.
func (a *Aggregator) Run(
	ctx context.Context,
	src backend.Backend,
	cache *linecache.Cache,
	pipeline filter.Pipeline,
	emit EmitFunc,
) ([]report.Record, error) {
	start := time.Now()

	ctx, span := a.opts.Tracer.Start(ctx, "gitlines.count",
		trace.WithAttributes(
			attribute.Int("gitlines.workers", a.workers()),
			attribute.Bool("gitlines.verify", a.opts.Verify),
		))
	defer span.End()

	pipeline.Reset()

	var c counters

	records, err := a.walk(ctx, src, cache, pipeline, emit, &c)

	stats := c.snapshot(time.Since(start))

	a.mu.Lock()
	a.stats = stats
	a.mu.Unlock()

	a.opts.Metrics.RecordRun(ctx, stats)

	span.SetAttributes(
		attribute.Int64("gitlines.commits.seen", stats.CommitsSeen),
		attribute.Int64("gitlines.commits.accepted", stats.CommitsAccepted),
		attribute.Int64("gitlines.blobs.accepted", stats.BlobsAccepted),
		attribute.Int64("gitlines.cache.hits", stats.CacheHits),
		attribute.Int64("gitlines.cache.misses", stats.CacheMisses),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return records, err
	}

	a.opts.Logger.InfoContext(ctx, "line count finished",
		"commits", humanize.Comma(stats.CommitsAccepted),
		"skipped", humanize.Comma(stats.CommitsSeen-stats.CommitsAccepted),
		"blobs", humanize.Comma(stats.BlobsAccepted),
		"computed", humanize.Comma(stats.CacheMisses),
		"hit_rate", fmt.Sprintf("%.1f%%", hitRate(stats)*100),
		"duration", stats.Duration.Round(time.Millisecond),
	)

	return records, nil
}

func (a *Aggregator) walk(
	ctx context.Context,
	src backend.Backend,
	cache *linecache.Cache,
	pipeline filter.Pipeline,
	emit EmitFunc,
	c *counters,
) ([]report.Record, error) {
	iter, err := src.Commits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer iter.Close()

	var records []report.Record

	for {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return records, fmt.Errorf("count lines: %w", ctxErr)
		}

		commit, err := iter.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return records, fmt.Errorf("next commit: %w", err)
		}

		c.commitsSeen++

		ok, err := pipeline.IncludeCommit(commit)
		if err != nil {
			return records, err
		}

		if !ok {
			a.opts.Logger.DebugContext(ctx, "commit skipped", "commit", commit.ID, "when", commit.When)

			continue
		}

		c.commitsAccepted++

		total, err := a.countCommit(ctx, src, cache, pipeline, commit, c)
		if err != nil {
			return records, err
		}

		c.lines += total

		rec := report.Record{When: commit.When, CommitID: commit.ID, Lines: total}

		if emit != nil {
			err = emit(rec)
			if err != nil {
				return records, fmt.Errorf("emit record: %w", err)
			}
		}

		records = append(records, rec)
	}
}

// countCommit sums the line counts of the accepted blobs of commit.
func (a *Aggregator) countCommit(
	ctx context.Context,
	src backend.Backend,
	cache *linecache.Cache,
	pipeline filter.Pipeline,
	commit backend.Commit,
	c *counters,
) (int64, error) {
	if a.opts.TraceCommits {
		var span trace.Span

		ctx, span = a.opts.Tracer.Start(ctx, "gitlines.commit",
			trace.WithAttributes(attribute.String("gitlines.commit", commit.ID)))
		defer span.End()
	}

	ctx = observability.WithCommit(ctx, commit.ID)

	blobs, err := src.Blobs(ctx, commit)
	if err != nil {
		return 0, fmt.Errorf("list blobs of %s: %w", commit.ID, err)
	}
	defer blobs.Close()

	var (
		total    atomic.Int64
		accepted int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())

	var walkErr error

	for gctx.Err() == nil {
		blob, err := blobs.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			walkErr = fmt.Errorf("next blob of %s: %w", commit.ID, err)

			break
		}

		c.blobsSeen.Add(1)

		ok, err := pipeline.IncludeBlob(blob)
		if err != nil {
			walkErr = err

			break
		}

		if !ok {
			continue
		}

		accepted++

		c.blobsAccepted.Add(1)

		g.Go(func() error {
			n, err := a.resolve(gctx, src, cache, blob, c)
			if err != nil {
				return err
			}

			total.Add(n)

			return nil
		})
	}

	err = errors.Join(walkErr, g.Wait(), ctx.Err())
	if err != nil {
		return 0, err
	}

	a.opts.Logger.DebugContext(ctx, "commit counted",
		"when", commit.When, "blobs", accepted, "lines", total.Load())

	return total.Load(), nil
}

// resolve returns the line count of blob, from the cache when possible.
func (a *Aggregator) resolve(
	ctx context.Context,
	src backend.Backend,
	cache *linecache.Cache,
	blob backend.Blob,
	c *counters,
) (int64, error) {
	compute := func(ctx context.Context) (int64, error) {
		return src.CountLines(ctx, blob)
	}

	n, hit, err := cache.Resolve(ctx, blob.ID, compute)
	if err != nil {
		return a.conflict(ctx, blob, fmt.Errorf("count lines of %s: %w", blob.Name, err), c)
	}

	if !hit {
		c.misses.Add(1)

		return n, nil
	}

	c.hits.Add(1)

	if !a.opts.Verify {
		return n, nil
	}

	fresh, err := compute(ctx)
	if err != nil {
		return 0, fmt.Errorf("verify lines of %s: %w", blob.Name, err)
	}

	err = cache.Insert(blob.ID, fresh)
	if err != nil {
		return a.conflict(ctx, blob, fmt.Errorf("verify lines of %s: %w", blob.Name, err), c)
	}

	return n, nil
}

// conflict turns a cache consistency violation into a warning when the
// aggregator is lenient, keeping the cached value. Other errors pass through.
func (a *Aggregator) conflict(ctx context.Context, blob backend.Blob, err error, c *counters) (int64, error) {
	var ce *linecache.ConflictError
	if !errors.As(err, &ce) {
		return 0, err
	}

	c.conflicts.Add(1)

	if !a.opts.Lenient {
		return 0, err
	}

	a.opts.Logger.WarnContext(ctx, "cached line count disagrees with blob content",
		"blob", blob.ID, "path", blob.Name, "cached", ce.Cached, "computed", ce.Computed)

	return ce.Cached, nil
}

func (a *Aggregator) workers() int {
	if a.opts.Workers < 1 {
		return 1
	}

	return a.opts.Workers
}

func hitRate(s observability.RunStats) float64 {
	lookups := s.CacheHits + s.CacheMisses
	if lookups == 0 {
		return 0
	}

	return float64(s.CacheHits) / float64(lookups)
}
