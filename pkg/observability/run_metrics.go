package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsTotal   = "gitlines.commits.total"
	metricBlobsTotal     = "gitlines.blobs.total"
	metricLinesTotal     = "gitlines.lines.total"
	metricCacheLookups   = "gitlines.cache.lookups.total"
	metricCacheConflicts = "gitlines.cache.conflicts.total"
	metricRunDuration    = "gitlines.run.duration.seconds"

	attrStage  = "stage"
	attrResult = "result"

	stageSeen     = "seen"
	stageAccepted = "accepted"
	resultHit     = "hit"
	resultMiss    = "miss"
)

// RunMetrics holds OTel instruments for line counting runs.
type RunMetrics struct {
	commits   metric.Int64Counter
	blobs     metric.Int64Counter
	lines     metric.Int64Counter
	lookups   metric.Int64Counter
	conflicts metric.Int64Counter
	duration  metric.Float64Histogram
}

// RunStats holds the statistics of a single counting run.
type RunStats struct {
	CommitsSeen     int64
	CommitsAccepted int64
	BlobsSeen       int64
	BlobsAccepted   int64
	Lines           int64
	CacheHits       int64
	CacheMisses     int64
	Conflicts       int64
	Duration        time.Duration
}

// NewRunMetrics creates run metric instruments from the given meter.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Commits traversed, by stage"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	blobs, err := mt.Int64Counter(metricBlobsTotal,
		metric.WithDescription("Blobs enumerated, by stage"),
		metric.WithUnit("{blob}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBlobsTotal, err)
	}

	lines, err := mt.Int64Counter(metricLinesTotal,
		metric.WithDescription("Sum of reported line totals"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLinesTotal, err)
	}

	lookups, err := mt.Int64Counter(metricCacheLookups,
		metric.WithDescription("Line count cache lookups, by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheLookups, err)
	}

	conflicts, err := mt.Int64Counter(metricCacheConflicts,
		metric.WithDescription("Cached counts that disagreed with a recomputation"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheConflicts, err)
	}

	duration, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Counting run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	return &RunMetrics{
		commits:   commits,
		blobs:     blobs,
		lines:     lines,
		lookups:   lookups,
		conflicts: conflicts,
		duration:  duration,
	}, nil
}

// RecordRun records statistics for a completed run.
// Safe to call on a nil receiver (no-op).
func (rm *RunMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if rm == nil {
		return
	}

	seen := metric.WithAttributes(attribute.String(attrStage, stageSeen))
	accepted := metric.WithAttributes(attribute.String(attrStage, stageAccepted))

	rm.commits.Add(ctx, stats.CommitsSeen, seen)
	rm.commits.Add(ctx, stats.CommitsAccepted, accepted)
	rm.blobs.Add(ctx, stats.BlobsSeen, seen)
	rm.blobs.Add(ctx, stats.BlobsAccepted, accepted)
	rm.lines.Add(ctx, stats.Lines)

	rm.lookups.Add(ctx, stats.CacheHits, metric.WithAttributes(attribute.String(attrResult, resultHit)))
	rm.lookups.Add(ctx, stats.CacheMisses, metric.WithAttributes(attribute.String(attrResult, resultMiss)))
	rm.conflicts.Add(ctx, stats.Conflicts)

	rm.duration.Record(ctx, stats.Duration.Seconds())
}
