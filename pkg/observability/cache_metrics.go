package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/gitlines/pkg/linecache"
)

const metricCacheEntries = "gitlines.cache.entries"

// CacheStatsProvider exposes cache counters for observable gauges.
type CacheStatsProvider interface {
	Stats() linecache.Stats
}

// RegisterCacheMetrics registers an observable gauge reporting the number of
// entries held by the line count cache at each collection.
func RegisterCacheMetrics(mt metric.Meter, cache CacheStatsProvider) error {
	_, err := mt.Int64ObservableGauge(metricCacheEntries,
		metric.WithDescription("Entries in the line count cache"),
		metric.WithUnit("{entry}"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(int64(cache.Stats().Entries))

			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheEntries, err)
	}

	return nil
}
