package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/gitlines/pkg/observability"
)

func newTestReader(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

// sumFor returns the value of the int64 sum data point carrying attr, or of
// the only point when attr is empty.
func sumFor(t *testing.T, m *metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	for _, dp := range sum.DataPoints {
		if !attr.Valid() {
			return dp.Value
		}

		if v, found := dp.Attributes.Value(attr.Key); found && v == attr.Value {
			return dp.Value
		}
	}

	t.Fatalf("no data point with %v in %s", attr, m.Name)

	return 0
}

func TestCommandMetrics_RecordCommand(t *testing.T) {
	t.Parallel()

	mp, reader := newTestReader(t)

	cm, err := observability.NewCommandMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	cm.RecordCommand(ctx, "count", nil, 100*time.Millisecond)
	cm.RecordCommand(ctx, "count", errors.New("boom"), time.Second)

	rm := collectMetrics(t, reader)

	total := findMetric(rm, "gitlines.commands.total")
	assert.Equal(t, int64(1), sumFor(t, total, attribute.String("status", "ok")))
	assert.Equal(t, int64(1), sumFor(t, total, attribute.String("status", "error")))

	assert.NotNil(t, findMetric(rm, "gitlines.command.duration.seconds"))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "gitlines.command.errors.total"), attribute.KeyValue{}))
}

func TestCommandMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	mp, reader := newTestReader(t)

	cm, err := observability.NewCommandMetrics(mp.Meter("test"))
	require.NoError(t, err)

	done := cm.TrackInflight(context.Background(), "count")

	inflight := findMetric(collectMetrics(t, reader), "gitlines.commands.inflight")
	assert.Equal(t, int64(1), sumFor(t, inflight, attribute.String("command", "count")))

	done()

	inflight = findMetric(collectMetrics(t, reader), "gitlines.commands.inflight")
	assert.Equal(t, int64(0), sumFor(t, inflight, attribute.String("command", "count")))
}

func TestCommandMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var cm *observability.CommandMetrics

	assert.NotPanics(t, func() {
		cm.RecordCommand(context.Background(), "count", nil, time.Millisecond)
		cm.TrackInflight(context.Background(), "count")()
	})
}

func TestCommandMetrics_NoopMeter(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	cm, err := observability.NewCommandMetrics(providers.Meter)
	require.NoError(t, err)

	cm.RecordCommand(context.Background(), "version", nil, time.Millisecond)
}
