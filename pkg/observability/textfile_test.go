package observability_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitlines/pkg/observability"
)

func TestWriteMetricsFile(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "gitlines_test_gauge", Help: "test gauge"})
	registry.MustRegister(gauge)
	gauge.Set(42)

	path := filepath.Join(t.TempDir(), "out.prom")

	require.NoError(t, observability.WriteMetricsFile(path, registry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), "# TYPE gitlines_test_gauge gauge")
	assert.Contains(t, string(data), "gitlines_test_gauge 42")
}
