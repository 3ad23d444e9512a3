package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitlines/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".gitlines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""), nil)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBackend, cfg.Backend)
	assert.Equal(t, config.DefaultRevision, cfg.Revision)
	assert.Equal(t, config.DefaultWorkers, cfg.Workers)
	assert.True(t, cfg.Cache.Strict)
	assert.False(t, cfg.Cache.Verify)
	assert.Empty(t, cfg.Filter.Extensions)
	assert.False(t, cfg.Filter.CaseSensitive)
	assert.Equal(t, config.DefaultReportFormat, cfg.Report.Format)
	assert.Equal(t, config.DefaultLogLevel, cfg.Log.Level)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `backend: git
revision: main
first_parent: true
workers: 4
cache:
  path: lines.json.lz4
  strict: false
  verify: true
filter:
  cutoff: "2014-10"
  monthly: true
  extensions: [php, js, pl, py]
  languages: ["Go"]
  skip_vendored: true
  since: "2014-01-01"
report:
  format: table
  utc: true
  title: history
log:
  level: debug
  json: true
telemetry:
  trace_commits: true
  metrics_file: /tmp/gitlines.prom
`)

	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "git", cfg.Backend)
	assert.Equal(t, "main", cfg.Revision)
	assert.True(t, cfg.FirstParent)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, config.CacheConfig{Path: "lines.json.lz4", Strict: false, Verify: true}, cfg.Cache)
	assert.Equal(t, "2014-10", cfg.Filter.Cutoff)
	assert.True(t, cfg.Filter.Monthly)
	assert.Equal(t, []string{"php", "js", "pl", "py"}, cfg.Filter.Extensions)
	assert.Equal(t, []string{"Go"}, cfg.Filter.Languages)
	assert.True(t, cfg.Filter.SkipVendored)
	assert.Equal(t, "2014-01-01", cfg.Filter.Since)
	assert.Equal(t, config.ReportConfig{Format: "table", UTC: true, Title: "history"}, cfg.Report)
	assert.Equal(t, config.LogConfig{Level: "debug", JSON: true}, cfg.Log)
	assert.True(t, cfg.Telemetry.TraceCommits)
	assert.Equal(t, "/tmp/gitlines.prom", cfg.Telemetry.MetricsFile)
}

func TestLoadConfig_CommaSeparatedExtensions(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "filter:\n  extensions: [\"php, js\", py]\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"php", "js", "py"}, cfg.Filter.Extensions)
}

func TestLoadConfig_MalformedYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "backend: [unterminated\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidValue_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "workers: 0\n"), nil)
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestLoadConfig_ExplicitPath_NotFound_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "workers: 2\n")

	t.Setenv("GITLINES_WORKERS", "6")
	t.Setenv("GITLINES_FILTER_EXTENSIONS", "php,py")
	t.Setenv("GITLINES_CACHE_STRICT", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, []string{"php", "py"}, cfg.Filter.Extensions)
	assert.False(t, cfg.Cache.Strict)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
}

func TestLoadConfig_FlagsOverrideFileAndEnv(t *testing.T) {
	path := writeConfig(t, "workers: 2\nbackend: git\n")

	t.Setenv("GITLINES_WORKERS", "6")

	flags := pflag.NewFlagSet("count", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.String("backend", "gogit", "")
	flags.StringSlice("ext", nil, "")
	require.NoError(t, flags.Parse([]string{"--workers", "8", "--ext", "py,js"}))

	cfg, err := config.LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "git", cfg.Backend, "unset flag keeps the file value")
	assert.Equal(t, []string{"py", "js"}, cfg.Filter.Extensions)
}
