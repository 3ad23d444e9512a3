package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitlines/internal/config"
	"github.com/Sumatoshi-tech/gitlines/pkg/filter"
)

func validConfig() config.Config {
	return config.Config{
		Backend:  "gogit",
		Revision: "HEAD",
		Workers:  1,
		Cache:    config.CacheConfig{Strict: true},
		Filter: config.FilterConfig{
			Cutoff:     "2014-10",
			Monthly:    true,
			Extensions: []string{"php", "js", "pl", "py"},
		},
		Report: config.ReportConfig{Format: "text"},
		Log:    config.LogConfig{Level: "info"},
	}
}

func TestValidate_ValidConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"backend", func(c *config.Config) { c.Backend = "svn" }, config.ErrUnknownBackend},
		{"workers", func(c *config.Config) { c.Workers = 0 }, config.ErrInvalidWorkers},
		{"cutoff", func(c *config.Config) { c.Filter.Cutoff = "2014-13" }, config.ErrInvalidCutoff},
		{"since", func(c *config.Config) { c.Filter.Since = "yesterday" }, config.ErrInvalidWindow},
		{"reversed", func(c *config.Config) {
			c.Filter.Since = "2015-01-02"
			c.Filter.Until = "2015-01-01"
		}, config.ErrInvalidWindow},
		{"format", func(c *config.Config) { c.Report.Format = "xml" }, config.ErrUnknownFormat},
		{"level", func(c *config.Config) { c.Log.Level = "loud" }, config.ErrInvalidLogLevel},
		{"ratio", func(c *config.Config) { c.Telemetry.SampleRatio = 1.5 }, config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestCutoffPeriod(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	p, err := cfg.CutoffPeriod()
	require.NoError(t, err)
	assert.Equal(t, filter.Period{Year: 2014, Month: time.October}, p)

	cfg.Filter.Cutoff = ""

	p, err = cfg.CutoffPeriod()
	require.NoError(t, err)
	assert.True(t, p.IsZero())
}

func TestWindowIsInclusive(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Filter.Since = "2015-01-01"
	cfg.Filter.Until = "2015-01-31"

	w, err := cfg.Window(time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC), w.Since)
	assert.True(t, w.Until.Before(time.Date(2015, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Until.After(time.Date(2015, time.January, 31, 23, 59, 59, 0, time.UTC)))

	cfg.Filter.Since = ""
	cfg.Filter.Until = ""

	w, err = cfg.Window(time.UTC)
	require.NoError(t, err)
	assert.True(t, w.Since.IsZero())
	assert.True(t, w.Until.IsZero())
}

func TestLogLevel(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	for name, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		cfg.Log.Level = name

		got, err := cfg.LogLevel()
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestLocation(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Report.UTC = true
	assert.Equal(t, time.UTC, cfg.Location())
}
