// Package config loads gitlines settings from defaults, an optional YAML
// file, GITLINES_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/gitlines/pkg/filter"
	"github.com/Sumatoshi-tech/gitlines/pkg/report"
)

// Backends lists the repository backends a configuration may select.
var Backends = []string{"git", "gogit", "libgit2"}

// dateLayout is the layout of the since and until bounds.
const dateLayout = "2006-01-02"

// Config is the top-level configuration struct for gitlines.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Backend     string          `mapstructure:"backend"`
	Revision    string          `mapstructure:"revision"`
	FirstParent bool            `mapstructure:"first_parent"`
	Workers     int             `mapstructure:"workers"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Filter      FilterConfig    `mapstructure:"filter"`
	Report      ReportConfig    `mapstructure:"report"`
	Log         LogConfig       `mapstructure:"log"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

// CacheConfig holds line count cache settings.
type CacheConfig struct {
	Path   string `mapstructure:"path"`
	Strict bool   `mapstructure:"strict"`
	Verify bool   `mapstructure:"verify"`
}

// FilterConfig selects the commits and blobs that are counted.
type FilterConfig struct {
	Cutoff        string   `mapstructure:"cutoff"`
	Monthly       bool     `mapstructure:"monthly"`
	Extensions    []string `mapstructure:"extensions"`
	CaseSensitive bool     `mapstructure:"case_sensitive"`
	Languages     []string `mapstructure:"languages"`
	SkipVendored  bool     `mapstructure:"skip_vendored"`
	Since         string   `mapstructure:"since"`
	Until         string   `mapstructure:"until"`
}

// ReportConfig holds output settings.
type ReportConfig struct {
	Format string `mapstructure:"format"`
	UTC    bool   `mapstructure:"utc"`
	Title  string `mapstructure:"title"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	TraceCommits bool    `mapstructure:"trace_commits"`
	MetricsFile  string  `mapstructure:"metrics_file"`
}

// Sentinel errors for configuration validation.
var (
	// ErrUnknownBackend indicates backend is not one of Backends.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrInvalidWorkers indicates the workers value is below 1.
	ErrInvalidWorkers = errors.New("workers must be at least 1")
	// ErrInvalidCutoff indicates filter.cutoff is not a YYYY-MM month.
	ErrInvalidCutoff = errors.New("filter.cutoff must be a YYYY-MM month")
	// ErrInvalidWindow indicates filter.since or filter.until is malformed or reversed.
	ErrInvalidWindow = errors.New("filter.since and filter.until must be YYYY-MM-DD dates, since not after until")
	// ErrUnknownFormat indicates report.format is not a known format.
	ErrUnknownFormat = errors.New("unknown report format")
	// ErrInvalidLogLevel indicates log.level is not a slog level name.
	ErrInvalidLogLevel = errors.New("log.level must be debug, info, warn or error")
	// ErrInvalidSampleRatio indicates the sampling ratio is out of range.
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownBackend, c.Backend, strings.Join(Backends, ", "))
	}

	if c.Workers < 1 {
		return ErrInvalidWorkers
	}

	filterErr := c.validateFilter()
	if filterErr != nil {
		return filterErr
	}

	if !report.ValidFormat(c.Report.Format) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, c.Report.Format, strings.Join(report.Formats(), ", "))
	}

	_, levelErr := c.LogLevel()
	if levelErr != nil {
		return levelErr
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}

func (c *Config) validateFilter() error {
	_, err := c.CutoffPeriod()
	if err != nil {
		return err
	}

	_, err = c.Window(time.UTC)
	if err != nil {
		return err
	}

	return nil
}

// CutoffPeriod parses filter.cutoff. An empty cutoff is the zero Period.
func (c *Config) CutoffPeriod() (filter.Period, error) {
	if c.Filter.Cutoff == "" {
		return filter.Period{}, nil
	}

	p, err := filter.ParsePeriod(c.Filter.Cutoff)
	if err != nil {
		return filter.Period{}, fmt.Errorf("%w: %w", ErrInvalidCutoff, err)
	}

	return p, nil
}

// Window returns the commit time window from filter.since and filter.until,
// both inclusive whole days in loc.
func (c *Config) Window(loc *time.Location) (filter.Window, error) {
	var w filter.Window

	if c.Filter.Since != "" {
		since, err := time.ParseInLocation(dateLayout, c.Filter.Since, loc)
		if err != nil {
			return filter.Window{}, fmt.Errorf("%w: %w", ErrInvalidWindow, err)
		}

		w.Since = since
	}

	if c.Filter.Until != "" {
		until, err := time.ParseInLocation(dateLayout, c.Filter.Until, loc)
		if err != nil {
			return filter.Window{}, fmt.Errorf("%w: %w", ErrInvalidWindow, err)
		}

		w.Until = until.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	if !w.Since.IsZero() && !w.Until.IsZero() && w.Since.After(w.Until) {
		return filter.Window{}, ErrInvalidWindow
	}

	return w, nil
}

// LogLevel parses log.level. Empty means info.
func (c *Config) LogLevel() (slog.Level, error) {
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level

	err := level.UnmarshalText([]byte(c.Log.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	return level, nil
}

// Location returns the time zone reports and month boundaries use.
func (c *Config) Location() *time.Location {
	if c.Report.UTC {
		return time.UTC
	}

	return time.Local
}
