package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".gitlines"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for gitlines settings.
const envPrefix = "GITLINES"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// FlagKeys maps configuration keys to the command line flags that set them.
var FlagKeys = map[string]string{
	"backend":                "backend",
	"revision":               "rev",
	"first_parent":           "first-parent",
	"workers":                "workers",
	"cache.path":             "cache",
	"cache.strict":           "strict-cache",
	"cache.verify":           "verify-cache",
	"filter.cutoff":          "cutoff",
	"filter.monthly":         "monthly",
	"filter.extensions":      "ext",
	"filter.case_sensitive":  "case-sensitive",
	"filter.languages":       "language",
	"filter.skip_vendored":   "skip-vendored",
	"filter.since":           "since",
	"filter.until":           "until",
	"report.format":          "format",
	"report.utc":             "utc",
	"report.title":           "title",
	"log.level":              "log-level",
	"log.json":               "log-json",
	"telemetry.metrics_file": "metrics-file",
}

// LoadConfig loads configuration from defaults, a config file, env vars and
// flags, in increasing precedence. If configPath is non-empty it is the
// explicit config file path; otherwise .gitlines.yaml is searched in CWD and
// $HOME, and a missing file is not an error. Flags present in FlagKeys are
// bound when flags is non-nil; unset flags do not override other sources.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	err := bindStandardEnv(viperCfg)
	if err != nil {
		return nil, err
	}

	err = bindFlags(viperCfg, flags)
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, homeErr := os.UserHomeDir()
		if homeErr == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	cfg.Filter.Extensions = splitList(cfg.Filter.Extensions)
	cfg.Filter.Languages = splitList(cfg.Filter.Languages)

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("backend", DefaultBackend)
	viperCfg.SetDefault("revision", DefaultRevision)
	viperCfg.SetDefault("first_parent", false)
	viperCfg.SetDefault("workers", DefaultWorkers)

	viperCfg.SetDefault("cache.path", "")
	viperCfg.SetDefault("cache.strict", DefaultCacheStrict)
	viperCfg.SetDefault("cache.verify", false)

	viperCfg.SetDefault("filter.cutoff", "")
	viperCfg.SetDefault("filter.monthly", false)
	viperCfg.SetDefault("filter.extensions", []string{})
	viperCfg.SetDefault("filter.case_sensitive", DefaultCaseSensitive)
	viperCfg.SetDefault("filter.languages", []string{})
	viperCfg.SetDefault("filter.skip_vendored", false)
	viperCfg.SetDefault("filter.since", "")
	viperCfg.SetDefault("filter.until", "")

	viperCfg.SetDefault("report.format", DefaultReportFormat)
	viperCfg.SetDefault("report.utc", false)
	viperCfg.SetDefault("report.title", "")

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.json", false)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.trace_commits", false)
	viperCfg.SetDefault("telemetry.metrics_file", "")
}

// bindStandardEnv lets the OpenTelemetry exporter variables configure
// telemetry alongside their GITLINES_ forms.
func bindStandardEnv(viperCfg *viper.Viper) error {
	bindings := map[string]string{
		"telemetry.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
		"telemetry.otlp_headers":  "OTEL_EXPORTER_OTLP_HEADERS",
		"telemetry.otlp_insecure": "OTEL_EXPORTER_OTLP_INSECURE",
	}

	for key, env := range bindings {
		prefixed := envPrefix + envKeySeparator + strings.ToUpper(strings.ReplaceAll(key, ".", envKeySeparator))

		err := viperCfg.BindEnv(key, prefixed, env)
		if err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	return nil
}

func bindFlags(viperCfg *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	for key, name := range FlagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		err := viperCfg.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}

	return nil
}

// splitList flattens comma separated items, which environment variables and
// YAML scalars produce, and drops empty ones.
func splitList(items []string) []string {
	var out []string

	for _, item := range items {
		for part := range strings.SplitSeq(item, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}
