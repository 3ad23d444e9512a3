package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitlines/internal/config"
	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
	"github.com/Sumatoshi-tech/gitlines/pkg/linecache"
	"github.com/Sumatoshi-tech/gitlines/pkg/lines"
	"github.com/Sumatoshi-tech/gitlines/pkg/observability"
	"github.com/Sumatoshi-tech/gitlines/pkg/report"
	"github.com/Sumatoshi-tech/gitlines/pkg/version"
)

const commandCount = "count"

// NewCountCommand creates the count command.
func NewCountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count <repository>",
		Short: "Print the line total of every selected commit",
		Long: `Walk the history of a repository most-recent-first and print, for every
commit passing the commit filters, its time, ID and the number of lines in
the blobs passing the blob filters.

Counting PHP, JavaScript, Perl and Python once per month since October 2014:
  gitlines count --monthly --cutoff 2014-10 -e php,js,pl,py -c cache.json <repository>`,
		Args: cobra.ExactArgs(1),
		RunE: runCount,
	}

	flags := cmd.Flags()
	flags.String("backend", config.DefaultBackend, "Repository backend: git, gogit, libgit2")
	flags.String("rev", config.DefaultRevision, "Revision to list history from")
	flags.Bool("first-parent", false, "Follow only the first parent of merge commits")
	flags.IntP("workers", "w", config.DefaultWorkers, "Blobs of one commit counted concurrently")
	flags.StringP("cache", "c", "", "Line count cache file, read at start and rewritten on success (.lz4 suffix compresses)")
	flags.Bool("strict-cache", config.DefaultCacheStrict, "Abort when a cached count disagrees with the blob content")
	flags.Bool("verify-cache", false, "Recompute cached counts and compare them with the cache")
	flags.String("cutoff", "", "Ignore commits before this month (YYYY-MM)")
	flags.Bool("monthly", false, "Report only the most recent commit of each month")
	flags.StringSliceP("ext", "e", nil, "Count only files with these extensions (e.g. php,js,pl,py)")
	flags.Bool("case-sensitive", config.DefaultCaseSensitive, "Match extensions case-sensitively")
	flags.StringSlice("language", nil, "Count only files detected as these languages (e.g. Go,Python)")
	flags.Bool("skip-vendored", false, "Skip vendored and generated dependency paths")
	flags.String("since", "", "Ignore commits before this day (YYYY-MM-DD)")
	flags.String("until", "", "Ignore commits after this day (YYYY-MM-DD)")
	flags.StringP("format", "f", config.DefaultReportFormat, "Output format: text, json, yaml, table, plot")
	flags.Bool("utc", false, "Print times and compute months in UTC instead of local time")
	flags.String("title", "", "Title of table and plot output")
	flags.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.Bool("log-json", false, "Log in JSON")
	flags.String("metrics-file", "", "Write Prometheus text format metrics to this file on exit")

	return cmd
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	providers, err := initObservability(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	metrics, err := observability.NewCommandMetrics(providers.Meter)
	if err != nil {
		return errors.Join(err, providers.Shutdown(ctx))
	}

	done := metrics.TrackInflight(ctx, commandCount)
	start := time.Now()

	runErr := count(ctx, cfg, providers, args[0], cmd.OutOrStdout())

	done()
	metrics.RecordCommand(ctx, commandCount, runErr, time.Since(start))

	shutdownErr := providers.Shutdown(context.WithoutCancel(ctx))
	if shutdownErr != nil {
		providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
	}

	return runErr
}

// count runs one counting pass. The cache file is rewritten only when every
// step succeeded.
func count(ctx context.Context, cfg *config.Config, providers observability.Providers, repoPath string, out io.Writer) error {
	logger := providers.Logger

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	cache := linecache.New()

	if cfg.Cache.Path != "" {
		cache, err = linecache.Open(cfg.Cache.Path)
		if err != nil {
			return err
		}

		logger.DebugContext(ctx, "cache loaded", "path", cfg.Cache.Path, "entries", cache.Len())
	}

	err = observability.RegisterCacheMetrics(providers.Meter, cache)
	if err != nil {
		return err
	}

	runMetrics, err := observability.NewRunMetrics(providers.Meter)
	if err != nil {
		return err
	}

	src, err := backend.Open(cfg.Backend, repoPath, backend.Options{
		Revision:    cfg.Revision,
		FirstParent: cfg.FirstParent,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", repoPath, err)
	}

	writer, err := report.NewWriter(cfg.Report.Format, out, report.Options{
		Location: cfg.Location(),
		Title:    cfg.Report.Title,
	})
	if err != nil {
		return errors.Join(err, src.Close())
	}

	agg := lines.New(lines.Options{
		Workers:      cfg.Workers,
		Verify:       cfg.Cache.Verify,
		Lenient:      !cfg.Cache.Strict,
		TraceCommits: cfg.Telemetry.TraceCommits,
		Logger:       logger,
		Tracer:       providers.Tracer,
		Metrics:      runMetrics,
	})

	_, err = agg.Run(ctx, src, cache, pipeline, writer.Write)

	closeErr := src.Close()
	if closeErr != nil {
		logger.WarnContext(ctx, "close repository failed", "error", closeErr)
	}

	if err != nil {
		return err
	}

	err = writer.Close()
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if cfg.Cache.Path == "" {
		return nil
	}

	err = cache.Save(cfg.Cache.Path)
	if err != nil {
		return err
	}

	logger.DebugContext(ctx, "cache saved", "path", cfg.Cache.Path, "entries", cache.Len())

	return nil
}

func initObservability(cfg *config.Config, logOut io.Writer) (observability.Providers, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return observability.Providers{}, err
	}

	oc := observability.DefaultConfig()
	oc.ServiceVersion = version.Version
	oc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	oc.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	oc.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	oc.SampleRatio = cfg.Telemetry.SampleRatio
	oc.MetricsFile = cfg.Telemetry.MetricsFile
	oc.LogLevel = level
	oc.LogJSON = cfg.Log.JSON
	oc.LogOutput = logOut

	return observability.Init(oc)
}
