package commands

import (
	"github.com/Sumatoshi-tech/gitlines/internal/config"
	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
	"github.com/Sumatoshi-tech/gitlines/pkg/filter"
)

// buildPipeline assembles the filters selected by cfg. The time window runs
// before the monthly cutoff so that commits outside the window never claim a
// month.
func buildPipeline(cfg *config.Config) (filter.Pipeline, error) {
	loc := cfg.Location()

	window, err := cfg.Window(loc)
	if err != nil {
		return filter.Pipeline{}, err
	}

	cutoff, err := cfg.CutoffPeriod()
	if err != nil {
		return filter.Pipeline{}, err
	}

	var commits filter.AllCommits

	if !window.Since.IsZero() || !window.Until.IsZero() {
		commits = append(commits, window)
	}

	switch {
	case cfg.Filter.Monthly:
		commits = append(commits, filter.NewMonthlyCutoff(cutoff, loc))
	case !cutoff.IsZero():
		commits = append(commits, filter.CommitFunc(func(c backend.Commit) bool {
			return !filter.PeriodOf(c.When.In(loc)).Before(cutoff)
		}))
	}

	var blobs filter.AllBlobs

	if len(cfg.Filter.Extensions) > 0 {
		blobs = append(blobs, filter.NewExtensions(cfg.Filter.Extensions, cfg.Filter.CaseSensitive))
	}

	if len(cfg.Filter.Languages) > 0 {
		blobs = append(blobs, filter.NewLanguages(cfg.Filter.Languages))
	}

	if cfg.Filter.SkipVendored {
		blobs = append(blobs, filter.SkipVendored{})
	}

	var pipeline filter.Pipeline

	if len(commits) > 0 {
		pipeline.Commit = commits
	}

	if len(blobs) > 0 {
		pipeline.Blob = blobs
	}

	return pipeline, nil
}
