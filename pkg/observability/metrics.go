package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommandsTotal   = "gitlines.commands.total"
	metricCommandDuration = "gitlines.command.duration.seconds"
	metricCommandErrors   = "gitlines.command.errors.total"
	metricCommandsRunning = "gitlines.commands.inflight"

	attrCommand = "command"
	attrStatus  = "status"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers 10ms to 600s: a cached run over a small
// repository finishes in milliseconds, a cold run over a long history in
// minutes.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// CommandMetrics holds rate, error and duration instruments for CLI commands.
type CommandMetrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

// NewCommandMetrics creates command metric instruments from the given meter.
func NewCommandMetrics(mt metric.Meter) (*CommandMetrics, error) {
	total, err := mt.Int64Counter(metricCommandsTotal,
		metric.WithDescription("Total number of executed commands"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommandsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricCommandDuration,
		metric.WithDescription("Command duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommandDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricCommandErrors,
		metric.WithDescription("Total number of failed commands"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommandErrors, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricCommandsRunning,
		metric.WithDescription("Number of running commands"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommandsRunning, err)
	}

	return &CommandMetrics{
		total:    total,
		duration: duration,
		errors:   errTotal,
		inflight: inflight,
	}, nil
}

// RecordCommand records a finished command. A non-nil cmdErr marks it failed.
// Safe to call on a nil receiver.
func (cm *CommandMetrics) RecordCommand(ctx context.Context, command string, cmdErr error, duration time.Duration) {
	if cm == nil {
		return
	}

	status := statusOK
	if cmdErr != nil {
		status = statusError
	}

	attrs := metric.WithAttributes(
		attribute.String(attrCommand, command),
		attribute.String(attrStatus, status),
	)

	cm.total.Add(ctx, 1, attrs)
	cm.duration.Record(ctx, duration.Seconds(), attrs)

	if cmdErr != nil {
		cm.errors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCommand, command)))
	}
}

// TrackInflight increments the running gauge and returns a function to decrement it.
func (cm *CommandMetrics) TrackInflight(ctx context.Context, command string) func() {
	if cm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrCommand, command))
	cm.inflight.Add(ctx, 1, attrs)

	return func() {
		cm.inflight.Add(ctx, -1, attrs)
	}
}
