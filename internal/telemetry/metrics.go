// Package telemetry records scheduling measurements as OpenTelemetry
// metrics.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

const meterName = "autopilot"

// Instrument names.
const (
	TasksQueued       = "autopilot.tasks.queued"
	TasksFinished     = "autopilot.tasks.finished"
	TaskDuration      = "autopilot.task.duration_seconds"
	ValidationQuality = "autopilot.validation.quality"
	HealingProposed   = "autopilot.healing.proposed"
	HealingApplied    = "autopilot.healing.applied"
)

// Metrics holds all autopilot metric instruments. It implements the
// orchestrator's MetricsRecorder.
type Metrics struct {
	Queued   metric.Int64Counter
	Finished metric.Int64Counter
	Duration metric.Float64Histogram
	Quality  metric.Float64Histogram
	Proposed metric.Int64Counter
	Applied  metric.Int64Counter
}

// NewMetrics creates all metric instruments on mp, or on the global
// provider when mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Queued, err = meter.Int64Counter(TasksQueued,
		metric.WithDescription("Number of tasks queued"))
	if err != nil {
		return nil, err
	}

	m.Finished, err = meter.Int64Counter(TasksFinished,
		metric.WithDescription("Number of tasks that completed or failed"))
	if err != nil {
		return nil, err
	}

	m.Duration, err = meter.Float64Histogram(TaskDuration,
		metric.WithDescription("Task execution time in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.Quality, err = meter.Float64Histogram(ValidationQuality,
		metric.WithDescription("Validation quality score, 0 to 100"))
	if err != nil {
		return nil, err
	}

	m.Proposed, err = meter.Int64Counter(HealingProposed,
		metric.WithDescription("Number of healing actions proposed"))
	if err != nil {
		return nil, err
	}

	m.Applied, err = meter.Int64Counter(HealingApplied,
		metric.WithDescription("Number of healing actions written to artifacts"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// TaskQueued counts a task entering the queue.
func (m *Metrics) TaskQueued(ctx context.Context, task *models.Task) {
	m.Queued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", task.Metadata.Category),
		attribute.String("priority", string(task.Priority)),
	))
}

// TaskFinished counts a completed or failed execution and its duration.
func (m *Metrics) TaskFinished(ctx context.Context, task *models.Task, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("category", task.Metadata.Category),
		attribute.String("status", string(task.Status)),
	)
	m.Finished.Add(ctx, 1, attrs)
	m.Duration.Record(ctx, elapsed.Seconds(), attrs)
}

// ValidationScored records a validation report's quality.
func (m *Metrics) ValidationScored(ctx context.Context, report models.ValidationReport) {
	m.Quality.Record(ctx, report.Scores.Quality, metric.WithAttributes(
		attribute.Bool("passed", report.Passed),
	))
}

// HealingProposed counts proposed healing actions.
func (m *Metrics) HealingProposed(ctx context.Context, n int) {
	m.Proposed.Add(ctx, int64(n))
}

// HealingApplied counts healing actions written to an artifact.
func (m *Metrics) HealingApplied(ctx context.Context, n int) {
	m.Applied.Add(ctx, int64(n))
}
