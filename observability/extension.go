package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobEnqueued  = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobRetrying  = (*MetricsExtension)(nil)
	_ ext.JobDLQ       = (*MetricsExtension)(nil)
	_ ext.JobStalled   = (*MetricsExtension)(nil)
	_ ext.ModeChanged  = (*MetricsExtension)(nil)
)

const meterName = "github.com/debnit/MsmeBazaar-sub000/observability"

// MetricsExtension counts job lifecycle events and dispatcher mode switches
// as OpenTelemetry counters. Every job counter carries job_type, queue and
// mode attributes.
type MetricsExtension struct {
	enqueued    metric.Int64Counter
	completed   metric.Int64Counter
	failed      metric.Int64Counter
	retried     metric.Int64Counter
	dlq         metric.Int64Counter
	stalled     metric.Int64Counter
	modeChanges metric.Int64Counter
}

// NewMetricsExtension uses the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter uses the given meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// Instrument errors still yield a noop counter.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		enqueued:    counter("escrow.job.enqueued", "Jobs accepted by a dispatcher"),
		completed:   counter("escrow.job.completed", "Jobs whose handler succeeded"),
		failed:      counter("escrow.job.failed", "Jobs that exhausted their attempts"),
		retried:     counter("escrow.job.retried", "Failed attempts scheduled for retry"),
		dlq:         counter("escrow.job.dlq", "Jobs recorded in the dead letter queue"),
		stalled:     counter("escrow.job.stalled", "Active jobs requeued by the watchdog"),
		modeChanges: counter("escrow.dispatcher.mode_changes", "Dispatcher broker/fallback switches"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func jobAttrs(j *job.Job) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("job_type", j.Type),
		attribute.String("queue", j.Queue),
		attribute.String("mode", string(j.Mode)),
	)
}

// ── Job lifecycle hooks ─────────────────────────────

func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.enqueued.Add(ctx, 1, jobAttrs(j))
	return nil
}

func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.completed.Add(ctx, 1, jobAttrs(j))
	return nil
}

func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.failed.Add(ctx, 1, jobAttrs(j))
	return nil
}

func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.retried.Add(ctx, 1, jobAttrs(j))
	return nil
}

func (m *MetricsExtension) OnJobDLQ(ctx context.Context, j *job.Job, _ error) error {
	m.dlq.Add(ctx, 1, jobAttrs(j))
	return nil
}

func (m *MetricsExtension) OnJobStalled(ctx context.Context, j *job.Job) error {
	m.stalled.Add(ctx, 1, jobAttrs(j))
	return nil
}

// ── Dispatcher hooks ────────────────────────────────

func (m *MetricsExtension) OnModeChanged(ctx context.Context, from, to job.Mode, _ error) error {
	m.modeChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	return nil
}
