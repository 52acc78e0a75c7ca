package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// instrumentationName is the OTel scope for job execution telemetry.
const instrumentationName = "github.com/debnit/MsmeBazaar-sub000"

// Metrics records execution metrics on the global MeterProvider.
//
// Instruments:
//   - escrow.job.duration (Float64Histogram, seconds)
//   - escrow.job.executions (Int64Counter)
//
// Both carry job_type, queue, mode and status ("ok" or "error").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter is Metrics with an explicit meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The OTel API returns usable noop instruments alongside any error.
	duration, _ := meter.Float64Histogram(
		"escrow.job.duration",
		metric.WithDescription("Duration of a job handler execution"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"escrow.job.executions",
		metric.WithDescription("Job handler executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("job_type", j.Type),
			attribute.String("queue", j.Queue),
			attribute.String("mode", string(j.Mode)),
			attribute.String("status", status),
		)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		executions.Add(ctx, 1, attrs)
		return err
	}
}
