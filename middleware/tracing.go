package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Tracing wraps each execution in a span from the global TracerProvider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(instrumentationName))
}

// TracingWithTracer is Tracing with an explicit tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "escrow.job.execute",
			trace.WithAttributes(
				attribute.String("escrow.job.id", j.ID.String()),
				attribute.String("escrow.job.type", j.Type),
				attribute.String("escrow.job.queue", j.Queue),
				attribute.String("escrow.job.mode", string(j.Mode)),
				attribute.Int("escrow.job.attempt", attempt(j)),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}
}
