// Package middleware provides composable middleware for job execution.
//
// Middleware are composed with [Chain]; the first element is the outermost
// wrapper:
//
//	chain := middleware.Chain(
//	    middleware.Recover(logger),
//	    middleware.Logging(logger),
//	    middleware.Timeout(),
//	)
//
// # Built-in Middleware
//
//   - [Recover] converts handler panics into errors
//   - [Logging] logs type, queue, mode, attempt and elapsed time
//   - [Timeout] applies the job's per-execution deadline
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records duration and outcome counters
//
// # Writing Custom Middleware
//
//	func Audit(log *slog.Logger) middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) error {
//	        err := next(ctx)
//	        log.Info("audited", slog.String("job_id", j.ID.String()))
//	        return err
//	    }
//	}
package middleware
