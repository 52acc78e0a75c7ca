package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Logging logs each execution's start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		attrs := []any{
			slog.String("job_type", j.Type),
			slog.String("job_id", j.ID.String()),
			slog.String("queue", j.Queue),
			slog.String("mode", string(j.Mode)),
			slog.Int("attempt", attempt(j)),
		}
		logger.Debug("job started", attrs...)

		start := time.Now()
		err := next(ctx)
		attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))

		if err != nil {
			logger.Warn("job attempt failed", append(attrs, slog.String("error", err.Error()))...)
			return err
		}
		logger.Info("job completed", attrs...)
		return nil
	}
}
