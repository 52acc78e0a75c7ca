package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Recover turns a handler panic into an error so the attempt counts as a
// failure and goes through the retry policy.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job handler panicked",
					slog.String("job_type", j.Type),
					slog.String("job_id", j.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("panic in job %s: %v", j.Type, r)
			}
		}()
		return next(ctx)
	}
}
