package middleware

import (
	"context"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Timeout bounds the handler's context by j.Timeout. Jobs with no timeout
// run under the caller's context unchanged.
func Timeout() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, j.Timeout)
		defer cancel()
		return next(ctx)
	}
}
