// Package middleware provides composable middleware around job handler
// execution. The same chain runs for jobs executed by worker pools and for
// jobs executed inline in fallback mode.
package middleware

import (
	"context"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Handler is the terminal function that runs the job's handler.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler. It receives the job being executed and the
// next handler, and must call next unless it short-circuits with an error.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes mws into one Middleware. The first element is the
// outermost wrapper:
//
//	Chain(recover, logging, timeout) runs recover → logging → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw, inner := mws[i], h
			h = func(ctx context.Context) error {
				return mw(ctx, j, inner)
			}
		}
		return h(ctx)
	}
}

// attempt is the 1-based number of the execution in progress.
func attempt(j *job.Job) int { return j.Attempts + 1 }
