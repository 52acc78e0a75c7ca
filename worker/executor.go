// Package worker runs jobs. The Executor invokes registered handlers through
// middleware and applies the retry policy; a Pool claims jobs from one
// queue with a fixed number of goroutines.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/middleware"
	"github.com/debnit/MsmeBazaar-sub000/queue"
)

// Outcome is what an attempt did to a job.
type Outcome int

const (
	// OutcomeCompleted means the handler succeeded.
	OutcomeCompleted Outcome = iota
	// OutcomeRetry means the handler failed and the job waits for RunAt.
	OutcomeRetry
	// OutcomeExhausted means the handler failed on the last allowed attempt.
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetry:
		return "retry"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result describes one attempt.
type Result struct {
	Outcome Outcome
	// Err is the handler error, nil on success.
	Err error
	// Delay is the wait before the retry when Outcome is OutcomeRetry.
	Delay   time.Duration
	Elapsed time.Duration
}

// Executor runs single attempts. It holds no store: callers persist the
// mutated job, then call Report.
type Executor struct {
	registry   *job.Registry
	queues     *queue.Set
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor. Retry policies come from queues.
func NewExecutor(
	registry *job.Registry,
	queues *queue.Set,
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}
	return &Executor{
		registry:   registry,
		queues:     queues,
		extensions: extensions,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Invoke runs j's handler through the middleware chain.
func (e *Executor) Invoke(ctx context.Context, j *job.Job) error {
	handler, ok := e.registry.Get(j.Type)
	if !ok {
		return fmt.Errorf("%w: %q", escrow.ErrUnknownJobType, j.Type)
	}
	return e.mw(ctx, j, func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	})
}

// Run executes one attempt and applies its result to j: Attempts is
// incremented and State, RunAt, LastError and CompletedAt are set. Nothing
// is persisted.
func (e *Executor) Run(ctx context.Context, j *job.Job) Result {
	e.extensions.EmitJobStarted(ctx, j)

	start := time.Now()
	err := e.Invoke(ctx, j)
	res := Result{Err: err, Elapsed: time.Since(start)}

	now := time.Now().UTC()
	j.Attempts++
	j.UpdatedAt = now

	if err == nil {
		j.State = job.StateCompleted
		j.LastError = ""
		j.CompletedAt = &now
		res.Outcome = OutcomeCompleted
		return res
	}

	j.LastError = err.Error()
	delay, exhausted := e.queues.Policy(j.Queue, j.MaxAttempts).Next(j.Attempts)
	if exhausted {
		j.State = job.StateFailed
		j.CompletedAt = &now
		res.Outcome = OutcomeExhausted
		return res
	}

	j.State = job.StateWaiting
	j.RunAt = now.Add(delay)
	res.Outcome = OutcomeRetry
	res.Delay = delay
	return res
}

// Report emits lifecycle events for a persisted attempt. An exhausted job
// is recorded in dead when dead is non-nil.
func (e *Executor) Report(ctx context.Context, j *job.Job, res Result, dead *dlq.Service) {
	switch res.Outcome {
	case OutcomeCompleted:
		e.extensions.EmitJobCompleted(ctx, j, res.Elapsed)

	case OutcomeRetry:
		e.extensions.EmitJobRetrying(ctx, j, j.Attempts, j.RunAt)
		e.logger.Info("job scheduled for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.Int("attempt", j.Attempts),
			slog.Int("max_attempts", j.MaxAttempts),
			slog.Duration("delay", res.Delay),
		)

	case OutcomeExhausted:
		failure := fmt.Errorf("%w: %s after %d attempts: %w", escrow.ErrJobExhausted, j.Type, j.Attempts, res.Err)
		if dead != nil {
			if err := dead.Push(ctx, j, res.Err); err != nil {
				e.logger.Error("failed to push job to dlq",
					slog.String("job_id", j.ID.String()),
					slog.String("error", err.Error()),
				)
			} else {
				e.extensions.EmitJobDLQ(ctx, j, failure)
			}
		}
		e.extensions.EmitJobFailed(ctx, j, failure)
		e.logger.Warn("job exhausted its attempts",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("queue", j.Queue),
			slog.String("mode", string(j.Mode)),
			slog.Int("attempts", j.Attempts),
			slog.String("error", failure.Error()),
		)
	}
}
