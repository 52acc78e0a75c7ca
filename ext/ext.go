// Package ext defines lifecycle hooks for the job dispatcher. Each hook is
// its own interface so an extension implements only the events it needs.
package ext

import (
	"context"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Extension is the base interface all extensions implement.
type Extension interface {
	// Name identifies the extension in logs.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a dispatcher accepts a job.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called before each execution attempt.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a handler returns nil.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job exhausts its attempts.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetrying is called when a failed attempt is scheduled to run again.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error
}

// JobDLQ is called after an exhausted job is recorded in the dead letter
// queue.
type JobDLQ interface {
	OnJobDLQ(ctx context.Context, j *job.Job, err error) error
}

// JobStalled is called when the watchdog takes an active job back from a
// worker that stopped heartbeating.
type JobStalled interface {
	OnJobStalled(ctx context.Context, j *job.Job) error
}

// ──────────────────────────────────────────────────
// Dispatcher hooks
// ──────────────────────────────────────────────────

// ModeChanged is called when the dispatcher switches between broker and
// fallback mode. cause is the probe or enqueue error that triggered a
// switch to fallback, and nil on recovery.
type ModeChanged interface {
	OnModeChanged(ctx context.Context, from, to job.Mode, cause error) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
