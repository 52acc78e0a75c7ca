package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/queue"
	"github.com/debnit/MsmeBazaar-sub000/store"
	"github.com/debnit/MsmeBazaar-sub000/worker"
)

var _ Dispatcher = (*Inline)(nil)

// Inline runs jobs synchronously in the calling goroutine. Failed attempts
// are retried immediately, without backoff, until the job's budget is
// spent. Final job records and dead letters go to a process-local store.
type Inline struct {
	builder
	executor   *worker.Executor
	local      store.Store
	dead       *dlq.Service
	extensions *ext.Registry
	logger     *slog.Logger
}

// NewInline creates an Inline dispatcher recording into local, normally a
// memory store.
func NewInline(executor *worker.Executor, local store.Store, registry *job.Registry, queues *queue.Set, opts ...Option) *Inline {
	o := buildOptions(opts)
	return &Inline{
		builder:    builder{registry: registry, queues: queues},
		executor:   executor,
		local:      local,
		dead:       dlq.NewService(local, local),
		extensions: o.extensions,
		logger:     o.logger,
	}
}

// Enqueue runs the job to completion or exhaustion. The returned error is
// only for requests that could not be accepted; handler failures are in
// Handle.Err. Delay options are ignored.
func (in *Inline) Enqueue(ctx context.Context, queueName, jobType string, payload []byte, opts ...job.Option) (*Handle, error) {
	j, err := in.build(queueName, jobType, payload, job.ModeFallback, opts)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	j.RunAt = now
	in.extensions.EmitJobEnqueued(ctx, j)

	var res worker.Result
	for {
		j.State = job.StateActive
		started := time.Now().UTC()
		j.StartedAt = &started

		res = in.executor.Run(ctx, j)
		if res.Outcome != worker.OutcomeRetry {
			break
		}
		if ctx.Err() != nil {
			// The caller gave up; stop spending attempts.
			j.State = job.StateFailed
			res.Outcome = worker.OutcomeExhausted
			break
		}
		in.extensions.EmitJobRetrying(ctx, j, j.Attempts, time.Now().UTC())
	}

	if err := in.local.EnqueueJob(context.WithoutCancel(ctx), j); err != nil {
		in.logger.Error("failed to record fallback job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	in.executor.Report(context.WithoutCancel(ctx), j, res, in.dead)

	return handleFor(j, res.Err), nil
}

// Job returns a job executed in fallback mode.
func (in *Inline) Job(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return in.local.GetJob(ctx, jobID)
}

// DLQ returns the process-local dead letter queue.
func (in *Inline) DLQ() *dlq.Service { return in.dead }
