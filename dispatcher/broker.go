package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/queue"
	"github.com/debnit/MsmeBazaar-sub000/store"
)

var _ Dispatcher = (*Broker)(nil)

// Broker persists jobs to the broker store for the worker pools.
type Broker struct {
	builder
	store      store.Store
	extensions *ext.Registry
	logger     *slog.Logger
}

// NewBroker creates a Broker over s.
func NewBroker(s store.Store, registry *job.Registry, queues *queue.Set, opts ...Option) *Broker {
	o := buildOptions(opts)
	return &Broker{
		builder:    builder{registry: registry, queues: queues},
		store:      s,
		extensions: o.extensions,
		logger:     o.logger,
	}
}

// Enqueue persists a waiting job. Store failures are wrapped in
// escrow.ErrBrokerUnavailable.
func (b *Broker) Enqueue(ctx context.Context, queueName, jobType string, payload []byte, opts ...job.Option) (*Handle, error) {
	j, err := b.build(queueName, jobType, payload, job.ModeBroker, opts)
	if err != nil {
		return nil, err
	}
	if err := b.store.EnqueueJob(ctx, j); err != nil {
		if errors.Is(err, escrow.ErrJobAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: enqueue %s: %w", escrow.ErrBrokerUnavailable, jobType, err)
	}

	b.extensions.EmitJobEnqueued(ctx, j)
	b.logger.Debug("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.String("queue", j.Queue),
	)
	return handleFor(j, nil), nil
}

// Cancel removes a waiting job.
func (b *Broker) Cancel(ctx context.Context, jobID id.JobID) error {
	return b.store.RemoveJob(ctx, jobID)
}

// Job returns a job from the broker store.
func (b *Broker) Job(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return b.store.GetJob(ctx, jobID)
}

// Ping checks broker connectivity.
func (b *Broker) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}
