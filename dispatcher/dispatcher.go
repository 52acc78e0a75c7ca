package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/queue"
)

// Dispatcher accepts a job for execution.
type Dispatcher interface {
	Enqueue(ctx context.Context, queue, jobType string, payload []byte, opts ...job.Option) (*Handle, error)
}

// Handle describes an accepted job. For broker jobs State is waiting; for
// fallback jobs it is the final state and Err holds the last handler error.
type Handle struct {
	JobID    id.JobID  `json:"job_id"`
	Queue    string    `json:"queue"`
	Type     string    `json:"type"`
	Mode     job.Mode  `json:"mode"`
	State    job.State `json:"state"`
	Attempts int       `json:"attempts"`
	Err      error     `json:"-"`
}

// EnqueueJSON marshals payload and enqueues it on d. An empty queue
// resolves to the job type's default queue.
func EnqueueJSON[T any](ctx context.Context, d Dispatcher, queueName, jobType string, payload T, opts ...job.Option) (*Handle, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload for job %q: %w", escrow.ErrValidation, jobType, err)
	}
	return d.Enqueue(ctx, queueName, jobType, data, opts...)
}

func handleFor(j *job.Job, err error) *Handle {
	return &Handle{
		JobID:    j.ID,
		Queue:    j.Queue,
		Type:     j.Type,
		Mode:     j.Mode,
		State:    j.State,
		Attempts: j.Attempts,
		Err:      err,
	}
}

// Option configures a Broker, Inline, Switch or Monitor.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	extensions   *ext.Registry
	probeTimeout time.Duration
}

func buildOptions(opts []Option) options {
	o := options{probeTimeout: 3 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.extensions == nil {
		o.extensions = ext.NewRegistry(o.logger)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithExtensions sets the lifecycle hook registry.
func WithExtensions(r *ext.Registry) Option {
	return func(o *options) { o.extensions = r }
}

// WithProbeTimeout bounds each Monitor health probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *options) { o.probeTimeout = d }
}

// builder validates enqueue requests and resolves job defaults from the
// job type's registered options and the queue declaration.
type builder struct {
	registry *job.Registry
	queues   *queue.Set
}

// validate checks that the queue and job type are registered. An empty
// queue resolves to the job type's default queue.
func (b builder) validate(queueName, jobType string) (queue.Config, job.Options, error) {
	typeOpts, ok := b.registry.Options(jobType)
	if !ok {
		return queue.Config{}, job.Options{}, fmt.Errorf("%w: %q", escrow.ErrUnknownJobType, jobType)
	}
	if queueName == "" {
		queueName = typeOpts.Queue
	}
	if queueName == "" {
		queueName = queue.Default
	}
	cfg, err := b.queues.Get(queueName)
	if err != nil {
		return queue.Config{}, job.Options{}, err
	}
	return cfg, typeOpts, nil
}

func (b builder) build(queueName, jobType string, payload []byte, mode job.Mode, opts []job.Option) (*job.Job, error) {
	cfg, typeOpts, err := b.validate(queueName, jobType)
	if err != nil {
		return nil, err
	}
	o := typeOpts.Apply(opts...)

	now := time.Now().UTC()
	j := &job.Job{
		ID:          id.NewJobID(),
		Type:        jobType,
		Queue:       cfg.Name,
		Payload:     payload,
		State:       job.StateWaiting,
		Mode:        mode,
		Priority:    cfg.Priority,
		MaxAttempts: cfg.Policy(o.MaxAttempts).MaxAttempts,
		Delay:       o.Delay,
		Timeout:     o.Timeout,
		RunAt:       now.Add(o.Delay),
		EnqueuedAt:  now,
		UpdatedAt:   now,
	}
	if o.Priority != 0 {
		j.Priority = o.Priority
	}
	if cfg.FIFO() {
		j.Priority = 0
	}
	return j, nil
}
