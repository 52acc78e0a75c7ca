package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// entry pairs a hook with the name of the extension that provided it.
type entry[H any] struct {
	name string
	hook H
}

// Registry fans lifecycle events out to registered extensions. Hooks are
// resolved once at registration. Register before the dispatcher starts;
// emitting is then safe from any goroutine.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobEnqueued  []entry[JobEnqueued]
	jobStarted   []entry[JobStarted]
	jobCompleted []entry[JobCompleted]
	jobFailed    []entry[JobFailed]
	jobRetrying  []entry[JobRetrying]
	jobDLQ       []entry[JobDLQ]
	jobStalled   []entry[JobStalled]
	modeChanged  []entry[ModeChanged]
	shutdown     []entry[Shutdown]
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds e. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	r.jobEnqueued = collect(r.jobEnqueued, name, e)
	r.jobStarted = collect(r.jobStarted, name, e)
	r.jobCompleted = collect(r.jobCompleted, name, e)
	r.jobFailed = collect(r.jobFailed, name, e)
	r.jobRetrying = collect(r.jobRetrying, name, e)
	r.jobDLQ = collect(r.jobDLQ, name, e)
	r.jobStalled = collect(r.jobStalled, name, e)
	r.modeChanged = collect(r.modeChanged, name, e)
	r.shutdown = collect(r.shutdown, name, e)
}

// collect appends e to hooks when e implements H.
func collect[H any](hooks []entry[H], name string, e Extension) []entry[H] {
	if h, ok := e.(H); ok {
		return append(hooks, entry[H]{name: name, hook: h})
	}
	return hooks
}

// emit calls every hook in order. A failing hook is logged and never
// reaches the job pipeline.
func emit[H any](r *Registry, event string, hooks []entry[H], call func(H) error) {
	for _, e := range hooks {
		if err := call(e.hook); err != nil {
			r.logger.Warn("extension hook error",
				slog.String("hook", event),
				slog.String("extension", e.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	emit(r, "OnJobEnqueued", r.jobEnqueued, func(h JobEnqueued) error { return h.OnJobEnqueued(ctx, j) })
}

func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	emit(r, "OnJobStarted", r.jobStarted, func(h JobStarted) error { return h.OnJobStarted(ctx, j) })
}

func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	emit(r, "OnJobCompleted", r.jobCompleted, func(h JobCompleted) error { return h.OnJobCompleted(ctx, j, elapsed) })
}

func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	emit(r, "OnJobFailed", r.jobFailed, func(h JobFailed) error { return h.OnJobFailed(ctx, j, jobErr) })
}

func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) {
	emit(r, "OnJobRetrying", r.jobRetrying, func(h JobRetrying) error { return h.OnJobRetrying(ctx, j, attempt, nextRunAt) })
}

// EmitJobDLQ fires after the entry is stored.
func (r *Registry) EmitJobDLQ(ctx context.Context, j *job.Job, jobErr error) {
	emit(r, "OnJobDLQ", r.jobDLQ, func(h JobDLQ) error { return h.OnJobDLQ(ctx, j, jobErr) })
}

// EmitJobStalled fires once per job the watchdog puts back in waiting.
func (r *Registry) EmitJobStalled(ctx context.Context, j *job.Job) {
	emit(r, "OnJobStalled", r.jobStalled, func(h JobStalled) error { return h.OnJobStalled(ctx, j) })
}

// EmitModeChanged fires on every broker/fallback transition.
func (r *Registry) EmitModeChanged(ctx context.Context, from, to job.Mode, cause error) {
	emit(r, "OnModeChanged", r.modeChanged, func(h ModeChanged) error { return h.OnModeChanged(ctx, from, to, cause) })
}

func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, "OnShutdown", r.shutdown, func(h Shutdown) error { return h.OnShutdown(ctx) })
}
