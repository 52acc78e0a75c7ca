package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/dispatcher"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
	mw "github.com/debnit/MsmeBazaar-sub000/middleware"
	"github.com/debnit/MsmeBazaar-sub000/observability"
	"github.com/debnit/MsmeBazaar-sub000/queue"
	"github.com/debnit/MsmeBazaar-sub000/store"
	"github.com/debnit/MsmeBazaar-sub000/store/memory"
	"github.com/debnit/MsmeBazaar-sub000/worker"
)

const instrumentationName = "github.com/debnit/MsmeBazaar-sub000"

var _ dispatcher.Dispatcher = (*Engine)(nil)

// Engine owns the dispatch subsystem.
type Engine struct {
	config     escrow.Config
	store      store.Store
	fallback   store.Store
	logger     *slog.Logger
	extensions *ext.Registry
	registry   *job.Registry
	queues     *queue.Set
	manager    *queue.Manager
	executor   *worker.Executor
	dead       *dlq.Service
	sw         *dispatcher.Switch
	monitor    *dispatcher.Monitor
	pools      []*worker.Pool

	queueConfigs []queue.Config
	pending      []ext.Extension
	mws          []mw.Middleware

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the broker store shared by the Broker dispatcher, the
// worker pools and the DLQ.
func WithStore(s store.Store) Option {
	return func(eng *Engine) { eng.store = s }
}

// WithFallbackStore sets the process-local store the fallback dispatcher
// records into. Defaults to a fresh memory store.
func WithFallbackStore(s store.Store) Option {
	return func(eng *Engine) { eng.fallback = s }
}

// WithConfig sets the dispatch timing configuration.
func WithConfig(cfg escrow.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithQueues replaces the default queue declarations.
func WithQueues(configs ...queue.Config) Option {
	return func(eng *Engine) { eng.queueConfigs = append(eng.queueConfigs, configs...) }
}

// WithExtension registers a lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pending = append(eng.pending, e) }
}

// WithMiddleware appends middleware after the default chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithTracerProvider sets the tracer provider for the tracing middleware.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for the metrics middleware and
// the observability extension.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New builds an Engine. A broker store is required.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		config:   escrow.DefaultConfig(),
		registry: job.NewRegistry(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.store == nil {
		return nil, escrow.ErrNoStore
	}
	if eng.fallback == nil {
		eng.fallback = memory.New()
	}
	if eng.logger == nil {
		eng.logger = slog.Default()
	}
	if len(eng.queueConfigs) == 0 {
		eng.queueConfigs = queue.Defaults()
	}
	for _, cfg := range eng.queueConfigs {
		if cfg.Name == "" || cfg.Concurrency <= 0 {
			return nil, fmt.Errorf("%w: queue %q needs a name and positive concurrency", escrow.ErrValidation, cfg.Name)
		}
	}

	eng.queues = queue.NewSet(eng.queueConfigs...)
	eng.manager = queue.NewManager(eng.queueConfigs...)

	eng.extensions = ext.NewRegistry(eng.logger)
	eng.extensions.Register(eng.observabilityExtension())
	for _, e := range eng.pending {
		eng.extensions.Register(e)
	}

	eng.executor = worker.NewExecutor(eng.registry, eng.queues, eng.extensions, eng.logger, eng.middleware()...)
	eng.dead = dlq.NewService(eng.store, eng.store)

	dopts := []dispatcher.Option{
		dispatcher.WithLogger(eng.logger),
		dispatcher.WithExtensions(eng.extensions),
	}
	if eng.config.ProbeTimeout > 0 {
		dopts = append(dopts, dispatcher.WithProbeTimeout(eng.config.ProbeTimeout))
	}
	broker := dispatcher.NewBroker(eng.store, eng.registry, eng.queues, dopts...)
	inline := dispatcher.NewInline(eng.executor, eng.fallback, eng.registry, eng.queues, dopts...)
	eng.sw = dispatcher.NewSwitch(broker, inline, dopts...)
	eng.monitor = dispatcher.NewMonitor(eng.sw, eng.store, eng.config.HealthCheckInterval, dopts...)

	for _, cfg := range eng.queues.Configs() {
		eng.pools = append(eng.pools, worker.NewPool(cfg, eng.store, eng.executor,
			worker.WithPollInterval(eng.config.PollInterval),
			worker.WithHeartbeatInterval(eng.config.HeartbeatInterval),
			worker.WithStalledInterval(eng.config.StalledInterval),
			worker.WithAdmission(eng.manager),
			worker.WithDLQ(eng.dead),
			worker.WithExtensions(eng.extensions),
			worker.WithLogger(eng.logger),
		))
	}
	return eng, nil
}

func (eng *Engine) observabilityExtension() *observability.MetricsExtension {
	if eng.meterProvider != nil {
		return observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	}
	return observability.NewMetricsExtension()
}

// middleware builds the chain: recover → tracing → metrics → logging →
// timeout, followed by user middleware.
func (eng *Engine) middleware() []mw.Middleware {
	tracing := mw.Tracing()
	if eng.tracerProvider != nil {
		tracing = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	}
	metrics := mw.Metrics()
	if eng.meterProvider != nil {
		metrics = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	}

	chain := []mw.Middleware{
		mw.Recover(eng.logger),
		tracing,
		metrics,
		mw.Logging(eng.logger),
		mw.Timeout(),
	}
	return append(chain, eng.mws...)
}

// ──────────────────────────────────────────────────
// Registration and enqueue
// ──────────────────────────────────────────────────

// Register registers a typed job definition.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue marshals payload and enqueues it as def's job type on def's
// default queue.
func Enqueue[T any](ctx context.Context, eng *Engine, def *job.Definition[T], payload T, opts ...job.Option) (*dispatcher.Handle, error) {
	return dispatcher.EnqueueJSON(ctx, eng, "", def.Name, payload, opts...)
}

// Enqueue enqueues a pre-serialized payload through the mode selector.
func (eng *Engine) Enqueue(ctx context.Context, queueName, jobType string, payload []byte, opts ...job.Option) (*dispatcher.Handle, error) {
	return eng.sw.Enqueue(ctx, queueName, jobType, payload, opts...)
}

// Cancel removes a waiting job.
func (eng *Engine) Cancel(ctx context.Context, jobID id.JobID) error {
	return eng.sw.Cancel(ctx, jobID)
}

// Job returns a job from the broker or the fallback record.
func (eng *Engine) Job(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return eng.sw.Job(ctx, jobID)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start probes the broker, then starts the health monitor and one worker
// pool per queue. A broker that is down at boot leaves the dispatcher in
// fallback mode; Start still succeeds.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.monitor.Start(ctx); err != nil {
		return fmt.Errorf("start health monitor: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range eng.pools {
		g.Go(func() error {
			if err := p.Start(gctx); err != nil {
				return fmt.Errorf("start pool %q: %w", p.Queue(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	eng.logger.Info("dispatch engine started",
		slog.Int("queues", len(eng.pools)),
		slog.String("mode", string(eng.sw.Mode())),
	)
	return nil
}

// Stop stops the monitor and drains every pool. In-flight jobs get until
// ctx's deadline, or ShutdownTimeout when ctx has none.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && eng.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.config.ShutdownTimeout)
		defer cancel()
	}

	if err := eng.monitor.Stop(ctx); err != nil {
		eng.logger.Error("health monitor stop error", slog.String("error", err.Error()))
	}

	var g errgroup.Group
	for _, p := range eng.pools {
		g.Go(func() error { return p.Stop(ctx) })
	}
	err := g.Wait()

	eng.extensions.EmitShutdown(ctx)
	eng.logger.Info("dispatch engine stopped")
	return err
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Queues returns the queue declarations.
func (eng *Engine) Queues() *queue.Set { return eng.queues }

// QueueManager returns the per-queue admission controller.
func (eng *Engine) QueueManager() *queue.Manager { return eng.manager }

// Store returns the broker store.
func (eng *Engine) Store() store.Store { return eng.store }

// DLQService returns the broker DLQ.
func (eng *Engine) DLQService() *dlq.Service { return eng.dead }

// FallbackDLQ returns the process-local DLQ of the fallback dispatcher.
func (eng *Engine) FallbackDLQ() *dlq.Service { return eng.sw.Inline().DLQ() }

// Switch returns the mode selector.
func (eng *Engine) Switch() *dispatcher.Switch { return eng.sw }

// Mode returns the current dispatch mode.
func (eng *Engine) Mode() job.Mode { return eng.sw.Mode() }

// Pools returns the worker pools, one per queue.
func (eng *Engine) Pools() []*worker.Pool { return eng.pools }
