package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/queue"
)

// Admission gates job starts. queue.Manager implements it.
type Admission interface {
	Acquire(queue string) bool
	Release(queue string)
}

// Pool runs the workers of one queue. Each worker claims the next eligible
// job under a fresh lease, runs one attempt and settles the result.
type Pool struct {
	queue      queue.Config
	store      job.Store
	executor   *Executor
	dead       *dlq.Service
	extensions *ext.Registry
	admission  Admission
	workerID   id.WorkerID
	logger     *slog.Logger

	pollInterval      time.Duration
	heartbeatInterval time.Duration
	stalledInterval   time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	activeMu sync.Mutex
	active   map[string]activeJob
}

type activeJob struct {
	lease  id.LeaseID
	cancel context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPollInterval sets how long an idle worker waits before polling again.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets how often active jobs are heartbeated. Zero
// disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithStalledInterval sets the watchdog threshold used when the queue does
// not set its own. Zero disables the watchdog.
func WithStalledInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.stalledInterval = d }
}

// WithAdmission gates starts through a (typically shared) queue manager.
func WithAdmission(a Admission) PoolOption {
	return func(p *Pool) { p.admission = a }
}

// WithDLQ records exhausted jobs.
func WithDLQ(s *dlq.Service) PoolOption {
	return func(p *Pool) { p.dead = s }
}

// WithExtensions sets the lifecycle hook registry.
func WithExtensions(r *ext.Registry) PoolOption {
	return func(p *Pool) { p.extensions = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pool for cfg with cfg.Concurrency workers.
func NewPool(cfg queue.Config, store job.Store, executor *Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:             cfg,
		store:             store,
		executor:          executor,
		workerID:          id.NewWorkerID(),
		logger:            slog.Default(),
		pollInterval:      escrow.DefaultConfig().PollInterval,
		heartbeatInterval: escrow.DefaultConfig().HeartbeatInterval,
		stalledInterval:   escrow.DefaultConfig().StalledInterval,
		active:            make(map[string]activeJob),
	}
	for _, opt := range opts {
		opt(p)
	}
	if cfg.StalledInterval > 0 {
		p.stalledInterval = cfg.StalledInterval
	}
	if p.extensions == nil {
		p.extensions = ext.NewRegistry(p.logger)
	}
	if p.queue.Concurrency < 1 {
		p.queue.Concurrency = 1
	}
	return p
}

// Queue returns the queue name.
func (p *Pool) Queue() string { return p.queue.Name }

// WorkerID identifies this pool's claims in the store.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the workers, the heartbeat loop and the stall watchdog.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	stop := make(chan struct{})
	p.stopCh = stop

	p.logger.Info("worker pool starting",
		slog.String("queue", p.queue.Name),
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.queue.Concurrency),
	)

	for range p.queue.Concurrency {
		p.wg.Add(1)
		go p.workLoop(stop)
	}
	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.every(stop, p.heartbeatInterval, p.sendHeartbeats)
	}
	if p.stalledInterval > 0 {
		p.wg.Add(1)
		go p.every(stop, p.stalledInterval, p.requeueStalled)
	}
	return nil
}

// Stop stops claiming and waits for in-flight jobs. When ctx expires first,
// in-flight handlers are cancelled and their results still settled. A
// stopped pool may be started again.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stop := p.stopCh
	p.mu.Unlock()

	close(stop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped", slog.String("queue", p.queue.Name))
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs",
			slog.String("queue", p.queue.Name),
		)
		p.cancelActive()
		<-done
	}
	return nil
}

func (p *Pool) workLoop(stop <-chan struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if !p.processNext() {
			p.sleep(stop)
		}
	}
}

// processNext claims and runs at most one job. It reports whether a job ran.
func (p *Pool) processNext() bool {
	if p.admission != nil {
		if !p.admission.Acquire(p.queue.Name) {
			return false
		}
		defer p.admission.Release(p.queue.Name)
	}

	jobs, err := p.store.DequeueJobs(context.Background(), []string{p.queue.Name}, p.workerID, 1)
	if err != nil {
		p.logger.Error("dequeue error",
			slog.String("queue", p.queue.Name),
			slog.String("error", err.Error()),
		)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	p.process(jobs[0])
	return true
}

func (p *Pool) process(j *job.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.track(j, cancel)
	defer p.untrack(j)

	res := p.executor.Run(ctx, j)

	// Settle and report outside the job's context: a cancelled handler still
	// has an outcome.
	settleCtx := context.Background()
	if err := p.store.SettleJob(settleCtx, j); err != nil {
		if errors.Is(err, escrow.ErrLeaseLost) {
			p.logger.Warn("job lease lost, result dropped",
				slog.String("job_id", j.ID.String()),
				slog.String("job_type", j.Type),
				slog.String("outcome", res.Outcome.String()),
			)
			return
		}
		p.logger.Error("failed to settle job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	p.executor.Report(settleCtx, j, res, p.dead)
}

func (p *Pool) every(stop <-chan struct{}, interval time.Duration, fn func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// sendHeartbeats refreshes every active lease. A job whose lease was taken
// by the watchdog is cancelled.
func (p *Pool) sendHeartbeats() {
	p.activeMu.Lock()
	snapshot := make(map[string]activeJob, len(p.active))
	for k, v := range p.active {
		snapshot[k] = v
	}
	p.activeMu.Unlock()

	for key, a := range snapshot {
		jobID, err := id.ParseJobID(key)
		if err != nil {
			continue
		}
		err = p.store.HeartbeatJob(context.Background(), jobID, a.lease)
		switch {
		case err == nil:
		case errors.Is(err, escrow.ErrLeaseLost):
			p.logger.Warn("heartbeat found lease lost, cancelling job", slog.String("job_id", key))
			a.cancel()
		default:
			p.logger.Warn("heartbeat failed",
				slog.String("job_id", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Pool) requeueStalled() {
	requeued, err := p.store.RequeueStalledJobs(context.Background(), p.queue.Name, p.stalledInterval)
	if err != nil {
		p.logger.Error("stalled job scan failed",
			slog.String("queue", p.queue.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, j := range requeued {
		p.extensions.EmitJobStalled(context.Background(), j)
		p.logger.Warn("requeued stalled job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.Int("attempts", j.Attempts),
		)
	}
}

func (p *Pool) sleep(stop <-chan struct{}) {
	select {
	case <-time.After(p.pollInterval):
	case <-stop:
	}
}

func (p *Pool) track(j *job.Job, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.active[j.ID.String()] = activeJob{lease: j.LeaseID, cancel: cancel}
	p.activeMu.Unlock()
}

func (p *Pool) untrack(j *job.Job) {
	p.activeMu.Lock()
	delete(p.active, j.ID.String())
	p.activeMu.Unlock()
}

func (p *Pool) cancelActive() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, a := range p.active {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		a.cancel()
	}
}
