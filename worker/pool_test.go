package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/backoff"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/middleware"
	"github.com/debnit/MsmeBazaar-sub000/queue"
	"github.com/debnit/MsmeBazaar-sub000/store/memory"
	"github.com/debnit/MsmeBazaar-sub000/worker"
)

type poolFixture struct {
	pool  *worker.Pool
	store *memory.Store
	reg   *job.Registry
	dead  *dlq.Service
	hooks *hookRecorder
}

func setupPool(t *testing.T, cfg queue.Config, opts ...worker.PoolOption) *poolFixture {
	t.Helper()
	logger := slog.Default()
	s := memory.New()
	reg := job.NewRegistry()
	rec := &hookRecorder{}
	extensions := ext.NewRegistry(logger)
	extensions.Register(rec)
	dead := dlq.NewService(s, s)

	exec := worker.NewExecutor(reg, queue.NewSet(cfg), extensions, logger, middleware.Recover(logger))
	base := []worker.PoolOption{
		worker.WithPollInterval(5 * time.Millisecond),
		worker.WithDLQ(dead),
		worker.WithExtensions(extensions),
		worker.WithLogger(logger),
	}
	pool := worker.NewPool(cfg, s, exec, append(base, opts...)...)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return &poolFixture{pool: pool, store: s, reg: reg, dead: dead, hooks: rec}
}

func fastQueue() queue.Config {
	return queue.Config{
		Name:        testQueue,
		Concurrency: 2,
		MaxAttempts: 3,
		Backoff:     backoff.NewConstant(5 * time.Millisecond),
	}
}

func enqueue(t *testing.T, s *memory.Store, jobType string, maxAttempts int) *job.Job {
	t.Helper()
	now := time.Now().UTC()
	j := &job.Job{
		ID:          id.NewJobID(),
		Type:        jobType,
		Queue:       testQueue,
		Payload:     []byte(`{}`),
		State:       job.StateWaiting,
		Mode:        job.ModeBroker,
		MaxAttempts: maxAttempts,
		RunAt:       now,
		EnqueuedAt:  now,
	}
	if err := s.EnqueueJob(context.Background(), j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	return j
}

func waitForState(t *testing.T, s *memory.Store, jobID id.JobID, want job.State) *job.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := s.GetJob(context.Background(), jobID)
		if err == nil && j.State == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return nil
}

func TestPool_StartStopIdempotent(t *testing.T) {
	f := setupPool(t, fastQueue())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := f.pool.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := f.pool.Stop(ctx); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}
	if f.pool.Queue() != testQueue || f.pool.WorkerID().IsNil() {
		t.Fatal("pool identity not set")
	}
}

func TestPool_ProcessesJob(t *testing.T) {
	f := setupPool(t, fastQueue())

	type greeting struct{ Name string }
	var seen atomic.Value
	job.RegisterDefinition(f.reg, job.NewDefinition("greet", func(_ context.Context, p greeting) error {
		seen.Store(p.Name)
		return nil
	}))

	j := enqueue(t, f.store, "greet", 3)
	if err := f.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := waitForState(t, f.store, j.ID, job.StateCompleted)
	if done.Attempts != 1 || done.CompletedAt == nil {
		t.Fatalf("completed job = attempts %d, completedAt %v", done.Attempts, done.CompletedAt)
	}
	if seen.Load() == nil {
		t.Fatal("handler never ran")
	}
}

func TestPool_RestartAfterStop(t *testing.T) {
	f := setupPool(t, fastQueue())
	job.RegisterDefinition(f.reg, job.NewDefinition("noop", func(context.Context, struct{}) error {
		return nil
	}))

	ctx := context.Background()
	if err := f.pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.pool.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}

	j := enqueue(t, f.store, "noop", 3)
	waitForState(t, f.store, j.ID, job.StateCompleted)
}

func TestPool_RetriesThenSucceeds(t *testing.T) {
	f := setupPool(t, fastQueue())

	var calls atomic.Int32
	f.reg.Register("flaky", func(context.Context, []byte) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	j := enqueue(t, f.store, "flaky", 3)
	if err := f.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := waitForState(t, f.store, j.ID, job.StateCompleted)
	if done.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", done.Attempts)
	}
}

func TestPool_ExhaustedJobGoesToDLQ(t *testing.T) {
	f := setupPool(t, fastQueue())

	var calls atomic.Int32
	f.reg.Register("doomed", func(context.Context, []byte) error {
		calls.Add(1)
		return errors.New("permanent")
	})

	j := enqueue(t, f.store, "doomed", 2)
	if err := f.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	failed := waitForState(t, f.store, j.ID, job.StateFailed)
	if failed.Attempts != 2 || calls.Load() != 2 {
		t.Fatalf("attempts = %d, calls = %d, want 2/2", failed.Attempts, calls.Load())
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n, _ := f.dead.Count(context.Background()); n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("exhausted job not recorded in the dlq")
}

func TestPool_WatchdogRequeuesStalledJob(t *testing.T) {
	cfg := fastQueue()
	cfg.StalledInterval = 30 * time.Millisecond
	// No heartbeats: the first execution looks stalled while it blocks.
	f := setupPool(t, cfg, worker.WithHeartbeatInterval(0))

	release := make(chan struct{})
	var runs atomic.Int32
	f.reg.Register("slow", func(ctx context.Context, _ []byte) error {
		if runs.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	})

	j := enqueue(t, f.store, "slow", 3)
	if err := f.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := waitForState(t, f.store, j.ID, job.StateCompleted)
	close(release)

	if runs.Load() < 2 {
		t.Fatalf("runs = %d, stalled job was not re-run", runs.Load())
	}
	if done.Attempts != 1 {
		t.Fatalf("attempts = %d, the requeue must not consume an attempt", done.Attempts)
	}
	f.hooks.mu.Lock()
	stalled := f.hooks.stalled
	f.hooks.mu.Unlock()
	if stalled == 0 {
		t.Fatal("stalled hook not emitted")
	}
}

func TestPool_StopCancelsAfterTimeout(t *testing.T) {
	f := setupPool(t, fastQueue())

	started := make(chan struct{})
	f.reg.Register("forever", func(ctx context.Context, _ []byte) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	enqueue(t, f.store, "forever", 1)

	if err := f.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
