package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/backoff"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/engine"
	"github.com/debnit/MsmeBazaar-sub000/job"
	mw "github.com/debnit/MsmeBazaar-sub000/middleware"
	"github.com/debnit/MsmeBazaar-sub000/queue"
	"github.com/debnit/MsmeBazaar-sub000/store/memory"
)

// ──────────────────────────────────────────────────
// Test payloads
// ──────────────────────────────────────────────────

type receipt struct {
	EscrowID string `json:"escrow_id"`
	Amount   int64  `json:"amount"`
}

func fastConfig() escrow.Config {
	cfg := escrow.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.HealthCheckInterval = 10 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func testQueue(maxAttempts int) queue.Config {
	return queue.Config{
		Name:        queue.Default,
		Concurrency: 2,
		MaxAttempts: maxAttempts,
		Backoff:     backoff.NewConstant(time.Millisecond),
	}
}

func newEngine(t *testing.T, s *memory.Store, opts ...engine.Option) *engine.Engine {
	t.Helper()
	base := []engine.Option{
		engine.WithStore(s),
		engine.WithConfig(fastConfig()),
		engine.WithLogger(slog.Default()),
	}
	eng, err := engine.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	return eng
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ──────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────

func TestNew_RequiresStore(t *testing.T) {
	if _, err := engine.New(); !errors.Is(err, escrow.ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
}

func TestNew_RejectsBadQueue(t *testing.T) {
	_, err := engine.New(engine.WithStore(memory.New()), engine.WithQueues(queue.Config{Name: "x"}))
	if !errors.Is(err, escrow.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestNew_DefaultQueues(t *testing.T) {
	eng := newEngine(t, memory.New())

	if got := len(eng.Pools()); got != len(queue.Defaults()) {
		t.Fatalf("pools = %d, want %d", got, len(queue.Defaults()))
	}
	cfg, err := eng.Queues().Get(queue.Compliance)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Concurrency != 2 || cfg.MaxAttempts != 2 || cfg.Priority != 10 {
		t.Errorf("compliance = %+v", cfg)
	}
}

// ──────────────────────────────────────────────────
// End-to-end: Register → Enqueue → Process
// ──────────────────────────────────────────────────

func TestEngine_EndToEnd(t *testing.T) {
	s := memory.New()
	eng := newEngine(t, s, engine.WithQueues(testQueue(3)))

	var got atomic.Value
	def := job.NewDefinition("send-receipt", func(_ context.Context, r receipt) error {
		got.Store(r)
		return nil
	})
	engine.Register(eng, def)

	ctx := context.Background()
	h, err := engine.Enqueue(ctx, eng, def, receipt{EscrowID: "esc_1", Amount: 500})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if h.Mode != job.ModeBroker || h.State != job.StateWaiting {
		t.Fatalf("handle = %s/%s", h.Mode, h.State)
	}

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "job completion", func() bool {
		j, err := eng.Job(ctx, h.JobID)
		return err == nil && j.State == job.StateCompleted
	})

	r, _ := got.Load().(receipt)
	if r.EscrowID != "esc_1" || r.Amount != 500 {
		t.Errorf("payload = %+v", r)
	}
}

func TestEngine_ExhaustedJobLandsInDLQ(t *testing.T) {
	s := memory.New()
	eng := newEngine(t, s, engine.WithQueues(testQueue(2)))

	var calls atomic.Int32
	def := job.NewDefinition("always-fails", func(context.Context, receipt) error {
		calls.Add(1)
		return errors.New("downstream rejected")
	})
	engine.Register(eng, def)

	ctx := context.Background()
	h, err := engine.Enqueue(ctx, eng, def, receipt{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, "dlq entry", func() bool {
		n, _ := eng.DLQService().Count(ctx)
		return n == 1
	})
	j, err := eng.Job(ctx, h.JobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if j.State != job.StateFailed || j.Attempts != 2 {
		t.Errorf("job = %s after %d attempts, want failed after 2", j.State, j.Attempts)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}

	entries, _ := eng.DLQService().List(ctx, dlq.ListOpts{})
	replayed, err := eng.DLQService().Replay(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.ID.String() == h.JobID.String() {
		t.Error("replay must create a new job")
	}
}

// ──────────────────────────────────────────────────
// Fallback
// ──────────────────────────────────────────────────

func TestEngine_FallbackWhenBrokerDownAtBoot(t *testing.T) {
	s := memory.New()
	s.SetUnavailable(errors.New("dial tcp: connection refused"))
	eng := newEngine(t, s, engine.WithQueues(testQueue(3)))

	var calls atomic.Int32
	def := job.NewDefinition("send-receipt", func(context.Context, receipt) error {
		calls.Add(1)
		return nil
	})
	engine.Register(eng, def)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start with broker down: %v", err)
	}
	if eng.Mode() != job.ModeFallback {
		t.Fatalf("mode = %s, want fallback", eng.Mode())
	}

	h, err := engine.Enqueue(ctx, eng, def, receipt{EscrowID: "esc_2"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if h.Mode != job.ModeFallback || h.State != job.StateCompleted {
		t.Fatalf("handle = %s/%s, want fallback/completed", h.Mode, h.State)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	// Broker recovers; the monitor flips back.
	s.SetUnavailable(nil)
	waitFor(t, "broker mode", func() bool { return eng.Mode() == job.ModeBroker })

	h, err = engine.Enqueue(ctx, eng, def, receipt{EscrowID: "esc_3"})
	if err != nil {
		t.Fatalf("Enqueue after recovery: %v", err)
	}
	if h.Mode != job.ModeBroker {
		t.Errorf("mode = %s, want broker", h.Mode)
	}
}

func TestEngine_UnknownJobType(t *testing.T) {
	eng := newEngine(t, memory.New())
	_, err := eng.Enqueue(context.Background(), "", "nope", nil)
	if !errors.Is(err, escrow.ErrUnknownJobType) {
		t.Fatalf("err = %v, want ErrUnknownJobType", err)
	}
}

// ──────────────────────────────────────────────────
// Observability
// ──────────────────────────────────────────────────

func TestEngine_MeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	s := memory.New()
	eng := newEngine(t, s, engine.WithQueues(testQueue(1)), engine.WithMeterProvider(mp))

	def := job.NewDefinition("noop", func(context.Context, receipt) error { return nil })
	engine.Register(eng, def)

	ctx := context.Background()
	h, err := engine.Enqueue(ctx, eng, def, receipt{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "job completion", func() bool {
		j, err := eng.Job(ctx, h.JobID)
		return err == nil && j.State == job.StateCompleted
	})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	for _, name := range []string{"escrow.job.enqueued", "escrow.job.completed", "escrow.job.executions"} {
		if !found[name] {
			t.Errorf("metric %q not recorded; got %v", name, found)
		}
	}
}

type completions struct{ n atomic.Int32 }

func (c *completions) Name() string { return "completions" }

func (c *completions) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	c.n.Add(1)
	return nil
}

func TestEngine_OptionsReachFallbackChain(t *testing.T) {
	broker := memory.New()
	broker.SetUnavailable(errors.New("dial tcp: connection refused"))
	local := memory.New()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	hooks := &completions{}
	var wrapped atomic.Int32

	eng := newEngine(t, broker,
		engine.WithQueues(testQueue(1)),
		engine.WithFallbackStore(local),
		engine.WithExtension(hooks),
		engine.WithTracerProvider(tp),
		engine.WithMiddleware(func(ctx context.Context, _ *job.Job, next mw.Handler) error {
			wrapped.Add(1)
			return next(ctx)
		}),
	)
	def := job.NewDefinition("send-receipt", func(context.Context, receipt) error { return nil })
	engine.Register(eng, def)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h, err := engine.Enqueue(ctx, eng, def, receipt{EscrowID: "esc_9"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if h.Mode != job.ModeFallback {
		t.Fatalf("mode = %s, want fallback", h.Mode)
	}

	if _, err := local.GetJob(ctx, h.JobID); err != nil {
		t.Errorf("job not recorded in the fallback store: %v", err)
	}
	if wrapped.Load() != 1 || hooks.n.Load() != 1 {
		t.Errorf("middleware ran %d times, completion hook %d times", wrapped.Load(), hooks.n.Load())
	}
	if ended := spans.Ended(); len(ended) != 1 || ended[0].Name() != "escrow.job.execute" {
		t.Errorf("spans = %v", ended)
	}
	if n := eng.QueueManager().ActiveCount(queue.Default); n != 0 {
		t.Errorf("active count = %d after inline run", n)
	}
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	eng := newEngine(t, memory.New())
	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
