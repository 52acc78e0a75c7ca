package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
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

const testQueue = "default"

func testQueues(delay time.Duration) *queue.Set {
	return queue.NewSet(queue.Config{
		Name:        testQueue,
		Concurrency: 2,
		MaxAttempts: 3,
		Backoff:     backoff.NewConstant(delay),
	})
}

// hookRecorder counts lifecycle events.
type hookRecorder struct {
	mu                                        sync.Mutex
	completed, retrying, failed, dlq, stalled int
	lastFailure                               error
}

func (h *hookRecorder) Name() string { return "recorder" }

func (h *hookRecorder) bump(n *int) error {
	h.mu.Lock()
	*n++
	h.mu.Unlock()
	return nil
}

func (h *hookRecorder) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	return h.bump(&h.completed)
}

func (h *hookRecorder) OnJobRetrying(context.Context, *job.Job, int, time.Time) error {
	return h.bump(&h.retrying)
}

func (h *hookRecorder) OnJobFailed(_ context.Context, _ *job.Job, err error) error {
	h.mu.Lock()
	h.lastFailure = err
	h.mu.Unlock()
	return h.bump(&h.failed)
}

func (h *hookRecorder) OnJobDLQ(context.Context, *job.Job, error) error { return h.bump(&h.dlq) }
func (h *hookRecorder) OnJobStalled(context.Context, *job.Job) error    { return h.bump(&h.stalled) }

func newExecutor(reg *job.Registry, rec *hookRecorder) *worker.Executor {
	extensions := ext.NewRegistry(slog.Default())
	if rec != nil {
		extensions.Register(rec)
	}
	return worker.NewExecutor(reg, testQueues(time.Second), extensions, slog.Default(),
		middleware.Recover(slog.Default()),
	)
}

func newActiveJob(jobType string, maxAttempts int) *job.Job {
	now := time.Now().UTC()
	return &job.Job{
		ID:          id.NewJobID(),
		Type:        jobType,
		Queue:       testQueue,
		State:       job.StateActive,
		MaxAttempts: maxAttempts,
		RunAt:       now,
		EnqueuedAt:  now,
	}
}

func TestExecutor_Run(t *testing.T) {
	reg := job.NewRegistry()
	reg.Register("ok", func(context.Context, []byte) error { return nil })
	reg.Register("fail", func(context.Context, []byte) error { return errors.New("downstream 503") })
	reg.Register("panic", func(context.Context, []byte) error { panic("nil map") })

	tests := []struct {
		name        string
		jobType     string
		attempts    int
		maxAttempts int
		wantOutcome worker.Outcome
		wantState   job.State
	}{
		{"success", "ok", 0, 3, worker.OutcomeCompleted, job.StateCompleted},
		{"first failure retries", "fail", 0, 3, worker.OutcomeRetry, job.StateWaiting},
		{"last failure exhausts", "fail", 2, 3, worker.OutcomeExhausted, job.StateFailed},
		{"panic counts as failure", "panic", 0, 3, worker.OutcomeRetry, job.StateWaiting},
		{"single attempt budget", "fail", 0, 1, worker.OutcomeExhausted, job.StateFailed},
		{"unknown type fails", "missing", 0, 3, worker.OutcomeRetry, job.StateWaiting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newExecutor(reg, nil)
			j := newActiveJob(tt.jobType, tt.maxAttempts)
			j.Attempts = tt.attempts
			before := time.Now().UTC()

			res := exec.Run(context.Background(), j)

			if res.Outcome != tt.wantOutcome {
				t.Fatalf("outcome = %s, want %s", res.Outcome, tt.wantOutcome)
			}
			if j.State != tt.wantState {
				t.Errorf("state = %s, want %s", j.State, tt.wantState)
			}
			if j.Attempts != tt.attempts+1 {
				t.Errorf("attempts = %d, want %d", j.Attempts, tt.attempts+1)
			}
			if tt.wantOutcome == worker.OutcomeRetry {
				if res.Delay != time.Second || j.RunAt.Before(before.Add(time.Second)) {
					t.Errorf("retry not delayed: delay=%s runAt=%s", res.Delay, j.RunAt)
				}
				if j.LastError == "" {
					t.Error("LastError not recorded")
				}
			}
		})
	}
}

func TestExecutor_UnknownTypeError(t *testing.T) {
	exec := newExecutor(job.NewRegistry(), nil)
	err := exec.Invoke(context.Background(), newActiveJob("nope", 1))
	if !errors.Is(err, escrow.ErrUnknownJobType) {
		t.Fatalf("got %v, want ErrUnknownJobType", err)
	}
}

func TestExecutor_ReportExhausted(t *testing.T) {
	reg := job.NewRegistry()
	reg.Register("fail", func(context.Context, []byte) error { return errors.New("boom") })
	rec := &hookRecorder{}
	exec := newExecutor(reg, rec)
	s := memory.New()
	dead := dlq.NewService(s, s)

	j := newActiveJob("fail", 1)
	res := exec.Run(context.Background(), j)
	exec.Report(context.Background(), j, res, dead)

	if rec.failed != 1 || rec.dlq != 1 {
		t.Fatalf("hooks: failed=%d dlq=%d, want 1/1", rec.failed, rec.dlq)
	}
	if !errors.Is(rec.lastFailure, escrow.ErrJobExhausted) {
		t.Fatalf("failure %v does not wrap ErrJobExhausted", rec.lastFailure)
	}
	n, _ := dead.Count(context.Background())
	if n != 1 {
		t.Fatalf("dlq count = %d, want 1", n)
	}
}
