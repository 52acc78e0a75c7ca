package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/middleware"
)

func newTestJob() *job.Job {
	return &job.Job{
		ID:       id.NewJobID(),
		Type:     "notify-seller-funded",
		Queue:    "notifications",
		Mode:     job.ModeBroker,
		Attempts: 2,
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	wrap := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
			order = append(order, name+"-before")
			err := next(ctx)
			order = append(order, name+"-after")
			return err
		}
	}

	chain := middleware.Chain(wrap("outer"), wrap("inner"))
	err := chain(context.Background(), newTestJob(), func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"outer-before", "inner-before", "handler", "inner-after", "outer-after"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestChain_Empty(t *testing.T) {
	called := false
	err := middleware.Chain()(context.Background(), newTestJob(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("empty chain: called=%v err=%v", called, err)
	}
}

func TestChain_PropagatesError(t *testing.T) {
	want := errors.New("handler error")
	chain := middleware.Chain(middleware.Logging(slog.Default()))
	err := chain(context.Background(), newTestJob(), func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestRecover_ConvertsPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := middleware.Recover(logger)(context.Background(), newTestJob(), func(context.Context) error {
		panic("kaboom")
	})
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("got %v, want panic error", err)
	}
	if !strings.Contains(buf.String(), "job handler panicked") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestLogging_Outcomes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := middleware.Logging(logger)

	_ = mw(context.Background(), newTestJob(), func(context.Context) error { return nil })
	_ = mw(context.Background(), newTestJob(), func(context.Context) error { return errors.New("smtp down") })

	out := buf.String()
	for _, want := range []string{"job started", "job completed", "job attempt failed", "smtp down", "attempt=3", "job_type=notify-seller-funded"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{"no timeout", 0, false},
		{"with timeout", time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newTestJob()
			j.Timeout = tt.timeout
			err := middleware.Timeout()(context.Background(), j, func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); ok != tt.wantDeadline {
					t.Errorf("deadline set = %v, want %v", ok, tt.wantDeadline)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTimeout_CancelsSlowHandler(t *testing.T) {
	j := newTestJob()
	j.Timeout = 10 * time.Millisecond
	err := middleware.Timeout()(context.Background(), j, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
}
