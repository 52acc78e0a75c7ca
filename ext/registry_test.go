package ext_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// allHooksExt implements every lifecycle hook.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) record(name string) error {
	e.calls = append(e.calls, name)
	return nil
}

func (e *allHooksExt) OnJobEnqueued(context.Context, *job.Job) error { return e.record("enqueued") }
func (e *allHooksExt) OnJobStarted(context.Context, *job.Job) error  { return e.record("started") }
func (e *allHooksExt) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	return e.record("completed")
}
func (e *allHooksExt) OnJobFailed(context.Context, *job.Job, error) error { return e.record("failed") }
func (e *allHooksExt) OnJobRetrying(context.Context, *job.Job, int, time.Time) error {
	return e.record("retrying")
}
func (e *allHooksExt) OnJobDLQ(context.Context, *job.Job, error) error { return e.record("dlq") }
func (e *allHooksExt) OnJobStalled(context.Context, *job.Job) error   { return e.record("stalled") }
func (e *allHooksExt) OnModeChanged(context.Context, job.Mode, job.Mode, error) error {
	return e.record("mode")
}
func (e *allHooksExt) OnShutdown(context.Context) error { return e.record("shutdown") }

// completedOnly opts in to a single hook.
type completedOnly struct{ n int }

func (c *completedOnly) Name() string { return "completed-only" }
func (c *completedOnly) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	c.n++
	return nil
}

type failingExt struct{}

func (failingExt) Name() string                                  { return "failing" }
func (failingExt) OnJobEnqueued(context.Context, *job.Job) error { return errors.New("hook broke") }

func emitAll(r *ext.Registry) {
	ctx := context.Background()
	j := &job.Job{ID: id.NewJobID(), Type: "t"}
	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobCompleted(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("x"))
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobDLQ(ctx, j, errors.New("x"))
	r.EmitJobStalled(ctx, j)
	r.EmitModeChanged(ctx, job.ModeBroker, job.ModeFallback, errors.New("down"))
	r.EmitShutdown(ctx)
}

func TestRegistry_AllHooks(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	emitAll(r)

	want := "enqueued,started,completed,failed,retrying,dlq,stalled,mode,shutdown"
	if got := strings.Join(all.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
}

func TestRegistry_OptIn(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	c := &completedOnly{}
	r.Register(c)
	r.Register(&allHooksExt{})

	emitAll(r)

	if c.n != 1 {
		t.Fatalf("completed-only saw %d events, want 1", c.n)
	}
	if len(r.Extensions()) != 2 {
		t.Fatalf("Extensions() = %d, want 2", len(r.Extensions()))
	}
}

func TestRegistry_HookErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	r := ext.NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	after := &allHooksExt{}
	r.Register(failingExt{})
	r.Register(after)

	r.EmitJobEnqueued(context.Background(), &job.Job{ID: id.NewJobID()})

	if !strings.Contains(buf.String(), "hook broke") || !strings.Contains(buf.String(), "extension=failing") {
		t.Fatalf("hook error not logged: %s", buf.String())
	}
	if len(after.calls) != 1 {
		t.Fatal("a failing hook stopped later extensions")
	}
}
