package dlq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/store/memory"
)

func newFailedJob(jobType string, payload []byte) *job.Job {
	now := time.Now().UTC()
	return &job.Job{
		ID:          id.NewJobID(),
		Type:        jobType,
		Queue:       "notifications",
		Payload:     payload,
		State:       job.StateFailed,
		Mode:        job.ModeBroker,
		Attempts:    5,
		MaxAttempts: 5,
		LastError:   "handler error",
		RunAt:       now,
		EnqueuedAt:  now,
	}
}

func TestService_Push_BuildsEntryFromJob(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()

	j := newFailedJob("notify-seller-funded", []byte(`{"recipient_id":"seller-1"}`))
	if err := svc.Push(ctx, j, errors.New("smtp down")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	entries, err := svc.List(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.JobID.String() != j.ID.String() {
		t.Errorf("JobID = %s, want %s", e.JobID, j.ID)
	}
	if e.JobType != j.Type || e.Queue != j.Queue {
		t.Errorf("type/queue = %s/%s", e.JobType, e.Queue)
	}
	if e.Error != "smtp down" {
		t.Errorf("Error = %q, want the push error", e.Error)
	}
	if e.Attempts != 5 || e.MaxAttempts != 5 {
		t.Errorf("attempts = %d/%d, want 5/5", e.Attempts, e.MaxAttempts)
	}
	if string(e.Payload) != `{"recipient_id":"seller-1"}` {
		t.Errorf("payload = %s", e.Payload)
	}
}

func TestService_Push_FallsBackToLastError(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()

	if err := svc.Push(ctx, newFailedJob("t", nil), nil); err != nil {
		t.Fatalf("Push: %v", err)
	}
	entries, _ := svc.List(ctx, dlq.ListOpts{})
	if entries[0].Error != "handler error" {
		t.Fatalf("Error = %q, want the job's last error", entries[0].Error)
	}
}

func TestService_Replay_CreatesFreshJob(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()

	failed := newFailedJob("generate-document", []byte(`{"doc_type":"release"}`))
	if err := svc.Push(ctx, failed, errors.New("renderer down")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	entries, _ := svc.List(ctx, dlq.ListOpts{})

	replayed, err := svc.Replay(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.ID.String() == failed.ID.String() {
		t.Fatal("replay reused the failed job's ID")
	}
	if replayed.State != job.StateWaiting || replayed.Attempts != 0 {
		t.Fatalf("replayed job = %s/%d, want waiting/0", replayed.State, replayed.Attempts)
	}

	stored, err := s.GetJob(ctx, replayed.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Type != "generate-document" || string(stored.Payload) != `{"doc_type":"release"}` {
		t.Fatalf("replayed job lost its type or payload")
	}

	entry, _ := svc.Get(ctx, entries[0].ID)
	if entry.ReplayedAt == nil {
		t.Fatal("entry not marked replayed")
	}
}

func TestService_Replay_UnknownEntry(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)

	_, err := svc.Replay(context.Background(), id.NewDLQID())
	if !errors.Is(err, escrow.ErrDLQNotFound) {
		t.Fatalf("got %v, want ErrDLQNotFound", err)
	}
}

func TestService_PurgeAndCount(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Push(ctx, newFailedJob("t", nil), nil); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	n, err := svc.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	purged, err := svc.Purge(ctx, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if purged != 3 {
		t.Fatalf("purged %d, want 3", purged)
	}
}
