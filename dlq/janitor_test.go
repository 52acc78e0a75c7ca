package dlq_test

import (
	"context"
	"testing"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/store/memory"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"@hourly", false},
		{"@every 30m", false},
		{"0 3 * * *", false},
		{"not a schedule", true},
		{"* * * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := dlq.ParseSchedule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSchedule(%q) err = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}

	if _, err := dlq.NewJanitor(memory.New(), "bogus"); err == nil {
		t.Fatal("NewJanitor accepted an invalid schedule")
	}
}

func TestJanitor_RunOnce(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	old := &dlq.Entry{ID: id.NewDLQID(), JobID: id.NewJobID(), Queue: "q", FailedAt: now.Add(-2 * time.Hour)}
	recent := &dlq.Entry{ID: id.NewDLQID(), JobID: id.NewJobID(), Queue: "q", FailedAt: now.Add(-time.Minute)}
	for _, e := range []*dlq.Entry{old, recent} {
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatalf("PushDLQ: %v", err)
		}
	}

	j, err := dlq.NewJanitor(s, "", dlq.WithRetention(time.Hour))
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	n, err := j.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	if _, err := s.GetDLQ(ctx, recent.ID); err != nil {
		t.Fatalf("recent entry purged: %v", err)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	j, err := dlq.NewJanitor(memory.New(), "@every 1h")
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	ctx := context.Background()
	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := j.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
