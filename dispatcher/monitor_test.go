package dispatcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/dispatcher"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

func TestMonitor_Probe(t *testing.T) {
	f := setup(t)
	mon := dispatcher.NewMonitor(f.sw, f.broker, time.Hour)
	ctx := context.Background()

	f.broker.SetUnavailable(errBrokerDown)
	if got := mon.Probe(ctx); got != job.ModeFallback {
		t.Fatalf("probe with broker down = %s", got)
	}
	if f.sw.Mode() != job.ModeFallback {
		t.Fatal("switch not in fallback")
	}

	f.broker.SetUnavailable(nil)
	if got := mon.Probe(ctx); got != job.ModeBroker {
		t.Fatalf("probe after recovery = %s", got)
	}

	h, err := f.sw.Enqueue(ctx, "", "ok", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if h.Mode != job.ModeBroker {
		t.Errorf("mode after recovery = %s, want broker", h.Mode)
	}

	got := f.modes.transitions()
	if len(got) != 2 || got[0] != job.ModeFallback || got[1] != job.ModeBroker {
		t.Errorf("mode events = %v", got)
	}
}

func TestMonitor_StartProbesImmediatelyAndPeriodically(t *testing.T) {
	f := setup(t)
	f.broker.SetUnavailable(errBrokerDown)

	mon := dispatcher.NewMonitor(f.sw, f.broker, 10*time.Millisecond)
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mon.Stop(context.Background()) //nolint:errcheck

	if f.sw.Mode() != job.ModeFallback {
		t.Fatal("Start should probe before returning")
	}

	f.broker.SetUnavailable(nil)
	deadline := time.Now().Add(2 * time.Second)
	for f.sw.Mode() != job.ModeBroker {
		if time.Now().After(deadline) {
			t.Fatal("monitor never restored broker mode")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := mon.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := mon.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
