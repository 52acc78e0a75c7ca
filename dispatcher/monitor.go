package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Pinger is a health-checkable broker.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes the broker and keeps a Switch's mode in step with it.
type Monitor struct {
	sw       *Switch
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewMonitor creates a Monitor probing every interval.
func NewMonitor(sw *Switch, pinger Pinger, interval time.Duration, opts ...Option) *Monitor {
	o := buildOptions(opts)
	return &Monitor{
		sw:       sw,
		pinger:   pinger,
		interval: interval,
		timeout:  o.probeTimeout,
		logger:   o.logger,
	}
}

// Probe pings the broker once and updates the mode.
func (m *Monitor) Probe(ctx context.Context) job.Mode {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.pinger.Ping(ctx); err != nil {
		m.sw.SetMode(ctx, job.ModeFallback, err)
		return job.ModeFallback
	}
	m.sw.SetMode(ctx, job.ModeBroker, nil)
	return job.ModeBroker
}

// Start probes immediately, then every interval until Stop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})

	mode := m.Probe(ctx)
	m.logger.Info("dispatcher health monitor started",
		slog.String("mode", string(mode)),
		slog.Duration("interval", m.interval),
	)

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop ends probing.
func (m *Monitor) Stop(_ context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Probe(context.Background())
		}
	}
}
