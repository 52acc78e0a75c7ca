package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Relay defaults.
const (
	DefaultRelayInterval = 15 * time.Second
	DefaultRelayMinAge   = 30 * time.Second
	DefaultRelayBatch    = 100
)

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithRelayInterval sets how often the outbox is flushed.
func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.interval = d }
}

// WithRelayMinAge sets how old a pending entry must be before the Relay
// takes it over from the operation that wrote it.
func WithRelayMinAge(d time.Duration) RelayOption {
	return func(r *Relay) { r.minAge = d }
}

// WithRelayBatch sets how many entries one flush reads at a time.
func WithRelayBatch(n int) RelayOption {
	return func(r *Relay) { r.batch = n }
}

// WithRelayLogger sets the logger.
func WithRelayLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = l }
}

// Relay re-enqueues outbox entries whose side-effect jobs were committed
// but never accepted by the dispatcher, e.g. because the process died
// between commit and enqueue.
type Relay struct {
	svc      *Service
	interval time.Duration
	minAge   time.Duration
	batch    int
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRelay creates a Relay flushing svc's outbox.
func NewRelay(svc *Service, opts ...RelayOption) *Relay {
	r := &Relay{
		svc:      svc,
		interval: DefaultRelayInterval,
		minAge:   DefaultRelayMinAge,
		batch:    DefaultRelayBatch,
		logger:   svc.logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval <= 0 {
		r.interval = DefaultRelayInterval
	}
	if r.minAge < 0 {
		r.minAge = 0
	}
	if r.batch <= 0 {
		r.batch = DefaultRelayBatch
	}
	return r
}

// Start flushes every interval until Stop.
func (r *Relay) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	r.running = true
	stop := make(chan struct{})
	r.stopCh = stop

	r.wg.Add(1)
	go r.loop(stop)
	r.logger.Info("outbox relay started",
		slog.Duration("interval", r.interval),
		slog.Duration("min_age", r.minAge),
	)
	return nil
}

// Stop halts the loop and waits for an in-flight flush.
func (r *Relay) Stop(_ context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Relay) loop(stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := r.RunOnce(context.Background()); err != nil {
				r.logger.Error("outbox flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce enqueues every pending entry older than the minimum age and
// returns how many the dispatcher accepted. It stops early once a batch
// makes no progress, leaving the rest for the next run.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.svc.now().Add(-r.minAge)
	total := 0
	for {
		pending, sent, err := r.svc.FlushOutbox(ctx, cutoff, r.batch)
		total += sent
		if err != nil {
			return total, err
		}
		if pending < r.batch || sent < pending {
			if total > 0 {
				r.logger.Info("outbox entries relayed", slog.Int("count", total))
			}
			return total, nil
		}
	}
}
