package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Janitor defaults.
const (
	DefaultRetention = 7 * 24 * time.Hour
	DefaultSchedule  = "@hourly"
)

// scheduleParser accepts standard 5-field expressions and descriptors such
// as "@every 30m".
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithRetention sets how long entries are kept.
func WithRetention(d time.Duration) JanitorOption {
	return func(j *Janitor) { j.retention = d }
}

// WithJanitorLogger sets the logger.
func WithJanitorLogger(l *slog.Logger) JanitorOption {
	return func(j *Janitor) { j.logger = l }
}

// Janitor purges dead-letter entries older than the retention window on a
// cron schedule.
type Janitor struct {
	store     Store
	schedule  cronlib.Schedule
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewJanitor creates a Janitor running on the given cron expression.
func NewJanitor(store Store, expr string, opts ...JanitorOption) (*Janitor, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("dlq: janitor schedule %q: %w", expr, err)
	}
	j := &Janitor{
		store:     store,
		schedule:  sched,
		retention: DefaultRetention,
		logger:    slog.Default(),
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start launches the purge loop.
func (j *Janitor) Start(_ context.Context) error {
	j.wg.Add(1)
	go j.loop()
	j.logger.Info("dlq janitor started", slog.Duration("retention", j.retention))
	return nil
}

// Stop halts the loop and waits for an in-flight purge.
func (j *Janitor) Stop(_ context.Context) error {
	close(j.stopCh)
	j.wg.Wait()
	return nil
}

func (j *Janitor) loop() {
	defer j.wg.Done()
	for {
		now := j.now()
		timer := time.NewTimer(j.schedule.Next(now).Sub(now))
		select {
		case <-j.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			if _, err := j.RunOnce(context.Background()); err != nil {
				j.logger.Error("dlq purge failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce purges entries older than the retention window.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	n, err := j.store.PurgeDLQ(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("dlq entries purged",
			slog.Int64("count", n),
			slog.Time("before", cutoff),
		)
	}
	return n, nil
}
