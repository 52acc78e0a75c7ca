package queue

import (
	"time"

	"github.com/debnit/MsmeBazaar-sub000/backoff"
)

// Ordering selects how waiting jobs are ranked.
type Ordering string

const (
	// OrderPriority dequeues by priority (descending), then insertion order.
	OrderPriority Ordering = "priority"
	// OrderFIFO ignores job priorities and dequeues in insertion order.
	OrderFIFO Ordering = "fifo"
)

// Queue names used by the ledger's side effects.
const (
	Notifications = "notifications"
	Compliance    = "compliance"
	Documents     = "documents"
	Valuation     = "valuation"
	Default       = "default"
)

// Config declares a queue and the defaults its jobs inherit.
type Config struct {
	// Name is the queue identifier (must match job.Queue).
	Name string

	// Concurrency is the number of workers in this queue's pool.
	Concurrency int

	// MaxAttempts is the default attempt budget for jobs on this queue.
	MaxAttempts int

	// Backoff is the retry delay curve. Nil means backoff.DefaultStrategy.
	Backoff backoff.Strategy

	// Ordering ranks waiting jobs. Empty means OrderPriority.
	Ordering Ordering

	// Priority is the default priority for jobs that set none.
	Priority int

	// StalledInterval overrides the watchdog threshold for this queue.
	// Zero uses the engine-wide setting.
	StalledInterval time.Duration

	// RateLimit is the maximum sustained jobs per second started from this
	// queue. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token-bucket burst. Defaults to 1 when RateLimit is
	// set.
	RateBurst int
}

// Policy returns the retry policy for jobs on this queue. A per-job
// maxAttempts overrides the queue default when positive.
func (c Config) Policy(maxAttempts int) backoff.Policy {
	p := backoff.Policy{MaxAttempts: c.MaxAttempts, Strategy: c.Backoff}
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = backoff.DefaultMaxAttempts
	}
	if p.Strategy == nil {
		p.Strategy = backoff.DefaultStrategy()
	}
	return p
}

// FIFO reports whether the queue ignores priorities.
func (c Config) FIFO() bool { return c.Ordering == OrderFIFO }

// Defaults returns the queues the ledger enqueues to. Notification jobs are
// I/O bound and cheap to retry; compliance checks run at high priority with
// a small budget; valuation is model-bound and runs one at a time.
func Defaults() []Config {
	std := backoff.DefaultStrategy()
	return []Config{
		{Name: Notifications, Concurrency: 10, MaxAttempts: 5, Backoff: std, Ordering: OrderFIFO},
		{Name: Compliance, Concurrency: 2, MaxAttempts: 2, Backoff: std, Ordering: OrderPriority, Priority: 10},
		{Name: Documents, Concurrency: 4, MaxAttempts: 3, Backoff: std, Ordering: OrderFIFO},
		{Name: Valuation, Concurrency: 1, MaxAttempts: 3, Backoff: std, Ordering: OrderFIFO},
		{Name: Default, Concurrency: 5, MaxAttempts: 3, Backoff: std, Ordering: OrderPriority},
	}
}
