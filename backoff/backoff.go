// Package backoff provides the retry policy for jobs: delay curves plus the
// attempt budget that decides when a job is exhausted. Strategies are
// stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry.
type Strategy interface {
	// Delay returns how long to wait after the attempt-th failed execution
	// (1-indexed), the same count Policy compares against MaxAttempts.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always waits Interval.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(int) time.Duration { return c.Interval }

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear waits Initial × attempt, capped at Max.
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial × attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	return capDelay(float64(l.Initial)*float64(max(attempt, 1)), l.Max)
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential waits Initial × Multiplier^attempt, capped at Max. With the
// defaults the first retry waits 4s and the second 8s. A Multiplier ≤ 0
// falls back to DefaultMultiplier; 1 gives a flat curve.
type Exponential struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial time.Duration, multiplier float64, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Multiplier: multiplier, Max: maxDelay}
}

// Delay returns Initial × Multiplier^attempt, capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	return capDelay(exponential(e.Initial, e.Multiplier, attempt), e.Max)
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter picks a random delay in [0, Exponential.Delay] so
// that jobs failing together do not retry together.
type ExponentialWithJitter struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial time.Duration, multiplier float64, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Multiplier: multiplier, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial × Multiplier^attempt, Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	ceiling := capDelay(exponential(e.Initial, e.Multiplier, attempt), e.Max)
	return time.Duration(rand.Float64() * float64(ceiling)) //nolint:gosec // jitter does not need crypto rand
}

func exponential(initial time.Duration, mult float64, attempt int) float64 {
	if mult <= 0 {
		mult = DefaultMultiplier
	}
	return float64(initial) * math.Pow(mult, float64(max(attempt, 0)))
}

func capDelay(d float64, ceiling time.Duration) time.Duration {
	if ceiling > 0 && d > float64(ceiling) {
		return ceiling
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// ──────────────────────────────────────────────────
// Defaults
// ──────────────────────────────────────────────────

// Default retry tuning for standard jobs.
const (
	DefaultBaseDelay   = 2 * time.Second
	DefaultMultiplier  = 2.0
	DefaultMaxDelay    = 5 * time.Minute
	DefaultMaxAttempts = 3
)

// DefaultStrategy returns Exponential(2s, ×2) capped at five minutes.
func DefaultStrategy() Strategy {
	return NewExponential(DefaultBaseDelay, DefaultMultiplier, DefaultMaxDelay)
}
