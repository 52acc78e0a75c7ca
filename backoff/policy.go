package backoff

import "time"

// Policy combines an attempt budget with a delay curve.
type Policy struct {
	// MaxAttempts is the total number of handler executions allowed.
	MaxAttempts int
	Strategy    Strategy
}

// DefaultPolicy returns three attempts on DefaultStrategy.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Strategy: DefaultStrategy()}
}

// Next decides what happens after the attempts-th failed execution. It
// returns exhausted = true once attempts reaches MaxAttempts; otherwise the
// delay before the next attempt.
func (p Policy) Next(attempts int) (delay time.Duration, exhausted bool) {
	limit := p.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	if attempts >= limit {
		return 0, true
	}
	s := p.Strategy
	if s == nil {
		s = DefaultStrategy()
	}
	return s.Delay(attempts), false
}

// Kind names a delay curve in configuration.
type Kind string

const (
	KindConstant    Kind = "constant"
	KindLinear      Kind = "linear"
	KindExponential Kind = "exponential"
	KindJitter      Kind = "jitter"
)

// Config is a serializable description of a Strategy.
type Config struct {
	Kind       Kind          `mapstructure:"kind"`
	Base       time.Duration `mapstructure:"base"`
	Multiplier float64       `mapstructure:"multiplier"`
	Max        time.Duration `mapstructure:"max"`
}

// Strategy builds the described strategy. Unknown kinds and zero bases fall
// back to the defaults.
func (c Config) Strategy() Strategy {
	base := c.Base
	if base <= 0 {
		base = DefaultBaseDelay
	}
	mult := c.Multiplier
	if mult <= 0 {
		mult = DefaultMultiplier
	}
	ceiling := c.Max
	if ceiling <= 0 {
		ceiling = DefaultMaxDelay
	}
	switch c.Kind {
	case KindConstant:
		return NewConstant(base)
	case KindLinear:
		return NewLinear(base, ceiling)
	case KindJitter:
		return NewExponentialWithJitter(base, mult, ceiling)
	default:
		return NewExponential(base, mult, ceiling)
	}
}
