package job

import "time"

// Options overrides queue defaults for a single job or job type. Zero values
// inherit the queue's settings.
type Options struct {
	// Queue is the queue a Definition enqueues to when none is given.
	Queue string

	// MaxAttempts is the total number of handler executions allowed.
	MaxAttempts int

	// Priority determines dequeue ordering on priority queues. Higher values
	// are processed first.
	Priority int

	// Delay postpones the first attempt.
	Delay time.Duration

	// Timeout bounds a single handler execution. Zero means the handler
	// manages its own deadline.
	Timeout time.Duration
}

// Option is a functional option for Options.
type Option func(*Options)

// Apply returns o with opts applied.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithQueue sets the queue name.
func WithQueue(q string) Option {
	return func(o *Options) { o.Queue = q }
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithPriority sets the priority. Higher values are processed first.
func WithPriority(p int) Option {
	return func(o *Options) { o.Priority = p }
}

// WithDelay postpones the first attempt by d.
func WithDelay(d time.Duration) Option {
	return func(o *Options) { o.Delay = d }
}

// WithTimeout bounds each handler execution.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}
