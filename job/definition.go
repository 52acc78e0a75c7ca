package job

import "context"

// Definition is a typed job type with its handler. T must be
// JSON-serializable.
type Definition[T any] struct {
	// Name is the job type.
	Name string

	// Handler processes one decoded payload. It must tolerate running more
	// than once for the same job.
	Handler func(ctx context.Context, payload T) error

	// Opts are the defaults applied when this type is enqueued.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) error, opts ...Option) *Definition[T] {
	return &Definition[T]{
		Name:    name,
		Handler: handler,
		Opts:    Options{}.Apply(opts...),
	}
}
