package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc is a type-erased handler taking the raw JSON payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

type entry struct {
	handler HandlerFunc
	opts    Options
}

// Registry maps job types to handlers and their default options.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a raw handler under name, replacing any previous one.
func (r *Registry) Register(name string, h HandlerFunc, opts ...Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{handler: h, opts: Options{}.Apply(opts...)}
}

// RegisterDefinition registers a typed definition. The payload is decoded
// into T before the typed handler runs.
//
// Package-level because methods cannot have type parameters.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	handler := func(ctx context.Context, payload []byte) error {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return fmt.Errorf("unmarshal payload for job %q: %w", def.Name, err)
			}
		}
		return def.Handler(ctx, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Name] = entry{handler: handler, opts: def.Opts}
}

// Get returns the handler for name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.handler, ok
}

// Options returns the default options registered with name.
func (r *Registry) Options(name string) (Options, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.opts, ok
}

// Names returns all registered job types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
