package queue

import (
	"fmt"
	"sort"
	"sync"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/backoff"
)

// Set is the registry of declared queues. It is safe for concurrent use.
type Set struct {
	mu     sync.RWMutex
	queues map[string]Config
}

// NewSet creates a Set holding configs.
func NewSet(configs ...Config) *Set {
	s := &Set{queues: make(map[string]Config, len(configs))}
	for _, cfg := range configs {
		s.Register(cfg)
	}
	return s
}

// Register adds or replaces a queue declaration. Concurrency below one is
// raised to one.
func (s *Set) Register(cfg Config) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Ordering == "" {
		cfg.Ordering = OrderPriority
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[cfg.Name] = cfg
}

// Get returns the declaration for name, or escrow.ErrUnknownQueue.
func (s *Set) Get(name string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.queues[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", escrow.ErrUnknownQueue, name)
	}
	return cfg, nil
}

// Has reports whether name is declared.
func (s *Set) Has(name string) bool {
	_, err := s.Get(name)
	return err == nil
}

// Names returns the declared queue names, sorted.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configs returns every declaration, sorted by name.
func (s *Set) Configs() []Config {
	names := s.Names()
	out := make([]Config, 0, len(names))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range names {
		out = append(out, s.queues[n])
	}
	return out
}

// Policy returns the retry policy for a job on queue name with the given
// attempt budget. Undeclared queues get the default curve.
func (s *Set) Policy(name string, maxAttempts int) backoff.Policy {
	cfg, err := s.Get(name)
	if err != nil {
		cfg = Config{}
	}
	return cfg.Policy(maxAttempts)
}
