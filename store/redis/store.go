package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/debnit/MsmeBazaar-sub000/store"
)

var _ store.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPrefix namespaces every key. Defaults to "escrow:".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.keys = keys{prefix: prefix} }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client goredis.Cmdable
	keys   keys
	logger *slog.Logger
}

// New creates a Redis-backed store. The caller owns the client.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, keys: keys{prefix: defaultPrefix}, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// Migrate loads the Lua scripts so the first claim does not pay for it.
func (s *Store) Migrate(ctx context.Context) error {
	for _, sc := range allScripts {
		if err := sc.Load(ctx, s.client).Err(); err != nil {
			return fmt.Errorf("redis: load script: %w", err)
		}
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close is a no-op. The caller owns the Redis client.
func (s *Store) Close() error { return nil }
