// Package redis implements store.Store on Redis. All shared coordination
// state is single atomic key operations (SET with EX, SADD, SREM, GET),
// which is what bounds the consistency model to last-write-wins per key.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ortizmas/whats-send/credential"
	"github.com/ortizmas/whats-send/outcome"
	"github.com/ortizmas/whats-send/ownership"
	"github.com/ortizmas/whats-send/registry"
)

// Compile-time interface checks.
var (
	_ registry.Store   = (*Store)(nil)
	_ ownership.Store  = (*Store)(nil)
	_ credential.Store = (*Store)(nil)
	_ outcome.Cache    = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.UniversalClient { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
