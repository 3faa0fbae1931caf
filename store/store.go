// Package store defines the aggregate persistence interface for the shared
// coordination state. Each subsystem (registry, ownership, credential,
// outcome) defines its own store interface; the composite Store composes
// them all, so a single backend satisfies every contract. Backends: Redis
// for production, Memory for development and testing.
//
// Every operation on a backend must be a single atomic key operation
// (set/get/add-to-set with TTL) safe under concurrent access from multiple
// processes. There are no multi-key transactions; the consistency model is
// last-write-wins per key.
package store

import (
	"context"

	"github.com/ortizmas/whats-send/credential"
	"github.com/ortizmas/whats-send/outcome"
	"github.com/ortizmas/whats-send/ownership"
	"github.com/ortizmas/whats-send/registry"
)

// Store is the aggregate persistence interface shared by the gateway and
// every worker.
type Store interface {
	registry.Store
	ownership.Store
	credential.Store
	outcome.Cache

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
