// Package ownership records which worker most recently claimed a session.
//
// Ownership is advisory: binding is not exclusive-enforcing, so a second
// worker binding the same session simply overwrites the record (the
// failover path relies on exactly this). A crashed worker leaves a stale
// record until a rebind overwrites it or the claim TTL lapses.
package ownership

import (
	"context"
	"fmt"
	"time"
)

// Store defines the persistence contract for session ownership. Every
// operation is a single atomic key operation; there are no multi-key
// transactions, so the consistency model is last-write-wins per key.
type Store interface {
	// Bind records workerID as the session's current owner with the given
	// claim TTL and adds the session to the worker's bound-session set.
	Bind(ctx context.Context, sessionID, workerID string, ttl time.Duration) error

	// Unbind removes the session from the worker's bound-session set and
	// clears the ownership record. Used on clean teardown, not on crash.
	Unbind(ctx context.Context, sessionID, workerID string) error

	// Owner returns the session's recorded owner, or "" if the claim has
	// expired or was never made.
	Owner(ctx context.Context, sessionID string) (string, error)

	// BoundSessions returns the sessions currently in the worker's
	// bound-session set.
	BoundSessions(ctx context.Context, workerID string) ([]string, error)
}

// Tracker applies the configured claim TTL to a Store. It is the
// bind/unbind surface the worker runtime uses.
type Tracker struct {
	store Store
	ttl   time.Duration
}

// NewTracker creates a Tracker. ttl is the claim expiry applied on every
// bind (24h in the reference cadence).
func NewTracker(store Store, ttl time.Duration) *Tracker {
	return &Tracker{store: store, ttl: ttl}
}

// Bind claims the session for the worker, overwriting any previous claim.
func (t *Tracker) Bind(ctx context.Context, sessionID, workerID string) error {
	if err := t.store.Bind(ctx, sessionID, workerID, t.ttl); err != nil {
		return fmt.Errorf("whatssend/ownership: bind %s -> %s: %w", sessionID, workerID, err)
	}
	return nil
}

// Unbind releases the worker's claim on clean session teardown.
func (t *Tracker) Unbind(ctx context.Context, sessionID, workerID string) error {
	if err := t.store.Unbind(ctx, sessionID, workerID); err != nil {
		return fmt.Errorf("whatssend/ownership: unbind %s from %s: %w", sessionID, workerID, err)
	}
	return nil
}

// Owner returns the most recent recorded claim for the session, or "".
func (t *Tracker) Owner(ctx context.Context, sessionID string) (string, error) {
	return t.store.Owner(ctx, sessionID)
}

// BoundSessions returns the worker's current bound-session set.
func (t *Tracker) BoundSessions(ctx context.Context, workerID string) ([]string, error) {
	return t.store.BoundSessions(ctx, workerID)
}
