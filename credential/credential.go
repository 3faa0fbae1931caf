// Package credential persists the opaque session tokens that let a worker
// resume a session without re-authentication.
//
// Tokens are keyed by (session, worker): every worker that ever hosted a
// session leaves its own copy, and concurrent hosts overwrite each other
// last-write-wins. What matters for resumability is that some valid token
// exists for the session under any worker suffix; Find scans them all.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store defines the persistence contract for session tokens. Tokens carry
// no TTL; they persist until explicitly overwritten.
type Store interface {
	// SaveToken writes the token under the (session, worker) composite key,
	// overwriting any previous copy.
	SaveToken(ctx context.Context, sessionID, workerID string, token json.RawMessage) error

	// LoadToken returns the token under the exact (session, worker) key, or
	// nil if none exists.
	LoadToken(ctx context.Context, sessionID, workerID string) (json.RawMessage, error)

	// FindToken scans every worker-suffixed copy for the session and
	// returns the first non-empty one, or nil if the session has no token
	// anywhere.
	FindToken(ctx context.Context, sessionID string) (json.RawMessage, error)
}

// Vault wraps a Store with error context. It is the surface the worker
// runtime uses for token persistence and resume lookups.
type Vault struct {
	store Store
}

// NewVault creates a Vault over the given store.
func NewVault(store Store) *Vault {
	return &Vault{store: store}
}

// Save persists this worker's copy of the session token. Callers treat
// failures as best-effort: a stale token is preferable to crashing the
// session, so the worker logs and swallows errors from here.
func (v *Vault) Save(ctx context.Context, sessionID, workerID string, token json.RawMessage) error {
	if len(token) == 0 {
		return nil
	}
	if err := v.store.SaveToken(ctx, sessionID, workerID, token); err != nil {
		return fmt.Errorf("whatssend/credential: save %s-%s: %w", sessionID, workerID, err)
	}
	return nil
}

// Find locates any resumable token for the session, across all worker
// copies. Returns nil without error when none exists.
func (v *Vault) Find(ctx context.Context, sessionID string) (json.RawMessage, error) {
	token, err := v.store.FindToken(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("whatssend/credential: find %s: %w", sessionID, err)
	}
	return token, nil
}
