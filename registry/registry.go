// Package registry tracks worker liveness through expiring heartbeats.
//
// Membership and liveness are deliberately separate: the membership set
// grows monotonically and is only pruned lazily by liveness checks, while
// a worker's liveness record carries a TTL and lapses silently when
// heartbeats stop. "Alive" must therefore always be evaluated through the
// record, never through membership alone.
package registry

import (
	"context"
	"time"
)

// Record is the liveness record a worker refreshes on every heartbeat.
type Record struct {
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"startedAt"`
	Sessions  []string  `json:"sessions"`
}

// Store defines the persistence contract for worker liveness.
// Implementations must make every operation a single atomic key operation;
// registry unavailability propagates as a hard error with no local
// fallback; retry policy belongs to the caller.
type Store interface {
	// Heartbeat idempotently adds the worker to the membership set and
	// writes its record with the given TTL, refreshing any existing one.
	Heartbeat(ctx context.Context, workerID string, rec *Record, ttl time.Duration) error

	// IsAlive reports whether a non-expired record exists for the worker.
	IsAlive(ctx context.Context, workerID string) (bool, error)

	// GetWorker returns the worker's current record, or nil if its record
	// has expired or never existed.
	GetWorker(ctx context.Context, workerID string) (*Record, error)

	// Members returns every worker ID ever seen, live or not, in the
	// store's canonical iteration order.
	Members(ctx context.Context) ([]string, error)
}

// ListAlive iterates the membership set and filters by liveness. Cost is
// linear in total-ever-seen workers, which is acceptable because membership
// sets are small and churn is infrequent relative to job volume. The result
// preserves the store's canonical member order, which is what makes
// hash-based placement over it sticky.
func ListAlive(ctx context.Context, s Store) ([]string, error) {
	members, err := s.Members(ctx)
	if err != nil {
		return nil, err
	}

	alive := make([]string, 0, len(members))
	for _, id := range members {
		ok, err := s.IsAlive(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			alive = append(alive, id)
		}
	}
	return alive, nil
}
