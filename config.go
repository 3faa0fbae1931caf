package whatssend

import "time"

// Config holds the shared timing parameters of the dispatch layer.
// The same values must be used by the gateway and every worker: liveness
// decisions are made purely from key TTLs, so a worker heartbeating on a
// different cadence than the gateway expects would flap in and out of the
// live set.
type Config struct {
	// HeartbeatInterval is how often a worker refreshes its liveness record.
	HeartbeatInterval time.Duration

	// WorkerTTL is the expiry of a worker's liveness record. It should be a
	// comfortable multiple of HeartbeatInterval so a single missed beat does
	// not mark the worker dead.
	WorkerTTL time.Duration

	// OwnershipTTL is the expiry of a session-owner record. Re-binds refresh
	// it; a crashed owner leaves a stale record until then.
	OwnershipTTL time.Duration

	// OutcomeTTL is how long the last outcome event of a (session, event)
	// pair stays retrievable.
	OutcomeTTL time.Duration

	// ConnectAttempts bounds the startup connection retry loop. Exhausting
	// it is fatal; there is no steady-state reconnect.
	ConnectAttempts int

	// ConnectBackoff is the delay between startup connection attempts.
	ConnectBackoff time.Duration
}

// DefaultConfig returns the reference cadence: 15s heartbeats against a 45s
// record TTL (3x safety margin), 24h ownership claims, 300s outcome cache.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 15 * time.Second,
		WorkerTTL:         45 * time.Second,
		OwnershipTTL:      24 * time.Hour,
		OutcomeTTL:        300 * time.Second,
		ConnectAttempts:   10,
		ConnectBackoff:    3 * time.Second,
	}
}
