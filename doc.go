// Package whatssend provides a distributed dispatch and session-affinity
// layer for pools of stateful messaging workers. It routes session-oriented
// jobs to workers over durable queues, tracks worker liveness through
// TTL-based heartbeats, records advisory session ownership, and persists
// per-session credential tokens so a session can be resumed by any worker.
//
// whatssend is designed as a library, not a service. Import it, configure a
// store and a broker, and run a gateway.Gateway on the front end and a
// worker.Runtime in each worker process.
//
// # Architecture
//
// whatssend follows a composable store pattern where each subsystem
// (registry, ownership, credential, outcome) defines its own store
// interface. A single backend implements all of them; store/redis is the
// production backend and store/memory backs tests and development.
//
// Queue transport is abstracted behind the broker package with the same
// backend split. Worker placement uses a deterministic rolling hash over
// the live worker set (package ring), so a given session key sticks to
// the same worker while membership is stable.
//
// Coordination is deliberately advisory: there are no distributed locks.
// Ownership records and credential tokens resolve conflicts by last write
// wins, which is the accepted trade-off of this system.
package whatssend
