package redis

// Redis key naming for the shared coordination state. The "wpp-" prefix is
// the wire contract of the system: workers and gateways from any deployment
// of this layer must agree on it.

// workerListKey is the membership Set of every worker ID ever seen. It has
// no TTL; staleness is resolved by liveness checks, not by expiry.
const workerListKey = "wpp-worker-list"

// workerKey returns the liveness record key: wpp-worker:{workerId}.
// The value is a JSON record with the heartbeat TTL.
func workerKey(workerID string) string { return "wpp-worker:" + workerID }

// workerSessionsKey returns the Set of sessions bound to a worker:
// wpp-worker-sessions:{workerId}.
func workerSessionsKey(workerID string) string { return "wpp-worker-sessions:" + workerID }

// ownerKey returns the session ownership key: wpp-session-owner:{session}.
// The value is the owning worker ID with the claim TTL.
func ownerKey(sessionID string) string { return "wpp-session-owner:" + sessionID }

// tokenKey returns the credential key for one worker's copy of a session
// token: wpp-session:{session}-{workerId}. No TTL.
func tokenKey(sessionID, workerID string) string {
	return "wpp-session:" + sessionID + "-" + workerID
}

// tokenPattern matches every worker-suffixed token copy for a session.
func tokenPattern(sessionID string) string { return "wpp-session:" + sessionID + "-*" }

// eventKey returns the retrievable outcome cache key:
// wpp-event:{session}:{event}. Written with the outcome TTL.
func eventKey(sessionID, event string) string {
	return "wpp-event:" + sessionID + ":" + event
}
