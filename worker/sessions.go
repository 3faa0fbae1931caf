package worker

import (
	"sync"

	"github.com/ortizmas/whats-send/engine"
)

// State is the lifecycle state of a locally hosted session.
type State string

const (
	// StateUnbound means this worker does not host the session.
	StateUnbound State = "unbound"
	// StateResuming means a start or silent resume is in flight.
	StateResuming State = "resuming"
	// StateActive means the session is live and can send.
	StateActive State = "active"
	// StateFailed means the last start attempt errored; the next job may
	// try again.
	StateFailed State = "failed"
)

// session is one locally hosted session handle.
type session struct {
	state  State
	client engine.Client
}

// sessionRegistry is the in-process keyed registry of sessions this worker
// hosts. Lifecycle is tied to bind/unbind in the runtime; the registry
// itself is just the map plus the claim discipline that makes concurrent
// starts idempotent.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

// state returns the current state for the session key.
func (r *sessionRegistry) state(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s.state
	}
	return StateUnbound
}

// client returns the engine client for an active session, or nil.
func (r *sessionRegistry) client(id string) engine.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.state == StateActive {
		return s.client
	}
	return nil
}

// claim atomically moves the session to Resuming if no start is in flight
// and it is not already active. Returns false when another job already
// holds the claim; that caller's start is authoritative and the current
// job treats the start as a no-op.
func (r *sessionRegistry) claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && (s.state == StateResuming || s.state == StateActive) {
		return false
	}
	r.sessions[id] = &session{state: StateResuming}
	return true
}

// activate completes a claimed start with the live client.
func (r *sessionRegistry) activate(id string, c engine.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &session{state: StateActive, client: c}
}

// fail releases a claimed start after an engine error. The entry is
// removed entirely so a later job can try a fresh start.
func (r *sessionRegistry) fail(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// remove drops the session on clean teardown, returning its client.
func (r *sessionRegistry) remove(id string) engine.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return s.client
}

// active returns the keys of all currently active sessions.
func (r *sessionRegistry) active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.state == StateActive {
			ids = append(ids, id)
		}
	}
	return ids
}
