// Package memory is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
//
// TTL behaviour matches the Redis backend lazily: expired entries are
// treated as absent on read rather than actively removed. The clock is
// injectable so tests can step time instead of sleeping.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

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

type expiringValue struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (v expiringValue) live(now time.Time) bool {
	return v.expiresAt.IsZero() || now.Before(v.expiresAt)
}

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	members        map[string]struct{}       // worker membership set, never expires
	records        map[string]expiringValue  // workerID -> JSON liveness record
	owners         map[string]expiringValue  // sessionID -> owning worker ID
	workerSessions map[string]map[string]struct{}
	tokens         map[string][]byte         // "session-worker" composite -> token
	tokenIndex     map[string][]string       // sessionID -> sorted composite keys
	events         map[string]expiringValue  // "session:event" -> payload

	now func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock injects the time source, letting tests advance TTLs
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		members:        make(map[string]struct{}),
		records:        make(map[string]expiringValue),
		owners:         make(map[string]expiringValue),
		workerSessions: make(map[string]map[string]struct{}),
		tokens:         make(map[string][]byte),
		tokenIndex:     make(map[string][]string),
		events:         make(map[string]expiringValue),
		now:            time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Registry store
// ──────────────────────────────────────────────────

// Heartbeat adds the worker to the membership set and refreshes its record.
func (s *Store) Heartbeat(_ context.Context, workerID string, rec *registry.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.members[workerID] = struct{}{}
	s.records[workerID] = expiringValue{data: data, expiresAt: s.now().Add(ttl)}
	return nil
}

// IsAlive reports whether a non-expired record exists for the worker.
func (s *Store) IsAlive(_ context.Context, workerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[workerID]
	return ok && rec.live(s.now()), nil
}

// GetWorker returns the worker's live record, or nil.
func (s *Store) GetWorker(_ context.Context, workerID string) (*registry.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.records[workerID]
	if !ok || !v.live(s.now()) {
		return nil, nil
	}

	var rec registry.Record
	if err := json.Unmarshal(v.data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Members returns every worker ID ever seen, sorted for a canonical order.
func (s *Store) Members(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ──────────────────────────────────────────────────
// Ownership store
// ──────────────────────────────────────────────────

// Bind records the worker as the session's owner, overwriting any claim.
func (s *Store) Bind(_ context.Context, sessionID, workerID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workerSessions[workerID] == nil {
		s.workerSessions[workerID] = make(map[string]struct{})
	}
	s.workerSessions[workerID][sessionID] = struct{}{}
	s.owners[sessionID] = expiringValue{data: []byte(workerID), expiresAt: s.now().Add(ttl)}
	return nil
}

// Unbind removes the worker's claim and bound-session entry.
func (s *Store) Unbind(_ context.Context, sessionID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set := s.workerSessions[workerID]; set != nil {
		delete(set, sessionID)
	}
	delete(s.owners, sessionID)
	return nil
}

// Owner returns the session's recorded owner, or "" once the claim lapsed.
func (s *Store) Owner(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.owners[sessionID]
	if !ok || !v.live(s.now()) {
		return "", nil
	}
	return string(v.data), nil
}

// BoundSessions returns the worker's bound-session set, sorted.
func (s *Store) BoundSessions(_ context.Context, workerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.workerSessions[workerID]
	sessions := make([]string, 0, len(set))
	for id := range set {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// ──────────────────────────────────────────────────
// Credential store
// ──────────────────────────────────────────────────

func compositeKey(sessionID, workerID string) string {
	return sessionID + "-" + workerID
}

// SaveToken writes the worker's copy of the session token. No TTL.
func (s *Store) SaveToken(_ context.Context, sessionID, workerID string, token json.RawMessage) error {
	key := compositeKey(sessionID, workerID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[key]; !exists {
		s.tokenIndex[sessionID] = append(s.tokenIndex[sessionID], key)
		sort.Strings(s.tokenIndex[sessionID])
	}
	cp := make([]byte, len(token))
	copy(cp, token)
	s.tokens[key] = cp
	return nil
}

// LoadToken returns the exact (session, worker) copy, or nil.
func (s *Store) LoadToken(_ context.Context, sessionID, workerID string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.tokens[compositeKey(sessionID, workerID)]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}

// FindToken returns the first non-empty token copy for the session across
// all worker suffixes, or nil.
func (s *Store) FindToken(_ context.Context, sessionID string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.tokenIndex[sessionID] {
		if raw := s.tokens[key]; len(raw) > 0 {
			cp := make([]byte, len(raw))
			copy(cp, raw)
			return cp, nil
		}
	}
	return nil, nil
}

// ──────────────────────────────────────────────────
// Outcome cache
// ──────────────────────────────────────────────────

func eventCacheKey(sessionID string, event outcome.Event) string {
	return sessionID + ":" + string(event)
}

// SetLast overwrites the cached payload for the pair, resetting its TTL.
func (s *Store) SetLast(_ context.Context, sessionID string, event outcome.Event, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.events[eventCacheKey(sessionID, event)] = expiringValue{data: cp, expiresAt: s.now().Add(ttl)}
	return nil
}

// GetLast returns the live cached payload for the pair, or nil.
func (s *Store) GetLast(_ context.Context, sessionID string, event outcome.Event) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.events[eventCacheKey(sessionID, event)]
	if !ok || !v.live(s.now()) {
		return nil, nil
	}
	cp := make([]byte, len(v.data))
	copy(cp, v.data)
	return cp, nil
}
