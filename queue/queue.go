// Package queue provides local per-queue rate limiting and concurrency
// caps for the worker runtime. This is in-process throttling of how fast a
// worker drains its own subscriptions; it does not coordinate across
// workers, and the broker's per-queue ordering is unaffected.
package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines per-queue behaviour.
type Config struct {
	// Name is the queue identifier.
	Name string

	// MaxConcurrency limits how many jobs from this queue may be in flight
	// on this worker simultaneously. Zero means no limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained jobs per second dequeued from
	// this queue. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// queueState tracks runtime state for a single queue.
type queueState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager throttles job intake per queue. It is safe for concurrent use.
// Queues without a configuration have no limits.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*queueState
}

// NewManager creates a Manager with the given queue configurations.
func NewManager(configs ...Config) *Manager {
	m := &Manager{queues: make(map[string]*queueState, len(configs))}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newQueueState(cfg)
	}
	return m
}

func newQueueState(cfg Config) *queueState {
	qs := &queueState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		qs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return qs
}

// Acquire checks the queue's rate limit and concurrency cap. If the job
// may proceed it increments the active counter and returns true. The
// caller MUST call Release when the job completes.
func (m *Manager) Acquire(queue string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := m.queues[queue]
	if qs == nil {
		return true
	}
	if qs.limiter != nil && !qs.limiter.Allow() {
		return false
	}
	if qs.config.MaxConcurrency > 0 && qs.active >= qs.config.MaxConcurrency {
		return false
	}
	qs.active++
	return true
}

// Wait blocks until Acquire succeeds or ctx is cancelled. Returns false on
// cancellation.
func (m *Manager) Wait(ctx context.Context, queue string) bool {
	for {
		if m.Acquire(queue) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release decrements the active job count for the queue.
func (m *Manager) Release(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if qs := m.queues[queue]; qs != nil && qs.active > 0 {
		qs.active--
	}
}

// ActiveCount returns the current number of active jobs for a queue.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[queue]; qs != nil {
		return qs.active
	}
	return 0
}
