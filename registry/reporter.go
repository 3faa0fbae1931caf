package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionLister supplies the sessions currently bound to a worker, so each
// heartbeat can embed them in the liveness record. Satisfied by the
// ownership tracker.
type SessionLister interface {
	BoundSessions(ctx context.Context, workerID string) ([]string, error)
}

// Reporter runs a worker's heartbeat loop: one beat immediately, then one
// per interval until the context is cancelled. A beat failure is logged and
// the loop continues; liveness simply lapses if the store stays down
// longer than the record TTL.
type Reporter struct {
	store     Store
	sessions  SessionLister
	workerID  string
	startedAt time.Time
	interval  time.Duration
	ttl       time.Duration
	logger    *slog.Logger
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ReporterOption {
	return func(r *Reporter) { r.logger = l }
}

// WithSessionLister wires the bound-session source for heartbeat payloads.
func WithSessionLister(sl SessionLister) ReporterOption {
	return func(r *Reporter) { r.sessions = sl }
}

// NewReporter creates a heartbeat reporter for the given worker identity.
// interval should be a fraction of ttl (the reference cadence is 15s
// against a 45s TTL).
func NewReporter(store Store, workerID string, interval, ttl time.Duration, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		store:     store,
		workerID:  workerID,
		startedAt: time.Now().UTC(),
		interval:  interval,
		ttl:       ttl,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run beats until ctx is cancelled. The first beat happens before the first
// tick so a fresh worker is visible immediately.
func (r *Reporter) Run(ctx context.Context) error {
	if err := r.Beat(ctx); err != nil {
		r.logger.Warn("heartbeat failed",
			slog.String("worker", r.workerID),
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Beat(ctx); err != nil {
				r.logger.Warn("heartbeat failed",
					slog.String("worker", r.workerID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Beat writes a single heartbeat: membership add plus record refresh.
func (r *Reporter) Beat(ctx context.Context) error {
	rec := &Record{
		Hostname:  r.workerID,
		StartedAt: r.startedAt,
	}

	if r.sessions != nil {
		bound, err := r.sessions.BoundSessions(ctx, r.workerID)
		if err != nil {
			// Sessions are informational in the record; a read failure
			// must not suppress the beat itself.
			r.logger.Warn("heartbeat: bound sessions unavailable",
				slog.String("worker", r.workerID),
				slog.String("error", err.Error()),
			)
		} else {
			rec.Sessions = bound
		}
	}

	if err := r.store.Heartbeat(ctx, r.workerID, rec, r.ttl); err != nil {
		return fmt.Errorf("whatssend/registry: heartbeat %s: %w", r.workerID, err)
	}
	return nil
}
