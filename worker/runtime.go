// Package worker implements the worker runtime loop: it consumes the
// shared queue and this worker's dedicated queue, drives the session
// automation engine, persists credential tokens, and reports every job
// outcome on the response queue.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/broker"
	"github.com/ortizmas/whats-send/credential"
	"github.com/ortizmas/whats-send/engine"
	"github.com/ortizmas/whats-send/middleware"
	"github.com/ortizmas/whats-send/ownership"
	"github.com/ortizmas/whats-send/queue"
	"github.com/ortizmas/whats-send/registry"
	"github.com/ortizmas/whats-send/store"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithQueueManager bounds local job intake per queue.
func WithQueueManager(m *queue.Manager) Option {
	return func(r *Runtime) { r.limits = m }
}

// WithMiddleware appends middleware to the handler chain, inside the
// built-in recover and logging layers.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Runtime) { r.extraMW = append(r.extraMW, mws...) }
}

// Runtime is one worker process's consumption loop and session host.
type Runtime struct {
	id      string
	store   store.Store
	broker  broker.Broker
	engine  engine.Engine
	cfg     whatssend.Config
	logger  *slog.Logger
	limits  *queue.Manager
	extraMW []middleware.Middleware

	tracker  *ownership.Tracker
	vault    *credential.Vault
	reporter *registry.Reporter
	sessions *sessionRegistry
	chain    middleware.Middleware

	wg sync.WaitGroup
}

// New creates a Runtime for the given worker identity. The store carries
// all shared coordination state; the broker carries jobs and outcomes; the
// engine hosts the actual sessions.
func New(workerID string, st store.Store, br broker.Broker, eng engine.Engine, cfg whatssend.Config, opts ...Option) *Runtime {
	r := &Runtime{
		id:       workerID,
		store:    st,
		broker:   br,
		engine:   eng,
		cfg:      cfg,
		logger:   slog.Default(),
		sessions: newSessionRegistry(),
	}
	for _, o := range opts {
		o(r)
	}

	r.tracker = ownership.NewTracker(st, cfg.OwnershipTTL)
	r.vault = credential.NewVault(st)
	r.reporter = registry.NewReporter(st, workerID, cfg.HeartbeatInterval, cfg.WorkerTTL,
		registry.WithLogger(r.logger),
		registry.WithSessionLister(r.tracker),
	)

	mws := []middleware.Middleware{
		middleware.Logging(r.logger),
		middleware.Recover(r.logger),
	}
	mws = append(mws, r.extraMW...)
	r.chain = middleware.Chain(mws...)

	return r
}

// ID returns the worker's stable identity.
func (r *Runtime) ID() string { return r.id }

// Run declares this worker's queues, starts the heartbeat loop, and
// consumes the shared and dedicated queues until ctx is cancelled. Both
// sources funnel into the identical per-job logic, so ordering holds per
// queue only, never across the two.
func (r *Runtime) Run(ctx context.Context) error {
	for _, q := range []string{broker.SharedQueue, broker.DedicatedQueue(r.id), broker.ResponseQueue} {
		if err := r.broker.Declare(ctx, q); err != nil {
			return err
		}
	}

	shared, err := r.broker.Consume(ctx, broker.SharedQueue)
	if err != nil {
		return err
	}
	dedicated, err := r.broker.Consume(ctx, broker.DedicatedQueue(r.id))
	if err != nil {
		return err
	}

	r.wg.Add(3)
	go func() {
		defer r.wg.Done()
		_ = r.reporter.Run(ctx)
	}()
	go func() {
		defer r.wg.Done()
		r.consume(ctx, shared)
	}()
	go func() {
		defer r.wg.Done()
		r.consume(ctx, dedicated)
	}()

	<-ctx.Done()
	r.wg.Wait()
	r.teardown()
	return ctx.Err()
}

// consume is the single event-driven loop for one queue subscription.
// Handlers run in their own goroutines so one session's slow engine call
// does not stall the other deliveries of this queue's in-flight batch;
// intake order still follows the broker's per-queue delivery order.
func (r *Runtime) consume(ctx context.Context, deliveries <-chan broker.Delivery) {
	for d := range deliveries {
		if r.limits != nil && !r.limits.Wait(ctx, d.Queue) {
			return
		}

		r.wg.Add(1)
		go func(d broker.Delivery) {
			defer r.wg.Done()
			if r.limits != nil {
				defer r.limits.Release(d.Queue)
			}
			r.handleDelivery(ctx, d)
		}(d)
	}
}

// teardown closes hosted sessions and releases their claims. This is the
// clean-unbind path; a crash skips it by definition and leaves stale
// ownership for the next bind to overwrite.
func (r *Runtime) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, id := range r.sessions.active() {
		if c := r.sessions.remove(id); c != nil {
			if err := c.Close(ctx); err != nil {
				r.logger.Warn("session close failed",
					slog.String("session", id),
					slog.String("error", err.Error()),
				)
			}
		}
		if err := r.tracker.Unbind(ctx, id, r.id); err != nil {
			r.logger.Warn("unbind failed",
				slog.String("session", id),
				slog.String("error", err.Error()),
			)
		}
	}
}
