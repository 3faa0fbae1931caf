// Package gateway implements the dispatch front end: it resolves a target
// worker for each job (pinned, random, or hash-balanced), publishes the
// job to the right queue, and consumes the response queue into the
// retrievable outcome cache.
//
// Dispatch is fire-and-forget. The gateway never blocks on worker
// acknowledgment; callers observe completion asynchronously through the
// outcome cache.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/broker"
	"github.com/ortizmas/whats-send/job"
	"github.com/ortizmas/whats-send/outcome"
	"github.com/ortizmas/whats-send/registry"
	"github.com/ortizmas/whats-send/ring"
	"github.com/ortizmas/whats-send/store"
)

// Strategy reports how a job's target was resolved.
type Strategy string

const (
	// StrategyPinned means the caller named an explicit target worker.
	StrategyPinned Strategy = "pinned"
	// StrategyRandom means a uniform random pick among live workers.
	StrategyRandom Strategy = "random"
	// StrategyBalanced means hash placement over the live set.
	StrategyBalanced Strategy = "balanced"
	// StrategyShared means no worker was resolvable and the job went to
	// the shared queue for any idle worker to claim.
	StrategyShared Strategy = "shared"
)

// Placement describes where a routed job went.
type Placement struct {
	Strategy Strategy `json:"strategy"`
	Worker   string   `json:"worker,omitempty"`
	Queue    string   `json:"queue"`
}

// RouteOptions modify target resolution for a single job.
type RouteOptions struct {
	// Target pins the job to a specific worker. A dead target is a hard
	// error with no fallback; an explicit pin is a caller requirement.
	Target string

	// Random picks uniformly among live workers instead of hash placement.
	Random bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithRand injects the random source used by RouteOptions.Random.
func WithRand(intn func(n int) int) Option {
	return func(g *Gateway) { g.intn = intn }
}

// Gateway accepts jobs and resolves where they run.
type Gateway struct {
	store  store.Store
	broker broker.Broker
	cfg    whatssend.Config
	logger *slog.Logger
	intn   func(n int) int
}

// New creates a Gateway over the shared store and the queue transport.
func New(st store.Store, br broker.Broker, cfg whatssend.Config, opts ...Option) *Gateway {
	g := &Gateway{
		store:  st,
		broker: br,
		cfg:    cfg,
		logger: slog.Default(),
		intn:   rand.IntN,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Route resolves a worker for the job and publishes it. Resolution order,
// first match wins: explicit target (liveness-checked, no fallback),
// random pick, hash placement, shared queue. With zero live workers the
// job still lands on the shared queue; it queues until a worker starts,
// it is never dropped.
func (g *Gateway) Route(ctx context.Context, j *job.Job, opts RouteOptions) (*Placement, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	body, err := j.Encode()
	if err != nil {
		return nil, err
	}

	if opts.Target != "" {
		alive, err := g.store.IsAlive(ctx, opts.Target)
		if err != nil {
			return nil, fmt.Errorf("whatssend/gateway: check target %s: %w", opts.Target, err)
		}
		if !alive {
			return nil, fmt.Errorf("%w: %s", whatssend.ErrWorkerUnavailable, opts.Target)
		}
		return g.publishDedicated(ctx, opts.Target, StrategyPinned, body)
	}

	alive, err := registry.ListAlive(ctx, g.store)
	if err != nil {
		return nil, fmt.Errorf("whatssend/gateway: list alive: %w", err)
	}

	if opts.Random && len(alive) > 0 {
		target := alive[g.intn(len(alive))]
		return g.publishDedicated(ctx, target, StrategyRandom, body)
	}

	if target, ok := ring.Select(j.Session, alive); ok {
		return g.publishDedicated(ctx, target, StrategyBalanced, body)
	}

	// Degraded path: no worker visible. The shared queue holds the job
	// until some worker begins consuming.
	if err := g.broker.Publish(ctx, broker.SharedQueue, body); err != nil {
		return nil, err
	}
	g.logger.Info("job routed to shared queue",
		slog.String("action", string(j.Action)),
		slog.String("session", j.Session),
	)
	return &Placement{Strategy: StrategyShared, Queue: broker.SharedQueue}, nil
}

// publishDedicated declares the worker's dedicated queue (it may not exist
// yet if the worker has never been targeted) and publishes to it.
func (g *Gateway) publishDedicated(ctx context.Context, workerID string, strategy Strategy, body []byte) (*Placement, error) {
	q := broker.DedicatedQueue(workerID)
	if err := g.broker.Declare(ctx, q); err != nil {
		return nil, fmt.Errorf("whatssend/gateway: declare %s: %w", q, err)
	}
	if err := g.broker.Publish(ctx, q, body); err != nil {
		return nil, err
	}
	g.logger.Info("job routed",
		slog.String("strategy", string(strategy)),
		slog.String("worker", workerID),
		slog.String("queue", q),
	)
	return &Placement{Strategy: strategy, Worker: workerID, Queue: q}, nil
}

// Workers returns the liveness record of every currently alive worker.
func (g *Gateway) Workers(ctx context.Context) ([]*registry.Record, error) {
	members, err := g.store.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatssend/gateway: members: %w", err)
	}

	records := make([]*registry.Record, 0, len(members))
	for _, id := range members {
		rec, err := g.store.GetWorker(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("whatssend/gateway: get worker %s: %w", id, err)
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// LastOutcome returns the most recent cached payload for the
// (session, event) pair, or nil if none is live.
func (g *Gateway) LastOutcome(ctx context.Context, session string, event outcome.Event) ([]byte, error) {
	return g.store.GetLast(ctx, session, event)
}
