// Package broker abstracts the durable queue transport between the
// gateway and the worker pool.
//
// Three queue roles exist: one shared request queue any worker may consume,
// one dedicated request queue per worker identity for pinned and affine
// dispatch, and one response queue carrying outcome events back to the
// gateway side. Delivery order is preserved within a queue only; nothing is
// ordered across queues.
package broker

import "context"

const (
	// SharedQueue is the request queue any idle worker consumes.
	SharedQueue = "sessions.requests"

	// ResponseQueue carries all outcome events from all workers.
	ResponseQueue = "sessions.responses"
)

// DedicatedQueue returns the request queue scoped to one worker identity.
// It may not exist until declared; Declare is idempotent for exactly this
// reason.
func DedicatedQueue(workerID string) string {
	return SharedQueue + "." + workerID
}

// Delivery is a single consumed message. Consuming a delivery is its
// acknowledgement: the broker never redelivers, which keeps a
// deterministically-failing payload from looping forever.
type Delivery struct {
	Queue string
	Body  []byte
}

// Broker is the queue transport contract. Publishes are fire-and-forget
// from the caller's perspective; completion is observed asynchronously via
// the response queue.
type Broker interface {
	// Declare creates the queue durably if it does not exist. Repeated
	// declaration is a no-op.
	Declare(ctx context.Context, queue string) error

	// Publish appends a message to the queue.
	Publish(ctx context.Context, queue string, body []byte) error

	// Consume returns a channel of deliveries from the queue. The channel
	// is closed when ctx is cancelled or the broker is closed. Each queue
	// preserves its own delivery order.
	Consume(ctx context.Context, queue string) (<-chan Delivery, error)

	// Ping verifies the transport connection is alive.
	Ping(ctx context.Context) error

	// Close releases the transport. In-flight Consume channels are closed.
	Close() error
}
