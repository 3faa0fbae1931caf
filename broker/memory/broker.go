// Package memory is an in-process implementation of broker.Broker for
// unit testing and development. Queues are unbounded FIFO buffers; each
// message goes to exactly one consumer of its queue, in order.
package memory

import (
	"context"
	"sync"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/broker"
)

// Compile-time interface check.
var _ broker.Broker = (*Broker)(nil)

// queue is an unbounded FIFO with blocking pop.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [][]byte
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(body []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, body)
	q.cond.Signal()
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Broker is an in-memory queue transport.
type Broker struct {
	mu     sync.Mutex
	queues map[string]*queue
	closed bool
}

// New returns an empty in-memory broker.
func New() *Broker {
	return &Broker{queues: make(map[string]*queue)}
}

func (b *Broker) queue(name string) *queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = newQueue()
		b.queues[name] = q
	}
	return q
}

// Declare creates the queue if missing; repeating it is a no-op.
func (b *Broker) Declare(_ context.Context, name string) error {
	b.queue(name)
	return nil
}

// Publish appends the message to the queue. Messages published before any
// consumer exists are buffered, matching the durable-queue behaviour the
// shared-queue fallback relies on.
func (b *Broker) Publish(_ context.Context, name string, body []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return whatssend.ErrPublishAfterClose
	}

	cp := make([]byte, len(body))
	copy(cp, body)
	b.queue(name).push(cp)
	return nil
}

// Consume streams deliveries from the queue until ctx is cancelled or the
// broker is closed.
func (b *Broker) Consume(ctx context.Context, name string) (<-chan broker.Delivery, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, whatssend.ErrConsumerClosed
	}
	b.mu.Unlock()

	q := b.queue(name)
	out := make(chan broker.Delivery)

	// Unblock the pop when the caller goes away.
	stop := context.AfterFunc(ctx, func() { q.cond.Broadcast() })

	go func() {
		defer close(out)
		defer stop()
		for {
			if ctx.Err() != nil {
				return
			}
			body, ok := q.popWait(ctx)
			if !ok {
				return
			}
			select {
			case out <- broker.Delivery{Queue: name, Body: body}:
			case <-ctx.Done():
				// The message is dropped rather than requeued; the contract
				// has no redelivery.
				return
			}
		}
	}()
	return out, nil
}

// popWait is pop with context awareness.
func (q *queue) popWait(ctx context.Context) ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Ping always succeeds for the memory broker.
func (b *Broker) Ping(_ context.Context) error { return nil }

// Close stops all consumers and rejects further publishes.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		q.close()
	}
	return nil
}

// Len reports the number of buffered messages in a queue. Test helper.
func (b *Broker) Len(name string) int {
	q := b.queue(name)
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
