// Package redis implements broker.Broker on Redis lists. Publish is LPUSH,
// consumption is a BRPOP loop, so delivery order per queue is the broker's
// list order and a consumed message is consumed exactly once across all
// competing consumers of that queue.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/backoff"
	"github.com/ortizmas/whats-send/broker"
)

// Compile-time interface check.
var _ broker.Broker = (*Broker)(nil)

// popTimeout bounds each BRPOP so consume loops notice context
// cancellation promptly.
const popTimeout = 2 * time.Second

// Option configures the Broker.
type Option func(*Broker)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

// Broker is a Redis-list queue transport. The caller owns the client
// lifecycle unless the Broker was built by Dial.
type Broker struct {
	client goredis.UniversalClient
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	cancel []context.CancelFunc
}

// New creates a Broker over an existing Redis client.
func New(client goredis.UniversalClient, opts ...Option) *Broker {
	b := &Broker{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Dial connects to Redis at addr with a bounded retry loop. Exhausting the
// attempts is terminal: the process must not continue half-connected.
func Dial(ctx context.Context, addr string, attempts int, strategy backoff.Strategy, opts ...Option) (*Broker, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})

	err := backoff.Retry(ctx, attempts, strategy, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", whatssend.ErrBrokerUnavailable, addr, err)
	}
	return New(client, opts...), nil
}

// Declare is a no-op: Redis lists come into existence on first push, and
// re-declaring is naturally idempotent. The method exists so callers can
// treat all broker backends uniformly.
func (b *Broker) Declare(_ context.Context, _ string) error { return nil }

// Publish appends the message to the queue, fire-and-forget.
func (b *Broker) Publish(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return whatssend.ErrPublishAfterClose
	}

	if err := b.client.LPush(ctx, queue, body).Err(); err != nil {
		return fmt.Errorf("whatssend/broker: publish to %s: %w", queue, err)
	}
	return nil
}

// Consume starts a BRPOP loop over the queue. The returned channel closes
// when ctx is cancelled or the broker is closed.
func (b *Broker) Consume(ctx context.Context, queue string) (<-chan broker.Delivery, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, whatssend.ErrConsumerClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = append(b.cancel, cancel)
	b.mu.Unlock()

	out := make(chan broker.Delivery)
	go b.consumeLoop(ctx, queue, out)
	return out, nil
}

func (b *Broker) consumeLoop(ctx context.Context, queue string, out chan<- broker.Delivery) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := b.client.BRPop(ctx, popTimeout, queue).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue // timed out empty, poll again
			}
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("consume error",
				slog.String("queue", queue),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(popTimeout):
			}
			continue
		}

		// BRPop returns [key, value].
		if len(res) != 2 {
			continue
		}

		select {
		case out <- broker.Delivery{Queue: queue, Body: []byte(res[1])}:
		case <-ctx.Done():
			return
		}
	}
}

// Ping verifies the Redis connection is alive.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close stops all consume loops and closes the client.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, cancel := range b.cancel {
		cancel()
	}
	return b.client.Close()
}
