package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/ortizmas/whats-send/broker"
	"github.com/ortizmas/whats-send/broker/memory"
)

func TestPublishBeforeConsume_Buffers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := memory.New()
	defer b.Close()

	// Jobs published with zero consumers must queue until one starts.
	for _, body := range []string{"one", "two", "three"} {
		if err := b.Publish(ctx, broker.SharedQueue, []byte(body)); err != nil {
			t.Fatalf("Publish error: %v", err)
		}
	}
	if got := b.Len(broker.SharedQueue); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}

	deliveries, err := b.Consume(ctx, broker.SharedQueue)
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}

	for _, want := range []string{"one", "two", "three"} {
		select {
		case d := <-deliveries:
			if string(d.Body) != want {
				t.Errorf("delivery = %q, want %q (per-queue order)", d.Body, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestConsume_ExactlyOneConsumerPerMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := memory.New()
	defer b.Close()

	c1, _ := b.Consume(ctx, broker.SharedQueue)
	c2, _ := b.Consume(ctx, broker.SharedQueue)

	const n = 20
	for i := 0; i < n; i++ {
		_ = b.Publish(ctx, broker.SharedQueue, []byte{byte(i)})
	}

	seen := make(map[byte]int)
	for i := 0; i < n; i++ {
		select {
		case d := <-c1:
			seen[d.Body[0]]++
		case d := <-c2:
			seen[d.Body[0]]++
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d deliveries", i)
		}
	}
	for k, count := range seen {
		if count != 1 {
			t.Errorf("message %d delivered %d times", k, count)
		}
	}
}

func TestDedicatedQueue_Isolated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := memory.New()
	defer b.Close()

	if err := b.Declare(ctx, broker.DedicatedQueue("w1")); err != nil {
		t.Fatalf("Declare error: %v", err)
	}
	// Redeclare is a no-op.
	if err := b.Declare(ctx, broker.DedicatedQueue("w1")); err != nil {
		t.Fatalf("redeclare error: %v", err)
	}

	shared, _ := b.Consume(ctx, broker.SharedQueue)
	dedicated, _ := b.Consume(ctx, broker.DedicatedQueue("w1"))

	_ = b.Publish(ctx, broker.DedicatedQueue("w1"), []byte("pinned"))

	select {
	case d := <-dedicated:
		if string(d.Body) != "pinned" {
			t.Errorf("dedicated delivery = %q", d.Body)
		}
	case <-shared:
		t.Fatal("pinned message leaked to the shared queue")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dedicated delivery")
	}
}

func TestConsume_ClosesOnCancel(t *testing.T) {
	b := memory.New()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	deliveries, _ := b.Consume(ctx, broker.SharedQueue)
	cancel()

	select {
	case _, open := <-deliveries:
		if open {
			t.Error("received delivery after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("delivery channel did not close on cancel")
	}
}

func TestPublish_AfterCloseFails(t *testing.T) {
	b := memory.New()
	_ = b.Close()

	if err := b.Publish(context.Background(), broker.SharedQueue, []byte("x")); err == nil {
		t.Error("Publish after Close succeeded")
	}
}
