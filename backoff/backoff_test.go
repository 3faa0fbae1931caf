package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ortizmas/whats-send/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(3 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 3*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 3*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 5*time.Second)
	if got := e.Delay(10); got != 5*time.Second {
		t.Errorf("Delay(10) = %v, want %v (capped at Max)", got, 5*time.Second)
	}
}

func TestRetry_SucceedsWithoutSleeping(t *testing.T) {
	calls := 0
	err := backoff.Retry(context.Background(), 5, backoff.NewConstant(time.Hour), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry error: %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetry_RecoversAfterFailures(t *testing.T) {
	calls := 0
	err := backoff.Retry(context.Background(), 5, backoff.NewConstant(time.Millisecond), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry error: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestRetry_ExhaustionIsTerminal(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	err := backoff.Retry(context.Background(), 3, backoff.NewConstant(time.Millisecond), func(context.Context) error {
		calls++
		return sentinel
	})
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Retry error = %v, want wrapped %v", err, sentinel)
	}
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := backoff.Retry(ctx, 10, backoff.NewConstant(time.Hour), func(context.Context) error {
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
}
