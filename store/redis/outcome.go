package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ortizmas/whats-send/outcome"
)

// SetLast overwrites the cached payload for the (session, event) pair,
// resetting its TTL. Older payloads for the pair are simply gone.
func (s *Store) SetLast(ctx context.Context, sessionID string, event outcome.Event, payload []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, eventKey(sessionID, string(event)), payload, ttl).Err(); err != nil {
		return fmt.Errorf("whatssend/redis: set last outcome: %w", err)
	}
	return nil
}

// GetLast returns the live cached payload for the pair, or nil.
func (s *Store) GetLast(ctx context.Context, sessionID string, event outcome.Event) ([]byte, error) {
	raw, err := s.client.Get(ctx, eventKey(sessionID, string(event))).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("whatssend/redis: get last outcome: %w", err)
	}
	return raw, nil
}
