package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Bind records the worker as the session's owner with the claim TTL and
// adds the session to the worker's bound-session set. A previous claim by
// any worker is silently overwritten; binding is advisory, not exclusive.
func (s *Store) Bind(ctx context.Context, sessionID, workerID string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, workerSessionsKey(workerID), sessionID)
	pipe.Set(ctx, ownerKey(sessionID), workerID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("whatssend/redis: bind: %w", err)
	}
	return nil
}

// Unbind removes the session from the worker's bound-session set and
// clears the ownership record.
func (s *Store) Unbind(ctx context.Context, sessionID, workerID string) error {
	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, workerSessionsKey(workerID), sessionID)
	pipe.Del(ctx, ownerKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("whatssend/redis: unbind: %w", err)
	}
	return nil
}

// Owner returns the session's recorded owner, or "" if the claim expired.
func (s *Store) Owner(ctx context.Context, sessionID string) (string, error) {
	owner, err := s.client.Get(ctx, ownerKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("whatssend/redis: owner: %w", err)
	}
	return owner, nil
}

// BoundSessions returns the sessions in the worker's bound-session set.
func (s *Store) BoundSessions(ctx context.Context, workerID string) ([]string, error) {
	sessions, err := s.client.SMembers(ctx, workerSessionsKey(workerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("whatssend/redis: bound sessions: %w", err)
	}
	sort.Strings(sessions)
	return sessions, nil
}
