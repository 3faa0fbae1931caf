package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"
)

// SaveToken writes this worker's copy of the session token. No TTL: tokens
// persist until explicitly overwritten.
func (s *Store) SaveToken(ctx context.Context, sessionID, workerID string, token json.RawMessage) error {
	if err := s.client.Set(ctx, tokenKey(sessionID, workerID), []byte(token), 0).Err(); err != nil {
		return fmt.Errorf("whatssend/redis: save token: %w", err)
	}
	return nil
}

// LoadToken returns the token under the exact (session, worker) key, or nil.
func (s *Store) LoadToken(ctx context.Context, sessionID, workerID string) (json.RawMessage, error) {
	raw, err := s.client.Get(ctx, tokenKey(sessionID, workerID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("whatssend/redis: load token: %w", err)
	}
	return raw, nil
}

// FindToken scans every worker-suffixed copy for the session and returns
// the first non-empty one. SCAN keeps the lookup incremental; keys are
// sorted so repeated calls prefer the same copy.
func (s *Store) FindToken(ctx context.Context, sessionID string) (json.RawMessage, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, tokenPattern(sessionID), 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("whatssend/redis: find token scan: %w", err)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			return nil, fmt.Errorf("whatssend/redis: find token get: %w", err)
		}
		if len(raw) > 0 {
			s.logger.Debug("credential located", "session", sessionID, "key", key)
			return raw, nil
		}
	}
	return nil, nil
}
