package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ortizmas/whats-send/registry"
)

// Heartbeat idempotently adds the worker to the membership set and
// refreshes its liveness record with the given TTL. The membership entry
// never expires; only the record does.
func (s *Store) Heartbeat(ctx context.Context, workerID string, rec *registry.Record, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("whatssend/redis: marshal worker record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, workerListKey, workerID)
	pipe.Set(ctx, workerKey(workerID), payload, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("whatssend/redis: heartbeat: %w", err)
	}
	return nil
}

// IsAlive reports whether a non-expired liveness record exists.
func (s *Store) IsAlive(ctx context.Context, workerID string) (bool, error) {
	n, err := s.client.Exists(ctx, workerKey(workerID)).Result()
	if err != nil {
		return false, fmt.Errorf("whatssend/redis: is alive: %w", err)
	}
	return n > 0, nil
}

// GetWorker returns the worker's current record, or nil once the record
// TTL has lapsed.
func (s *Store) GetWorker(ctx context.Context, workerID string) (*registry.Record, error) {
	raw, err := s.client.Get(ctx, workerKey(workerID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("whatssend/redis: get worker: %w", err)
	}

	var rec registry.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("whatssend/redis: decode worker record: %w", err)
	}
	return &rec, nil
}

// Members returns every worker ID ever seen. SMEMBERS order is not stable
// across Redis implementations, so the result is sorted to give placement
// a canonical candidate ordering.
func (s *Store) Members(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, workerListKey).Result()
	if err != nil {
		return nil, fmt.Errorf("whatssend/redis: members: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
