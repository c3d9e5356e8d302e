package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/scc-edu/registry-sync/internal/models"
)

const queueHashKey = "registry_sync:queue"

// RedisQueueStore persists queued writes into a Redis hash keyed by record
// id. Ordering rides on the sequence number embedded in each record.
type RedisQueueStore struct {
	client *redis.Client
}

// NewRedisQueueStore builds a store over an existing client.
func NewRedisQueueStore(client *redis.Client) *RedisQueueStore {
	return &RedisQueueStore{client: client}
}

// List returns all stored records in enqueue order.
func (s *RedisQueueStore) List(ctx context.Context) ([]models.QueuedWrite, error) {
	raw, err := s.client.HGetAll(ctx, queueHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", queueHashKey, err)
	}
	writes := make([]models.QueuedWrite, 0, len(raw))
	for id, payload := range raw {
		var w models.QueuedWrite
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return nil, fmt.Errorf("decode queue record %s: %w", id, err)
		}
		writes = append(writes, w)
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Seq < writes[j].Seq })
	return writes, nil
}

// Save upserts a record.
func (s *RedisQueueStore) Save(ctx context.Context, w models.QueuedWrite) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode queue record %s: %w", w.ID, err)
	}
	if err := s.client.HSet(ctx, queueHashKey, w.ID, payload).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", w.ID, err)
	}
	return nil
}

// Delete removes a record by id.
func (s *RedisQueueStore) Delete(ctx context.Context, id string) error {
	if err := s.client.HDel(ctx, queueHashKey, id).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", id, err)
	}
	return nil
}
