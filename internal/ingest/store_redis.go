package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "courier:inbound:"

// RedisEventStore is a Redis-backed EventStore. SetNX gives the atomic
// claim; the TTL implements the retention window.
type RedisEventStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisEventStore creates a Redis-backed event store with the given
// retention window; zero means DefaultRetention.
func NewRedisEventStore(client *redis.Client, retention time.Duration) *RedisEventStore {
	if retention == 0 {
		retention = DefaultRetention
	}
	return &RedisEventStore{client: client, retention: retention}
}

// CheckAndRecord claims a key with SETNX.
func (r *RedisEventStore) CheckAndRecord(ctx context.Context, key string) (bool, error) {
	first, err := r.client.SetNX(ctx, redisKeyPrefix+key, time.Now().Unix(), r.retention).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return first, nil
}

// Release drops a claimed key.
func (r *RedisEventStore) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var _ EventStore = (*RedisEventStore)(nil)
