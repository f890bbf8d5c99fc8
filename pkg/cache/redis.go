package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Compile-time check to ensure RedisKV implements KV
var _ KV = (*RedisKV)(nil)

// RedisKV backs the cache store with Redis. Values are stored without TTL:
// the snapshot is replaced every cycle and the metrics and service-start
// records must outlive any single refresh.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Put(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
