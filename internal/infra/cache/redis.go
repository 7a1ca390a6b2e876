package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a Redis-backed cache with TTL. Values are JSON-encoded, so T
// must be JSON-serializable. Used instead of InMemory when the API runs
// with more than one replica.
type Redis[T any] struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedis creates a Redis cache for the given key prefix.
func NewRedis[T any](addr, prefix string, ttl time.Duration, logger *zap.Logger) *Redis[T] {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &Redis[T]{
		client: rdb,
		ttl:    ttl,
		prefix: prefix,
		logger: logger,
	}
}

// Get retrieves a value. Returns false on miss, expiry or decode failure.
func (r *Redis[T]) Get(key string) (T, bool) {
	var zero T

	raw, err := r.client.Get(context.Background(), r.prefix+key).Result()
	if err != nil {
		return zero, false
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		r.logger.Warn("redis cache: corrupt entry",
			zap.String("key", key),
			zap.Error(err),
		)
		return zero, false
	}
	return value, true
}

// Set stores a value with the configured TTL. Failures are logged, not
// returned: a broken cache must never fail the request path.
func (r *Redis[T]) Set(key string, value T) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("redis cache: encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.client.Set(context.Background(), r.prefix+key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache: set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes a value.
func (r *Redis[T]) Delete(key string) {
	if err := r.client.Del(context.Background(), r.prefix+key).Err(); err != nil {
		r.logger.Warn("redis cache: delete failed", zap.String("key", key), zap.Error(err))
	}
}
