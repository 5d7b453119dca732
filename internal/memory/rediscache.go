package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "parley:conv:"

// RedisCache implements Cache on a Redis instance. All values are stored as
// JSON under a per-conversation key with a TTL set by the caller.
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to Redis at the given URL and verifies connectivity.
func NewRedisCache(redisURL string, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("Redis cache connected")
	return &RedisCache{rdb: rdb, logger: logger}, nil
}

// Get returns the cached aggregate, or (nil, nil) on a miss.
func (c *RedisCache) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	data, err := c.rdb.Get(ctx, cacheKeyPrefix+conversationID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		// A corrupt cache entry is indistinguishable from a miss; the durable
		// store re-derives it.
		c.logger.Warn("corrupt cache entry dropped",
			zap.String("conversation", conversationID), zap.Error(err))
		c.rdb.Del(ctx, cacheKeyPrefix+conversationID)
		return nil, nil
	}
	return &conv, nil
}

// Put stores the aggregate under a TTL-bounded key.
func (c *RedisCache) Put(ctx context.Context, conversationID string, conv *Conversation, ttl time.Duration) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+conversationID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the cache entry. Deleting a missing key is not an error.
func (c *RedisCache) Delete(ctx context.Context, conversationID string) error {
	if err := c.rdb.Del(ctx, cacheKeyPrefix+conversationID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
