package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ekyc/internal/document/ports"
)

// Redis key prefix for classification outcomes
const classificationKeyPrefix = "ekyc:classification:"

// RedisCache is a Redis-backed classification cache shared across instances.
type RedisCache struct {
	client   *redis.Client
	cacheTTL time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisMetrics records hits and misses.
func WithRedisMetrics(m *Metrics) RedisOption {
	return func(c *RedisCache) {
		c.metrics = m
	}
}

// WithRedisLogger sets the logger used for undecodable entries.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

// NewRedisCache constructs a Redis-backed classification cache.
func NewRedisCache(client *redis.Client, cacheTTL time.Duration, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client:   client,
		cacheTTL: cacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Save stores value under key with the cache TTL.
func (c *RedisCache) Save(ctx context.Context, key string, value ports.Classification) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode classification: %w", err)
	}
	if err := c.client.Set(ctx, classificationKeyPrefix+key, payload, c.cacheTTL).Err(); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

// Find returns the cached classification for key. A missing key is a miss,
// not an error; an undecodable entry is dropped and reported as a miss.
func (c *RedisCache) Find(ctx context.Context, key string) (ports.Classification, bool, error) {
	payload, err := c.client.Get(ctx, classificationKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.miss(backendRedis)
		return ports.Classification{}, false, nil
	}
	if err != nil {
		return ports.Classification{}, false, fmt.Errorf("find classification: %w", err)
	}

	var value ports.Classification
	if err := json.Unmarshal(payload, &value); err != nil {
		c.logger.WarnContext(ctx, "dropping undecodable classification cache entry",
			"key", key,
			"error", err,
		)
		_ = c.client.Del(ctx, classificationKeyPrefix+key).Err()
		c.metrics.miss(backendRedis)
		return ports.Classification{}, false, nil
	}
	c.metrics.hit(backendRedis)
	return value, true, nil
}
