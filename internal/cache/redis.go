package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rainy/internal/catalog"
)

// DefaultRedisKey is the default prefix for capability keys in Redis.
const DefaultRedisKey = "rainy:capabilities"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379" or "redis://:password@host:6379/0")
	URL string

	// Key prefixes every entry (defaults to "rainy:capabilities")
	Key string

	// TTL is the time-to-live for cached entries (defaults to DefaultTTL)
	TTL time.Duration
}

// RedisCache implements Cache using Redis for storage shared between processes.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a new Redis-based cache.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Key
	if prefix == "" {
		prefix = DefaultRedisKey
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	slog.Debug("redis cache connected", "prefix", prefix, "ttl", ttl)

	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (c *RedisCache) redisKey(key string) string {
	return c.prefix + ":" + key
}

// Get retrieves capabilities from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (*catalog.Capabilities, error) {
	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get capabilities from redis: %w", err)
	}

	var caps catalog.Capabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities from redis: %w", err)
	}

	return &caps, nil
}

// Set stores capabilities in Redis with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, caps *catalog.Capabilities) error {
	if caps == nil {
		return nil
	}
	data, err := json.Marshal(caps)
	if err != nil {
		return fmt.Errorf("failed to marshal capabilities: %w", err)
	}

	if err := c.client.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set capabilities in redis: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
