// Package cache stores tier capabilities per API key so that repeated
// lookups do not hit the capabilities endpoint.
// Supports an in-memory backend and Redis for sharing across processes.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"rainy/config"
	"rainy/internal/catalog"
)

// DefaultTTL is how long capabilities stay cached when no TTL is configured
const DefaultTTL = 5 * time.Minute

// Cache defines the interface for capability storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached capabilities for key.
	// Returns nil, nil on a miss or an expired entry.
	Get(ctx context.Context, key string) (*catalog.Capabilities, error)

	// Set stores capabilities under key.
	Set(ctx context.Context, key string, caps *catalog.Capabilities) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key derives the cache key for an API key. The key itself is never stored.
func Key(apiKey string) string {
	return strconv.FormatUint(xxhash.Sum64String(apiKey), 16)
}

// New builds the backend selected by cfg
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCache(cfg.TTL), nil
	case "redis":
		return NewRedisCache(RedisConfig{URL: cfg.Redis.URL, Key: cfg.Redis.Key, TTL: cfg.TTL})
	}
	return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
}

// LoadFunc fetches capabilities from the source of truth
type LoadFunc func(ctx context.Context) (*catalog.Capabilities, error)

// Loader reads through a Cache and collapses concurrent misses for the same
// key into one load.
type Loader struct {
	cache  Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewLoader wraps c. A nil logger uses slog.Default().
func NewLoader(c Cache, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cache: c, logger: logger}
}

// GetOrLoad returns cached capabilities for apiKey, calling load on a miss.
// Cache errors are logged and treated as misses; load errors are returned.
func (l *Loader) GetOrLoad(ctx context.Context, apiKey string, load LoadFunc) (*catalog.Capabilities, error) {
	key := Key(apiKey)

	caps, err := l.cache.Get(ctx, key)
	if err != nil {
		l.logger.Warn("capability cache read failed", "error", err)
	}
	if caps != nil {
		return caps, nil
	}

	v, err, shared := l.group.Do(key, func() (any, error) {
		caps, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(ctx, key, caps); err != nil {
			l.logger.Warn("capability cache write failed", "error", err)
		}
		return caps, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.logger.Debug("capability load shared with concurrent caller")
	}
	return v.(*catalog.Capabilities), nil
}

// Close closes the underlying cache
func (l *Loader) Close() error {
	return l.cache.Close()
}
