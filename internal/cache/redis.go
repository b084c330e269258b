// Package cache provides the Redis access layer.
//
// A nil *Cache is valid: lookups miss, writes are dropped and rate limits
// always allow. This lets the service run without Redis in development.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides Redis cache access methods.
type Cache struct {
	client *redis.Client
}

// New creates a new Cache with a Redis client.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Enabled reports whether the cache is backed by Redis.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Client returns the underlying Redis client, or nil when disabled.
// Use sparingly - prefer adding methods to Cache.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.client
}
