package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colloil/colloil/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for verified bearer tokens.
	authCachePrefix = "auth:token:"
	// authCacheTTL is the upper bound on how long a verified token is cached.
	authCacheTTL = 5 * time.Minute
)

// CachedAuthContext represents a verified token stored in Redis.
type CachedAuthContext struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"exp"`
}

// GetAuthContext retrieves a cached auth context by token digest.
// Returns nil on a miss. Corrupted or expired entries are evicted and
// reported as a miss.
func (c *Cache) GetAuthContext(ctx context.Context, tokenHash string) (*model.AuthContext, error) {
	if !c.Enabled() {
		return nil, nil
	}

	data, err := c.client.Get(ctx, authCachePrefix+tokenHash).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached CachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil || cached.UserID == "" {
		_ = c.DeleteAuthContext(ctx, tokenHash)
		return nil, nil //nolint:nilerr
	}

	expiresAt := time.Unix(cached.ExpiresAt, 0)
	if !time.Now().Before(expiresAt) {
		_ = c.DeleteAuthContext(ctx, tokenHash)
		return nil, nil
	}

	return &model.AuthContext{UserID: cached.UserID, ExpiresAt: expiresAt}, nil
}

// SetAuthContext caches a verified token until it expires, capped at authCacheTTL.
func (c *Cache) SetAuthContext(ctx context.Context, tokenHash string, auth *model.AuthContext) error {
	if !c.Enabled() {
		return nil
	}

	ttl := authTTL(auth.ExpiresAt, time.Now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(CachedAuthContext{UserID: auth.UserID, ExpiresAt: auth.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, authCachePrefix+tokenHash, data, ttl).Err()
}

// DeleteAuthContext removes a cached token.
func (c *Cache) DeleteAuthContext(ctx context.Context, tokenHash string) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Del(ctx, authCachePrefix+tokenHash).Err()
}

func authTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl > authCacheTTL {
		return authCacheTTL
	}
	return ttl
}
