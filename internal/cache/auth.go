package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mangos/mangos/internal/model"
)

const (
	authCachePrefix    = "auth:ctx:"
	authKeyIndexPrefix = "auth:key:"
	authCacheTTL       = 5 * time.Minute
)

// GetAuthContext returns the identity cached under cacheKey.
// A miss or an unreadable entry yields (nil, nil).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var auth model.AuthContext
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, nil //nolint:nilerr
	}
	if auth.UserID == "" {
		return nil, nil
	}

	return &auth, nil
}

// SetAuthContext caches a resolved identity and indexes it by key ID so that
// InvalidateAPIKey can find it without the plaintext key.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL)
	pipe.Set(ctx, authKeyIndexPrefix+auth.KeyID, cacheKey, authCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache auth context: %w", err)
	}
	return nil
}

// DeleteAuthContext removes a cached identity by its cache key.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, authCachePrefix+cacheKey).Err()
}

// InvalidateAPIKey drops any cached identity resolved from keyID.
// Called when a key is revoked or rotated.
func (c *Cache) InvalidateAPIKey(ctx context.Context, keyID string) error {
	indexKey := authKeyIndexPrefix + keyID

	cacheKey, err := c.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis get failed: %w", err)
	}

	if err := c.client.Del(ctx, authCachePrefix+cacheKey, indexKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate API key: %w", err)
	}
	return nil
}
