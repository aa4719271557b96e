//go:build integration

package cache

import (
	"context"
	"testing"

	"github.com/mangos/mangos/internal/model"
	"github.com/mangos/mangos/internal/testutil"
)

func newCacheTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	c, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return ctx, c
}

func TestIntegrationAuthCache_RoundTrip(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	auth := &model.AuthContext{KeyID: "k1", KeyPrefix: "pk_test_abc123", UserID: "u1", Scopes: []string{model.ScopeRead}, RateLimitTier: model.TierPro}
	if err := c.SetAuthContext(ctx, "digest", auth); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}

	got, err := c.GetAuthContext(ctx, "digest")
	if err != nil || got == nil {
		t.Fatalf("GetAuthContext = %v, %v", got, err)
	}
	if got.UserID != "u1" || got.RateLimitTier != model.TierPro || !got.HasScope(model.ScopeRead) {
		t.Errorf("unexpected auth context: %+v", got)
	}

	if err := c.DeleteAuthContext(ctx, "digest"); err != nil {
		t.Fatalf("DeleteAuthContext failed: %v", err)
	}
	got, err = c.GetAuthContext(ctx, "digest")
	if err != nil || got != nil {
		t.Errorf("expected miss after delete, got %v, %v", got, err)
	}
}

func TestIntegrationRateLimit_ExhaustsBurst(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	for i := 0; i < 3; i++ {
		res, err := c.CheckAPIRateLimit(ctx, "burst-key", 60, 3)
		if err != nil {
			t.Fatalf("CheckAPIRateLimit failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	res, err := c.CheckAPIRateLimit(ctx, "burst-key", 60, 3)
	if err != nil {
		t.Fatalf("CheckAPIRateLimit failed: %v", err)
	}
	if res.Allowed {
		t.Error("request beyond burst should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
}

func TestIntegrationAuthCache_InvalidateAPIKey(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	auth := &model.AuthContext{KeyID: "k2", UserID: "u2"}
	if err := c.SetAuthContext(ctx, "digest-2", auth); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}

	if err := c.InvalidateAPIKey(ctx, "k2"); err != nil {
		t.Fatalf("InvalidateAPIKey failed: %v", err)
	}
	if got, _ := c.GetAuthContext(ctx, "digest-2"); got != nil {
		t.Errorf("identity should be gone after invalidation, got %+v", got)
	}

	if err := c.InvalidateAPIKey(ctx, "never-cached"); err != nil {
		t.Errorf("invalidating an uncached key should be a no-op, got %v", err)
	}
}
