package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestCheckAPIRateLimit_Unlimited(t *testing.T) {
	t.Parallel()

	// The unlimited tier never touches Redis.
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	t.Cleanup(func() { _ = c.Close() })

	res, err := c.CheckAPIRateLimit(context.Background(), "key", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Error("unlimited tier should always be allowed")
	}
}

func TestCheckAPIRateLimit_FailsOpen(t *testing.T) {
	t.Parallel()

	c := NewWithClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))
	t.Cleanup(func() { _ = c.Close() })

	res, err := c.CheckAPIRateLimit(context.Background(), "key", 60, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed || res.Remaining != 10 {
		t.Errorf("unreachable Redis should fail open, got %+v", res)
	}
}
