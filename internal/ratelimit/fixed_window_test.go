package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter, mr
}

func TestFixedWindowLimiterBlocksAfterLimit(t *testing.T) {
	limiter, _ := newLimiter(t, 2)
	ctx := context.Background()

	first := limiter.Allow(ctx, "login|10.0.0.1")
	if !first.Allowed || first.Remaining != 1 {
		t.Fatalf("first request should pass with 1 remaining, got %+v", first)
	}
	if !limiter.Allow(ctx, "login|10.0.0.1").Allowed {
		t.Fatalf("second request should pass")
	}
	blocked := limiter.Allow(ctx, "login|10.0.0.1")
	if blocked.Allowed {
		t.Fatalf("third request should be blocked")
	}
	if blocked.RetryAfter <= 0 || blocked.RetryAfter > time.Minute {
		t.Fatalf("unexpected retry after: %v", blocked.RetryAfter)
	}
}

func TestFixedWindowLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := newLimiter(t, 1)
	ctx := context.Background()
	if !limiter.Allow(ctx, "a").Allowed {
		t.Fatalf("key a should pass")
	}
	if !limiter.Allow(ctx, "b").Allowed {
		t.Fatalf("key b should pass")
	}
}

func TestFixedWindowLimiterFailClosed(t *testing.T) {
	limiter, mr := newLimiter(t, 1)
	mr.Close()
	if limiter.Allow(context.Background(), "ip-1").Allowed {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresClient(t *testing.T) {
	limiter, err := NewFixedWindowLimiter(nil, "test", 1, time.Second)
	if err == nil || limiter != nil {
		t.Fatalf("expected constructor error for nil client")
	}
}
