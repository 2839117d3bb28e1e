package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg RateLimitConfig) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client, cfg), mr
}

func TestAllowVoteWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, RateLimitConfig{
		VoteLimit:  3,
		VoteWindow: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.AllowVote(ctx, "user-1")
		if err != nil {
			t.Fatalf("AllowVote #%d: %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("AllowVote #%d denied, want allowed", i+1)
		}
		if result.Remaining != 3-i-1 {
			t.Errorf("AllowVote #%d remaining = %d, want %d", i+1, result.Remaining, 3-i-1)
		}
	}

	result, err := limiter.AllowVote(ctx, "user-1")
	if err != nil {
		t.Fatalf("AllowVote over limit: %v", err)
	}
	if result.Allowed {
		t.Error("AllowVote over limit = allowed, want denied")
	}
	if result.Remaining != 0 {
		t.Errorf("remaining over limit = %d, want 0", result.Remaining)
	}
}

func TestLimitsAreScopedPerKey(t *testing.T) {
	limiter, _ := newTestLimiter(t, RateLimitConfig{
		VoteLimit:  1,
		VoteWindow: time.Minute,
		PollLimit:  1,
		PollWindow: time.Minute,
		AuthLimit:  1,
		AuthWindow: time.Minute,
	})
	ctx := context.Background()

	if r, err := limiter.AllowVote(ctx, "user-1"); err != nil || !r.Allowed {
		t.Fatalf("first vote for user-1: allowed=%v err=%v", r != nil && r.Allowed, err)
	}
	if r, _ := limiter.AllowVote(ctx, "user-1"); r.Allowed {
		t.Error("second vote for user-1 allowed, want denied")
	}

	// A different user, and the same user's other buckets, are
	// untouched by user-1's exhausted vote budget.
	if r, _ := limiter.AllowVote(ctx, "user-2"); !r.Allowed {
		t.Error("vote for user-2 denied by user-1's budget")
	}
	if r, _ := limiter.AllowPollMutation(ctx, "user-1"); !r.Allowed {
		t.Error("poll mutation denied by exhausted vote budget")
	}
	if r, _ := limiter.AllowAuth(ctx, "10.0.0.1"); !r.Allowed {
		t.Error("auth attempt denied by exhausted vote budget")
	}
}

func TestWindowExpiryRestoresBudget(t *testing.T) {
	limiter, mr := newTestLimiter(t, RateLimitConfig{
		AuthLimit:  2,
		AuthWindow: 30 * time.Second,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if r, err := limiter.AllowAuth(ctx, "10.0.0.9"); err != nil || !r.Allowed {
			t.Fatalf("AllowAuth #%d: allowed=%v err=%v", i+1, r != nil && r.Allowed, err)
		}
	}
	if r, _ := limiter.AllowAuth(ctx, "10.0.0.9"); r.Allowed {
		t.Fatal("AllowAuth over limit allowed")
	}

	mr.FastForward(31 * time.Second)

	if r, err := limiter.AllowAuth(ctx, "10.0.0.9"); err != nil || !r.Allowed {
		t.Errorf("AllowAuth after window: allowed=%v err=%v", r != nil && r.Allowed, err)
	}
}

func TestResetUserClearsBuckets(t *testing.T) {
	limiter, _ := newTestLimiter(t, RateLimitConfig{
		VoteLimit:  1,
		VoteWindow: time.Minute,
		PollLimit:  1,
		PollWindow: time.Minute,
	})
	ctx := context.Background()

	if r, _ := limiter.AllowVote(ctx, "user-1"); !r.Allowed {
		t.Fatal("first vote denied")
	}
	if r, _ := limiter.AllowPollMutation(ctx, "user-1"); !r.Allowed {
		t.Fatal("first poll mutation denied")
	}

	if err := limiter.ResetUser(ctx, "user-1"); err != nil {
		t.Fatalf("ResetUser: %v", err)
	}

	if r, _ := limiter.AllowVote(ctx, "user-1"); !r.Allowed {
		t.Error("vote denied after reset")
	}
	if r, _ := limiter.AllowPollMutation(ctx, "user-1"); !r.Allowed {
		t.Error("poll mutation denied after reset")
	}
}
