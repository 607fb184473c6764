package engine

import "testing"

func TestTokenBucket_BurstThenSteady(t *testing.T) {
	// Scenario 1: capacity=5, window=10 -> rate=0.5/s. At t=0 send 7.
	b := newTokenBucket(5, 10, 0)

	wantRemaining := []int64{4, 3, 2, 1, 0}
	for i, want := range wantRemaining {
		allowed, remaining := b.allow(0)
		if !allowed {
			t.Errorf("request %d: expected allowed", i+1)
		}
		if remaining != want {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, want)
		}
	}

	for i := 0; i < 2; i++ {
		allowed, remaining := b.allow(0)
		if allowed {
			t.Errorf("overflow request %d: expected blocked", i+1)
		}
		if remaining != 0 {
			t.Errorf("overflow request %d: remaining = %d, want 0", i+1, remaining)
		}
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	// Scenario 2: continuing scenario 1, advance to t=4 and send 2.
	b := newTokenBucket(5, 10, 0)
	for i := 0; i < 7; i++ {
		b.allow(0)
	}

	for i, want := range []int64{1, 0} {
		allowed, remaining := b.allow(4)
		if !allowed {
			t.Errorf("refill request %d: expected allowed (2 tokens accrued)", i+1)
		}
		if remaining != want {
			t.Errorf("refill request %d: remaining = %d, want %d", i+1, remaining, want)
		}
	}
}

func TestTokenBucket_CapacityBound(t *testing.T) {
	// TB capacity bound: true count <= C + floor(R*W) over any elapsed window.
	b := newTokenBucket(5, 10, 0) // C=5, R=0.5
	now := 0.0
	var trueCount int64
	for i := 0; i < 50; i++ {
		allowed, _ := b.allow(now)
		if allowed {
			trueCount++
		}
		now += 0.2
	}
	maxAllowed := int64(5 + int(0.5*now))
	if trueCount > maxAllowed {
		t.Errorf("true count %d exceeds bound %d over window %.1fs", trueCount, maxAllowed, now)
	}
}

func TestTokenBucket_TokensNeverExceedCapacity(t *testing.T) {
	b := newTokenBucket(5, 1, 0)
	b.allow(1000) // huge elapsed time, tokens should clamp to capacity
	if b.tokens > 5 {
		t.Errorf("tokens = %v, want <= capacity (5)", b.tokens)
	}
}

func TestTokenBucket_Matches(t *testing.T) {
	b := newTokenBucket(5, 10, 0)
	if !b.matches(RateLimitConfig{Algorithm: TokenBucket, MaxRequests: 5, WindowSeconds: 10}) {
		t.Error("expected matching config to match")
	}
	if b.matches(RateLimitConfig{Algorithm: TokenBucket, MaxRequests: 6, WindowSeconds: 10}) {
		t.Error("expected different maxRequests to not match")
	}
	if b.matches(RateLimitConfig{Algorithm: LeakyBucket, MaxRequests: 5, WindowSeconds: 10}) {
		t.Error("expected different algorithm to not match")
	}
}
