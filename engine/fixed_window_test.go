package engine

import "testing"

func TestFixedWindow_BoundaryBurst(t *testing.T) {
	// Scenario 3: max=5, window=10. At t=9.9 send 5 (all allowed).
	// At t=10.1 send 5 more (all allowed) -- demonstrates the documented
	// up-to-2N boundary behavior.
	w := newFixedWindow(5, 10, 0)

	for i := 0; i < 5; i++ {
		allowed, _ := w.allow(9.9)
		if !allowed {
			t.Errorf("pre-boundary request %d: expected allowed", i+1)
		}
	}
	for i := 0; i < 5; i++ {
		allowed, _ := w.allow(10.1)
		if !allowed {
			t.Errorf("post-boundary request %d: expected allowed", i+1)
		}
	}
}

func TestFixedWindow_CountNeverExceedsMax(t *testing.T) {
	w := newFixedWindow(5, 10, 0)
	var allowedCount int64
	for i := 0; i < 20; i++ {
		allowed, _ := w.allow(5) // all within the same window
		if allowed {
			allowedCount++
		}
	}
	if allowedCount != 5 {
		t.Errorf("allowed count = %d, want exactly 5 within one window", allowedCount)
	}
}

func TestFixedWindow_ResetsOnNewWindow(t *testing.T) {
	w := newFixedWindow(2, 10, 0)
	w.allow(0)
	w.allow(0)
	allowed, _ := w.allow(0)
	if allowed {
		t.Error("3rd request in same window: expected blocked")
	}

	allowed, remaining := w.allow(10)
	if !allowed {
		t.Error("first request of new window: expected allowed")
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
}

func TestFixedWindow_Matches(t *testing.T) {
	w := newFixedWindow(5, 10, 0)
	if !w.matches(RateLimitConfig{Algorithm: FixedWindow, MaxRequests: 5, WindowSeconds: 10}) {
		t.Error("expected matching config to match")
	}
}
