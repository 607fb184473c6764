package engine

import "math"

// slidingWindowCounter is the approximate weighted-counter variant named
// in the distilled spec's non-goals: it interpolates between the previous
// and current fixed windows rather than tracking exact request timestamps.
type slidingWindowCounter struct {
	maxRequests        int64
	windowSeconds      float64
	currentWindowStart float64
	currentCount       int64
	previousCount       int64
}

func newSlidingWindowCounter(maxRequests int64, windowSeconds float64, now float64) *slidingWindowCounter {
	return &slidingWindowCounter{
		maxRequests:        maxRequests,
		windowSeconds:      windowSeconds,
		currentWindowStart: now,
	}
}

func (s *slidingWindowCounter) allow(now float64) (bool, int64) {
	elapsed := now - s.currentWindowStart

	if elapsed >= s.windowSeconds {
		if elapsed >= 2*s.windowSeconds {
			s.previousCount = 0
			s.currentCount = 0
			s.currentWindowStart = now
			elapsed = 0
		} else {
			s.previousCount = s.currentCount
			s.currentCount = 0
			s.currentWindowStart += s.windowSeconds
			elapsed = now - s.currentWindowStart
		}
	}

	weight := (s.windowSeconds - elapsed) / s.windowSeconds
	estimate := float64(s.previousCount)*weight + float64(s.currentCount)

	if estimate < float64(s.maxRequests) {
		s.currentCount++
		remaining := math.Floor(float64(s.maxRequests) - estimate - 1)
		if remaining < 0 {
			remaining = 0
		}
		return true, int64(remaining)
	}
	return false, 0
}

func (s *slidingWindowCounter) algorithm() Algorithm { return SlidingWindowCounter }

func (s *slidingWindowCounter) matches(cfg RateLimitConfig) bool {
	return cfg.Algorithm == SlidingWindowCounter && cfg.MaxRequests == s.maxRequests && cfg.WindowSeconds == s.windowSeconds
}
