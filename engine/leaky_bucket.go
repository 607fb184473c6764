package engine

import "math"

// leakyBucket enforces a strict constant drain rate with no bursts beyond
// capacity. Unlike a level-based accumulator, this variant keeps the
// literal ordered queue of admission timestamps the distilled spec names,
// so "len(queue) <= capacity" is an observable structural invariant, not
// just an arithmetic bound.
type leakyBucket struct {
	capacity      int64
	windowSeconds float64
	leakRate      float64 // requests per second = capacity / windowSeconds
	queue         []float64
	lastLeakAt    float64
}

func newLeakyBucket(maxRequests int64, windowSeconds float64, now float64) *leakyBucket {
	return &leakyBucket{
		capacity:      maxRequests,
		windowSeconds: windowSeconds,
		leakRate:      float64(maxRequests) / windowSeconds,
		queue:         make([]float64, 0, maxRequests),
		lastLeakAt:    now,
	}
}

func (b *leakyBucket) allow(now float64) (bool, int64) {
	elapsed := math.Max(0, now-b.lastLeakAt)
	toLeak := int64(math.Floor(elapsed * b.leakRate))

	n := toLeak
	if n > int64(len(b.queue)) {
		n = int64(len(b.queue))
	}
	if n > 0 {
		b.queue = b.queue[n:]
		// lastLeakAt only advances when at least one entry actually
		// popped, so fractional elapsed time keeps accumulating while
		// the queue sits empty — see DESIGN.md for the open question
		// this resolves.
		b.lastLeakAt = now
	}

	if int64(len(b.queue)) < b.capacity {
		b.queue = append(b.queue, now)
		return true, b.capacity - int64(len(b.queue))
	}
	return false, 0
}

func (b *leakyBucket) algorithm() Algorithm { return LeakyBucket }

func (b *leakyBucket) matches(cfg RateLimitConfig) bool {
	return cfg.Algorithm == LeakyBucket && cfg.MaxRequests == b.capacity && cfg.WindowSeconds == b.windowSeconds
}
