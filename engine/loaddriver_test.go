package engine

import (
	"testing"
	"time"
)

func TestDriver_Run(t *testing.T) {
	store := newFakeStore()
	store.PutApiKey(ApiKeyRecord{ApiKey: "k1"})
	store.PutConfig(RateLimitConfig{ApiKey: "k1", Algorithm: TokenBucket, MaxRequests: 1000, WindowSeconds: 60, CreatedAt: time.Unix(0, 0)})
	g := newTestGateway(store, NewRealClock())
	d := NewDriver(g)

	result, err := d.Run(LoadTestRequest{ApiKey: "k1", RequestsPerSec: 50, DurationSeconds: 0.2, Endpoint: "/x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRequests == 0 {
		t.Error("expected at least one request issued")
	}
	if result.Allowed+result.Blocked != result.TotalRequests {
		t.Errorf("allowed(%d)+blocked(%d) != total(%d)", result.Allowed, result.Blocked, result.TotalRequests)
	}
	if result.RequestsPerSecond != 50 {
		t.Errorf("RequestsPerSecond = %v, want 50 (echoed config)", result.RequestsPerSecond)
	}
}

func TestDriver_RejectsBadInput(t *testing.T) {
	d := NewDriver(newTestGateway(newFakeStore(), NewVirtualClock(0)))

	if _, err := d.Run(LoadTestRequest{ApiKey: "k1", RequestsPerSec: 0, DurationSeconds: 1}); err == nil {
		t.Error("expected error for zero requestsPerSecond")
	}
	if _, err := d.Run(LoadTestRequest{ApiKey: "k1", RequestsPerSec: 1, DurationSeconds: 0}); err == nil {
		t.Error("expected error for zero durationSeconds")
	}
}
