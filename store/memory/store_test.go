package memory_test

import (
	"testing"
	"time"

	"github.com/kestrelapi/ratelimiter/engine"
	"github.com/kestrelapi/ratelimiter/store/memory"
)

func TestMemoryStore_ApiKeys(t *testing.T) {
	s := memory.New(0)
	defer s.Close()

	_, ok, err := s.FindApiKey("missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected missing key to not be found")
	}

	record := engine.ApiKeyRecord{ID: "1", Name: "svc", ApiKey: "abc", CreatedAt: time.Now()}
	if err := s.PutApiKey(record); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.FindApiKey("abc")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.Name != "svc" {
		t.Errorf("FindApiKey = %+v, %v, want {Name: svc}, true", got, ok)
	}

	all, err := s.ListApiKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("len(ListApiKeys()) = %d, want 1", len(all))
	}
}

func TestMemoryStore_LatestConfigWins(t *testing.T) {
	s := memory.New(0)
	defer s.Close()

	older := engine.RateLimitConfig{ID: "c1", ApiKey: "k", Algorithm: engine.TokenBucket, MaxRequests: 5, WindowSeconds: 10, CreatedAt: time.Unix(0, 0)}
	newer := engine.RateLimitConfig{ID: "c2", ApiKey: "k", Algorithm: engine.FixedWindow, MaxRequests: 9, WindowSeconds: 20, CreatedAt: time.Unix(100, 0)}

	if err := s.PutConfig(older); err != nil {
		t.Fatal(err)
	}
	if err := s.PutConfig(newer); err != nil {
		t.Fatal(err)
	}

	latest, ok, err := s.LatestConfigFor("k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || latest.ID != "c2" {
		t.Errorf("LatestConfigFor = %+v, want id c2 (most recent by createdAt)", latest)
	}
}

func TestMemoryStore_LogsRecentNewestFirst(t *testing.T) {
	s := memory.New(0)
	defer s.Close()

	for _, id := range []string{"l1", "l2", "l3"} {
		if err := s.AppendLog(engine.RequestLog{ID: id}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.RecentLogs(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ID != "l3" || recent[1].ID != "l2" {
		t.Errorf("RecentLogs(2) = %+v, want [l3 l2]", recent)
	}

	count, err := s.CountLogs()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("CountLogs() = %d, want 3", count)
	}

	if err := s.DeleteAllLogs(); err != nil {
		t.Fatal(err)
	}
	count, _ = s.CountLogs()
	if count != 0 {
		t.Errorf("CountLogs() after DeleteAllLogs = %d, want 0", count)
	}
}
