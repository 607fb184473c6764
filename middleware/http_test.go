package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kestrelapi/ratelimiter/engine"
	"github.com/kestrelapi/ratelimiter/middleware"
	"github.com/kestrelapi/ratelimiter/store/memory"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func newTestGateway(t *testing.T, maxRequests int64) *engine.Gateway {
	t.Helper()
	s := memory.New(0)
	t.Cleanup(func() { s.Close() })

	if err := s.PutApiKey(engine.ApiKeyRecord{ApiKey: "k1", Name: "test"}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutConfig(engine.RateLimitConfig{
		ApiKey: "k1", Algorithm: engine.FixedWindow, MaxRequests: maxRequests, WindowSeconds: 60, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	registry := engine.NewRegistry(s, engine.NewRealClock())
	aggregator := engine.NewAggregator(registry, 0)
	return engine.NewGateway(s, registry, aggregator, engine.NewRealClock())
}

func TestRateLimit_AllowsWithinLimit(t *testing.T) {
	gateway := newTestGateway(t, 5)
	handler := middleware.RateLimit(gateway, middleware.KeyByHeader("X-Api-Key"))(okHandler())

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.Header.Set("X-Api-Key", "k1")
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
}

func TestRateLimit_DeniesExceedingLimit(t *testing.T) {
	gateway := newTestGateway(t, 3)
	handler := middleware.RateLimit(gateway, middleware.KeyByHeader("X-Api-Key"))(okHandler())

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.Header.Set("X-Api-Key", "k1")
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("X-Api-Key", "k1")
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rr.Code)
	}
}

func TestRateLimit_UnknownKeyReturns401(t *testing.T) {
	gateway := newTestGateway(t, 5)
	handler := middleware.RateLimit(gateway, middleware.KeyByHeader("X-Api-Key"))(okHandler())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("X-Api-Key", "ghost")
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestRateLimit_ExcludedPathBypassesLimit(t *testing.T) {
	gateway := newTestGateway(t, 1)
	handler := middleware.RateLimitWithConfig(middleware.Config{
		Gateway:      gateway,
		KeyFunc:      middleware.KeyByHeader("X-Api-Key"),
		ExcludePaths: map[string]bool{"/health": true},
	})(okHandler())

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("X-Api-Key", "k1")
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("excluded path request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
}
