// Package middleware provides generic net/http middleware over the
// engine's Decision Gateway, for protecting handlers other than the
// dedicated JSON routes in package httpapi.
package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/kestrelapi/ratelimiter/engine"
)

// KeyFunc extracts the apiKey from an HTTP request.
type KeyFunc func(r *http.Request) string

// ErrorHandler is called when the gateway returns an error other than a
// rate-limit block. Default: 500 for unknown errors, 401 for KeyUnknown.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DeniedHandler is called when a request is rate limited.
// Default: 429 Too Many Requests with Retry-After header.
type DeniedHandler func(w http.ResponseWriter, r *http.Request, result engine.DecisionResult)

// Config holds the rate limit middleware configuration.
type Config struct {
	// Gateway is the decision gateway (required).
	Gateway *engine.Gateway

	// KeyFunc extracts the apiKey from the request (required).
	KeyFunc KeyFunc

	// ErrorHandler handles non-block errors. Default: maps KeyUnknown to
	// 401, everything else to 500.
	ErrorHandler ErrorHandler

	// DeniedHandler handles a block decision. Default: 429 with headers.
	DeniedHandler DeniedHandler

	// ExcludePaths bypass rate limiting entirely.
	ExcludePaths map[string]bool

	// Headers controls whether X-RateLimit-* headers are set. Default: true.
	Headers *bool
}

// RateLimit creates HTTP middleware with default settings.
func RateLimit(gateway *engine.Gateway, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return RateLimitWithConfig(Config{Gateway: gateway, KeyFunc: keyFunc})
}

// RateLimitWithConfig creates HTTP middleware with full configuration control.
func RateLimitWithConfig(cfg Config) func(http.Handler) http.Handler {
	if cfg.Gateway == nil {
		panic("middleware: Gateway is required")
	}
	if cfg.KeyFunc == nil {
		panic("middleware: KeyFunc is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}
	sendHeaders := cfg.Headers == nil || *cfg.Headers

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.ExcludePaths != nil && cfg.ExcludePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.KeyFunc(r)
			result, err := cfg.Gateway.Decide(key, r.URL.Path)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			if sendHeaders {
				setRateLimitHeaders(w, result)
			}

			if !result.Allowed {
				cfg.DeniedHandler(w, r, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ─── Built-in Key Extractors ─────────────────────────────────────────────────

// KeyByHeader returns a KeyFunc that uses the value of the given header —
// the conventional way an apiKey arrives on a request.
func KeyByHeader(header string) KeyFunc {
	return func(r *http.Request) string {
		return r.Header.Get(header)
	}
}

// KeyByQuery returns a KeyFunc that uses the value of the given query
// parameter, matching the `?api_key=...` convention of /protected/test.
func KeyByQuery(param string) KeyFunc {
	return func(r *http.Request) string {
		return r.URL.Query().Get(param)
	}
}

// ─── Headers ─────────────────────────────────────────────────────────────────

func setRateLimitHeaders(w http.ResponseWriter, result engine.DecisionResult) {
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.RemainingQuota, 10))
	w.Header().Set("X-RateLimit-Algorithm", string(result.Algorithm))
	if !result.Allowed {
		w.Header().Set("Retry-After", "1")
	}
}

// ─── Default Handlers ────────────────────────────────────────────────────────

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, engine.ErrKeyUnknown) {
		http.Error(w, "unknown api key", http.StatusUnauthorized)
		return
	}
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func defaultDeniedHandler(w http.ResponseWriter, _ *http.Request, result engine.DecisionResult) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"detail":"Rate limit exceeded","remaining_quota":0,"algorithm":"` + string(result.Algorithm) + `"}`))
}
