// Package ginmw provides Gin middleware for rate limiting.
//
// Separated from the middleware package so that importing the HTTP middleware
// does not pull in github.com/gin-gonic/gin.
//
// Usage:
//
//	gateway := engine.NewGateway(store, registry, aggregator, clock)
//	r := gin.Default()
//	r.Use(ginmw.RateLimit(gateway, ginmw.KeyByHeader("X-Api-Key")))
package ginmw

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kestrelapi/ratelimiter/engine"
)

// KeyFunc extracts the apiKey from a Gin context.
type KeyFunc func(c *gin.Context) string

// DeniedHandler is called when a request is rate limited.
type DeniedHandler func(c *gin.Context, result engine.DecisionResult)

// ErrorHandler is called when the gateway returns a non-block error.
type ErrorHandler func(c *gin.Context, err error)

// Config holds the rate limit middleware configuration.
type Config struct {
	// Gateway is the decision gateway (required).
	Gateway *engine.Gateway

	// KeyFunc extracts the apiKey from the context (required).
	KeyFunc KeyFunc

	// DeniedHandler is called on a block decision. Default: 429 JSON.
	DeniedHandler DeniedHandler

	// ErrorHandler is called on a non-block error. Default: maps
	// KeyUnknown to 401, everything else to 500.
	ErrorHandler ErrorHandler

	// ExcludePaths are request paths that bypass rate limiting.
	ExcludePaths map[string]bool

	// Headers controls whether X-RateLimit-* headers are set.
	// Default: true.
	Headers *bool
}

// RateLimit creates Gin middleware with default settings.
func RateLimit(gateway *engine.Gateway, keyFunc KeyFunc) gin.HandlerFunc {
	return RateLimitWithConfig(Config{
		Gateway: gateway,
		KeyFunc: keyFunc,
	})
}

// RateLimitWithConfig creates Gin middleware with full configuration control.
func RateLimitWithConfig(cfg Config) gin.HandlerFunc {
	if cfg.Gateway == nil {
		panic("ginmw: Gateway is required")
	}
	if cfg.KeyFunc == nil {
		panic("ginmw: KeyFunc is required")
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	sendHeaders := cfg.Headers == nil || *cfg.Headers

	return func(c *gin.Context) {
		if cfg.ExcludePaths != nil && cfg.ExcludePaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		result, err := cfg.Gateway.Decide(key, c.Request.URL.Path)
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}

		if sendHeaders {
			setHeaders(c, result)
		}

		if !result.Allowed {
			c.Header("Retry-After", "1")
			cfg.DeniedHandler(c, result)
			return
		}

		c.Next()
	}
}

// ─── Built-in Key Extractors ─────────────────────────────────────────────────

// KeyByClientIP uses Gin's ClientIP() which respects trusted proxies.
func KeyByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByHeader returns a KeyFunc that extracts from a request header —
// the conventional way an apiKey arrives on a request.
func KeyByHeader(header string) KeyFunc {
	return func(c *gin.Context) string {
		return c.GetHeader(header)
	}
}

// KeyByQuery returns a KeyFunc that extracts from a query parameter,
// matching the `?api_key=...` convention of /protected/test.
func KeyByQuery(param string) KeyFunc {
	return func(c *gin.Context) string {
		return c.Query(param)
	}
}

// ─── Internals ───────────────────────────────────────────────────────────────

func setHeaders(c *gin.Context, result engine.DecisionResult) {
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.RemainingQuota, 10))
	c.Header("X-RateLimit-Algorithm", string(result.Algorithm))
}

func defaultDeniedHandler(c *gin.Context, result engine.DecisionResult) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"detail":          "Rate limit exceeded",
		"remaining_quota": result.RemainingQuota,
		"algorithm":       result.Algorithm,
	})
}

func defaultErrorHandler(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrKeyUnknown) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown api key"})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
