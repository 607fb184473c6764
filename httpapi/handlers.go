// Package httpapi implements the JSON admin and decision routes atop the
// engine's Decision Gateway, Registry, Aggregator, and Store — the route
// table a dashboard or load-testing client drives directly.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrelapi/ratelimiter/engine"
)

// Server wires the route handlers to a concrete Gateway/Store/Aggregator
// triple. Construct one per process and call Register with a router group.
type Server struct {
	Store      engine.Store
	Gateway    *engine.Gateway
	Aggregator *engine.Aggregator
	Driver     *engine.Driver
}

// Register attaches every route this package exposes under the given
// router group (typically r.Group("/api")).
func (s *Server) Register(group *gin.RouterGroup) {
	group.POST("/api-keys", s.createApiKey)
	group.GET("/api-keys", s.listApiKeys)
	group.POST("/rate-limit-configs", s.createConfig)
	group.GET("/rate-limit-configs", s.listConfigs)
	group.GET("/protected/test", s.protectedTest)
	group.GET("/analytics/summary", s.analyticsSummary)
	group.GET("/analytics/recent-logs", s.recentLogs)
	group.POST("/load-test", s.loadTest)
	group.GET("/system-status", s.systemStatus)
	group.DELETE("/reset-stats", s.resetStats)
}

// ─── api-keys ────────────────────────────────────────────────────────────────

type createApiKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) createApiKey(c *gin.Context) {
	var req createApiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadInput(c, "name", "required")
		return
	}

	record := engine.ApiKeyRecord{
		ID:        uuid.NewString(),
		Name:      req.Name,
		ApiKey:    uuid.NewString(),
		CreatedAt: time.Now(),
	}
	if err := s.Store.PutApiKey(record); err != nil {
		respondPersistenceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) listApiKeys(c *gin.Context) {
	records, err := s.Store.ListApiKeys()
	if err != nil {
		respondPersistenceError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ─── rate-limit-configs ──────────────────────────────────────────────────────

type createConfigRequest struct {
	ApiKey        string          `json:"apiKey" binding:"required"`
	Algorithm     engine.Algorithm `json:"algorithm" binding:"required"`
	MaxRequests   int64           `json:"maxRequests"`
	WindowSeconds float64         `json:"windowSeconds"`
}

func (s *Server) createConfig(c *gin.Context) {
	var req createConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadInput(c, "body", "malformed json")
		return
	}

	cfg := engine.RateLimitConfig{
		ID:            uuid.NewString(),
		ApiKey:        req.ApiKey,
		Algorithm:     req.Algorithm,
		MaxRequests:   req.MaxRequests,
		WindowSeconds: req.WindowSeconds,
		CreatedAt:     time.Now(),
	}
	if err := cfg.Validate(); err != nil {
		respondError(c, err)
		return
	}
	if err := s.Store.PutConfig(cfg); err != nil {
		respondPersistenceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

func (s *Server) listConfigs(c *gin.Context) {
	configs, err := s.Store.ListConfigs()
	if err != nil {
		respondPersistenceError(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

// ─── decision surface ────────────────────────────────────────────────────────

func (s *Server) protectedTest(c *gin.Context) {
	apiKey := c.Query("api_key")
	if apiKey == "" {
		respondBadInput(c, "api_key", "required")
		return
	}

	result, err := s.Gateway.Decide(apiKey, c.FullPath())
	if err != nil {
		respondError(c, err)
		return
	}

	if !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"detail":          "Rate limit exceeded",
			"remaining_quota": result.RemainingQuota,
			"algorithm":       result.Algorithm,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"remaining_quota": result.RemainingQuota,
		"algorithm":       result.Algorithm,
		"timestamp":       result.Timestamp,
	})
}

// ─── analytics ───────────────────────────────────────────────────────────────

func (s *Server) analyticsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.Aggregator.Summary())
}

func (s *Server) recentLogs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := parsePositiveInt(raw); err == nil {
			limit = n
		}
	}
	c.JSON(http.StatusOK, s.Aggregator.Recent(limit))
}

// ─── load test ───────────────────────────────────────────────────────────────

type loadTestRequest struct {
	ApiKey            string  `json:"apiKey" binding:"required"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	DurationSeconds   float64 `json:"durationSeconds"`
	Endpoint          string  `json:"endpoint"`
}

func (s *Server) loadTest(c *gin.Context) {
	var req loadTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadInput(c, "body", "malformed json")
		return
	}

	result, err := s.Driver.Run(engine.LoadTestRequest{
		ApiKey:          req.ApiKey,
		RequestsPerSec:  req.RequestsPerSecond,
		DurationSeconds: req.DurationSeconds,
		Endpoint:        req.Endpoint,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ─── system status / reset ───────────────────────────────────────────────────

func (s *Server) systemStatus(c *gin.Context) {
	keys, err := s.Store.ListApiKeys()
	if err != nil {
		respondPersistenceError(c, err)
		return
	}
	configs, err := s.Store.ListConfigs()
	if err != nil {
		respondPersistenceError(c, err)
		return
	}
	totalLogs, err := s.Store.CountLogs()
	if err != nil {
		respondPersistenceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"activeApiKeys":       len(keys),
		"activeConfigs":       len(configs),
		"totalRequestsLogged": totalLogs,
	})
}

func (s *Server) resetStats(c *gin.Context) {
	s.Aggregator.Reset()
	if err := s.Store.DeleteAllLogs(); err != nil {
		respondPersistenceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ─── response helpers ────────────────────────────────────────────────────────

func respondError(c *gin.Context, err error) {
	var badInput *engine.BadInputError
	var rateLimited *engine.RateLimitedError
	var persistence *engine.PersistenceError

	switch {
	case errors.As(err, &badInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrKeyUnknown):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown api key"})
	case errors.As(err, &rateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.As(err, &persistence):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondBadInput(c *gin.Context, field, reason string) {
	respondError(c, &engine.BadInputError{Field: field, Reason: reason})
}

func respondPersistenceError(c *gin.Context, err error) {
	respondError(c, &engine.PersistenceError{Op: "store", Err: err})
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errBadNumber
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, errBadNumber
	}
	return n, nil
}

var errBadNumber = errors.New("not a positive integer")
