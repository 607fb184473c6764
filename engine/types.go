package engine

import "time"

// Algorithm identifies which of the four decision algorithms a
// RateLimitConfig or LimiterInstance uses. The wire format (used in JSON
// and in the gRPC metadata surface) is the lowercase snake_case string
// value itself.
type Algorithm string

const (
	TokenBucket         Algorithm = "token_bucket"
	LeakyBucket         Algorithm = "leaky_bucket"
	FixedWindow         Algorithm = "fixed_window"
	SlidingWindowCounter Algorithm = "sliding_window"
)

// Validate reports whether a is one of the four known algorithms.
func (a Algorithm) Validate() error {
	switch a {
	case TokenBucket, LeakyBucket, FixedWindow, SlidingWindowCounter:
		return nil
	default:
		return &BadInputError{Field: "algorithm", Reason: "must be one of token_bucket, leaky_bucket, fixed_window, sliding_window"}
	}
}

// ApiKeyRecord is an opaque bearer token identifying a tenant.
type ApiKeyRecord struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	ApiKey    string    `json:"apiKey" bson:"apiKey"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// RateLimitConfig describes the policy in force for one apiKey. A new
// insert for the same apiKey supersedes earlier configs for that key; the
// Config Store resolves "most recent wins" via CreatedAt.
type RateLimitConfig struct {
	ID            string    `json:"id" bson:"_id"`
	ApiKey        string    `json:"apiKey" bson:"apiKey"`
	Algorithm     Algorithm `json:"algorithm" bson:"algorithm"`
	MaxRequests   int64     `json:"maxRequests" bson:"maxRequests"`
	WindowSeconds float64   `json:"windowSeconds" bson:"windowSeconds"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// Validate checks the structural constraints the distilled spec places on
// an admin-submitted config: positive maxRequests, positive windowSeconds,
// and a recognized algorithm.
func (c RateLimitConfig) Validate() error {
	if c.ApiKey == "" {
		return &BadInputError{Field: "apiKey", Reason: "required"}
	}
	if c.MaxRequests <= 0 {
		return &BadInputError{Field: "maxRequests", Reason: "must be a positive integer"}
	}
	if c.WindowSeconds <= 0 {
		return &BadInputError{Field: "windowSeconds", Reason: "must be a positive number"}
	}
	return c.Algorithm.Validate()
}

// RequestLog records the outcome of a single decision.
type RequestLog struct {
	ID              string    `json:"id" bson:"_id"`
	ApiKey          string    `json:"apiKey" bson:"apiKey"`
	Endpoint        string    `json:"endpoint" bson:"endpoint"`
	Allowed         bool      `json:"allowed" bson:"allowed"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
	Algorithm       Algorithm `json:"algorithm" bson:"algorithm"`
	RemainingQuota  int64     `json:"remainingQuota" bson:"remainingQuota"`
}

// AlgorithmStat is one slice of Counters, keyed by algorithm tag in Summary.
type AlgorithmStat struct {
	Total       int64   `json:"total"`
	Allowed     int64   `json:"allowed"`
	Blocked     int64   `json:"blocked"`
	SuccessRate float64 `json:"successRate"`
}

// Counters is the Analytics Aggregator's process-wide state.
type Counters struct {
	TotalRequests int64
	Allowed       int64
	Blocked       int64
	PerAlgorithm  map[Algorithm]*AlgorithmStat
}

// Summary is the read-only snapshot returned by Aggregator.Summary.
type Summary struct {
	TotalRequests   int64                     `json:"totalRequests"`
	AllowedRequests int64                     `json:"allowedRequests"`
	BlockedRequests int64                     `json:"blockedRequests"`
	SuccessRate     float64                   `json:"successRate"`
	AlgorithmStats  map[Algorithm]AlgorithmStat `json:"algorithmStats"`
}

// DecisionResult is the outcome of Gateway.Decide.
type DecisionResult struct {
	Allowed        bool      `json:"success"`
	Algorithm      Algorithm `json:"algorithm"`
	RemainingQuota int64     `json:"remaining_quota"`
	Timestamp      time.Time `json:"timestamp"`
}

// TestResult is the outcome of Driver.Run.
type TestResult struct {
	TotalRequests     int64         `json:"totalRequests"`
	Allowed           int64         `json:"allowed"`
	Blocked           int64         `json:"blocked"`
	SuccessRate       float64       `json:"successRate"`
	ActualDuration    time.Duration `json:"actualDuration"`
	RequestsPerSecond float64       `json:"requestsPerSecond"`
}

func successRate(allowed, total int64) float64 {
	if total == 0 {
		return 0
	}
	rate := float64(allowed) / float64(total) * 100
	return roundTo2(rate)
}

func roundTo2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
