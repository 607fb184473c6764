package engine

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Store is the persistence slice the Decision Gateway and HTTP/gRPC
// surfaces consume. Concrete implementations live under store/ (memory,
// mongostore); the engine only depends on this interface, never a specific
// backend.
type Store interface {
	PutApiKey(record ApiKeyRecord) error
	ListApiKeys() ([]ApiKeyRecord, error)
	FindApiKey(apiKey string) (ApiKeyRecord, bool, error)

	PutConfig(record RateLimitConfig) error
	ListConfigs() ([]RateLimitConfig, error)
	LatestConfigFor(apiKey string) (RateLimitConfig, bool, error)

	AppendLog(record RequestLog) error
	RecentLogs(limit int) ([]RequestLog, error)
	CountLogs() (int64, error)
	DeleteAllLogs() error
}

// MetricsRecorder is the narrow slice of the Prometheus collector the
// gateway calls after releasing the instance mutex, so instrumentation
// never lengthens the critical section. Optional: a nil recorder is a
// valid no-op.
type MetricsRecorder interface {
	ObserveDecision(algorithm Algorithm, allowed bool, duration time.Duration)
}

// FailureLogger receives best-effort notices about persistence failures
// and queue overflows. Optional: a nil logger is a valid no-op.
type FailureLogger interface {
	PersistenceFailed(op string, err error)
	LogDropped()
}

// DefaultInstanceConfig is the config synthesized for an apiKey that has
// no stored RateLimitConfig, per distilled spec §4.4 step 2.
var DefaultInstanceConfig = RateLimitConfig{
	Algorithm:     TokenBucket,
	MaxRequests:   100,
	WindowSeconds: 60,
}

const logQueueCapacity = 4096

// Gateway is the engine's single front door: decide(apiKey, endpoint).
type Gateway struct {
	store      Store
	registry   *Registry
	analytics  *Aggregator
	clock      Clock
	metrics    MetricsRecorder
	logger     FailureLogger
	defaultCfg RateLimitConfig

	logQueue chan RequestLog
	idSeq    atomic.Int64
}

// GatewayOption configures optional Gateway behavior.
type GatewayOption func(*Gateway)

// WithMetrics attaches a MetricsRecorder invoked after every decision.
func WithMetrics(m MetricsRecorder) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithFailureLogger attaches a FailureLogger for persistence failures and
// queue overflow.
func WithFailureLogger(l FailureLogger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithDefaultInstanceConfig overrides the config synthesized for
// unconfigured keys.
func WithDefaultInstanceConfig(cfg RateLimitConfig) GatewayOption {
	return func(g *Gateway) { g.defaultCfg = cfg }
}

// NewGateway wires a Gateway over store, registry, and analytics, and
// starts the background log-persistence worker.
func NewGateway(store Store, registry *Registry, analytics *Aggregator, clock Clock, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:      store,
		registry:   registry,
		analytics:  analytics,
		clock:      clock,
		defaultCfg: DefaultInstanceConfig,
		logQueue:   make(chan RequestLog, logQueueCapacity),
	}
	for _, opt := range opts {
		opt(g)
	}
	go g.drainLogQueue()
	return g
}

// Decide resolves apiKey, invokes its instance under the instance's own
// mutex, records a log entry and counters, and returns the outcome.
//
// It never returns ErrRateLimited as a bare error from the algorithm step
// — a block is a legitimate DecisionResult with Allowed=false. Callers
// that need an HTTP/gRPC status mapping should use DecideOrError, which
// wraps a block as a *RateLimitedError.
func (g *Gateway) Decide(apiKey, endpoint string) (DecisionResult, error) {
	record, found, err := g.store.FindApiKey(apiKey)
	if err != nil {
		return DecisionResult{}, &PersistenceError{Op: "findApiKey", Err: err}
	}
	if !found {
		return DecisionResult{}, ErrKeyUnknown
	}
	_ = record

	inst, err := g.registry.GetOrCreate(apiKey)
	if err == ErrNotConfigured {
		inst, err = g.registry.CreateDefault(apiKey, g.defaultCfg)
	}
	if err != nil {
		return DecisionResult{}, err
	}

	start := g.clock.Now()
	decisionStart := time.Now()
	allowed, remaining := inst.Allow(start)
	ts := time.Now()
	algo := inst.Algorithm()

	if g.metrics != nil {
		g.metrics.ObserveDecision(algo, allowed, time.Since(decisionStart))
	}

	log := RequestLog{
		ID:             g.nextLogID(),
		ApiKey:         apiKey,
		Endpoint:       endpoint,
		Allowed:        allowed,
		Timestamp:      ts,
		Algorithm:      algo,
		RemainingQuota: remaining,
	}

	// Synchronous: the dashboard's response-time telemetry must reflect
	// this decision immediately.
	g.analytics.Record(log)

	// Asynchronous: persistence latency never enters the decision path.
	g.submitLog(log)

	return DecisionResult{
		Allowed:        allowed,
		Algorithm:      algo,
		RemainingQuota: remaining,
		Timestamp:      ts,
	}, nil
}

// DecideOrError calls Decide and, on a block, returns a *RateLimitedError
// instead of an Allowed=false result — convenient for transports that map
// errors directly to status codes.
func (g *Gateway) DecideOrError(apiKey, endpoint string) (DecisionResult, error) {
	result, err := g.Decide(apiKey, endpoint)
	if err != nil {
		return result, err
	}
	if !result.Allowed {
		return result, &RateLimitedError{ApiKey: apiKey, Algorithm: string(result.Algorithm)}
	}
	return result, nil
}

func (g *Gateway) nextLogID() string {
	return fmt.Sprintf("log-%d", g.idSeq.Add(1))
}

// submitLog hands log to the bounded queue. When full, the oldest queued
// entry is dropped in favor of the newest, per distilled spec §9's
// documented overflow policy.
func (g *Gateway) submitLog(log RequestLog) {
	for {
		select {
		case g.logQueue <- log:
			return
		default:
			select {
			case <-g.logQueue:
				if g.logger != nil {
					g.logger.LogDropped()
				}
			default:
			}
		}
	}
}

func (g *Gateway) drainLogQueue() {
	for log := range g.logQueue {
		if err := g.store.AppendLog(log); err != nil {
			if g.logger != nil {
				g.logger.PersistenceFailed("appendLog", err)
			}
		}
	}
}
