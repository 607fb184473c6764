// Package metrics provides Prometheus instrumentation for the decision
// gateway.
//
// Collector implements engine.MetricsRecorder, so it plugs directly into
// engine.NewGateway via engine.WithMetrics:
//
//	collector := metrics.NewCollector()
//	gateway := engine.NewGateway(store, registry, aggregator, clock,
//	    engine.WithMetrics(collector))
//
// All metrics are partitioned by algorithm tag. Request counts carry an
// additional "decision" label (allowed / blocked).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelapi/ratelimiter/engine"
)

// Collector holds Prometheus metric vectors for decision instrumentation.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

type collectorConfig struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer
	buckets   []float64
}

// CollectorOption configures a Collector.
type CollectorOption func(*collectorConfig)

// WithNamespace sets the Prometheus metric namespace (prefix).
func WithNamespace(ns string) CollectorOption {
	return func(c *collectorConfig) { c.namespace = ns }
}

// WithSubsystem sets the Prometheus metric subsystem.
func WithSubsystem(sub string) CollectorOption {
	return func(c *collectorConfig) { c.subsystem = sub }
}

// WithRegistry registers metrics with the given Registerer instead of
// prometheus.DefaultRegisterer.
func WithRegistry(r prometheus.Registerer) CollectorOption {
	return func(c *collectorConfig) { c.registry = r }
}

// WithBuckets sets custom histogram buckets for request duration.
func WithBuckets(b []float64) CollectorOption {
	return func(c *collectorConfig) { c.buckets = b }
}

var defaultBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}

// NewCollector creates a Collector and registers its metrics.
//
// Metrics registered:
//   - {namespace}_requests_total            counter   (algorithm, decision)
//   - {namespace}_request_duration_seconds  histogram (algorithm)
//
// Default namespace is "ratelimiter".
func NewCollector(opts ...CollectorOption) *Collector {
	cfg := &collectorConfig{
		namespace: "ratelimiter",
		registry:  prometheus.DefaultRegisterer,
		buckets:   defaultBuckets,
	}
	for _, o := range opts {
		o(cfg)
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "requests_total",
		Help:      "Total rate limit decisions partitioned by algorithm and decision.",
	}, []string{"algorithm", "decision"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "request_duration_seconds",
		Help:      "Latency of the algorithm decision step in seconds.",
		Buckets:   cfg.buckets,
	}, []string{"algorithm"})

	cfg.registry.MustRegister(requests, duration)

	return &Collector{
		requests: requests,
		duration: duration,
	}
}

// ObserveDecision implements engine.MetricsRecorder. It is called by the
// gateway after the instance mutex has already been released, so this
// call never lengthens the critical section.
func (c *Collector) ObserveDecision(algorithm engine.Algorithm, allowed bool, duration time.Duration) {
	decision := "blocked"
	if allowed {
		decision = "allowed"
	}
	c.requests.WithLabelValues(string(algorithm), decision).Inc()
	c.duration.WithLabelValues(string(algorithm)).Observe(duration.Seconds())
}

var _ engine.MetricsRecorder = (*Collector)(nil)
