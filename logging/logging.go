// Package logging adapts zap to the engine's FailureLogger interface and
// provides the process-wide logger construction used by cmd/server.
package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// New builds a production zap.Logger. Swap for zap.NewDevelopment in local
// runs if human-readable output is preferred over JSON.
func New() (*zap.Logger, error) {
	return zap.NewProduction()
}

// GatewayLogger implements engine.FailureLogger on top of a *zap.Logger.
type GatewayLogger struct {
	log     *zap.Logger
	dropped atomic.Uint64
}

// NewGatewayLogger wraps log for use as a Gateway's FailureLogger.
func NewGatewayLogger(log *zap.Logger) *GatewayLogger {
	return &GatewayLogger{log: log}
}

// PersistenceFailed logs a failed Config Store write. Called from the
// background log-drain goroutine, never from the decision path.
func (g *GatewayLogger) PersistenceFailed(op string, err error) {
	g.log.Error("persistence write failed", zap.String("op", op), zap.Error(err))
}

// LogDropped counts a bounded-queue overflow (the oldest entry dropped in
// favor of the newest). Deliberately not logged per-occurrence: under
// sustained overflow that would reproduce the same per-request log
// amplification the queue exists to avoid. Use DroppedCount for
// diagnostics.
func (g *GatewayLogger) LogDropped() {
	g.dropped.Add(1)
}

// DroppedCount returns the number of request logs dropped since startup.
func (g *GatewayLogger) DroppedCount() uint64 {
	return g.dropped.Load()
}
