// Package memory provides an in-memory implementation of engine.Store.
//
// This is the default Config Store backend: used in tests, in ad-hoc
// runs, and selected by cmd/server unless STORE_DRIVER=mongo.
// It does not persist across restarts, which is consistent with the
// engine's non-goals — only the mongostore backend is meant to survive a
// process restart.
//
//	s := memory.New(0)
//	defer s.Close()
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/kestrelapi/ratelimiter/engine"
)

const defaultLogCap = 100_000

// Store implements engine.Store with in-memory state. All operations are
// thread-safe. A background goroutine trims the log slice once it grows
// past capacity, so a long-running load test cannot exhaust memory.
type Store struct {
	mu      sync.Mutex
	keys    map[string]engine.ApiKeyRecord
	configs map[string][]engine.RateLimitConfig
	logs    []engine.RequestLog
	logCap  int
	closeCh chan struct{}
	closed  bool
}

// New creates a new in-memory Store. logCap bounds the retained request
// log; 0 selects the default.
func New(logCap int) *Store {
	if logCap <= 0 {
		logCap = defaultLogCap
	}
	s := &Store{
		keys:    make(map[string]engine.ApiKeyRecord),
		configs: make(map[string][]engine.RateLimitConfig),
		logCap:  logCap,
		closeCh: make(chan struct{}),
	}
	go s.trimLoop()
	return s
}

func (s *Store) trimLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.trimLogs()
		case <-s.closeCh:
			return
		}
	}
}

func (s *Store) trimLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.logs) > s.logCap {
		overflow := len(s.logs) - s.logCap
		s.logs = s.logs[overflow:]
	}
}

// Close stops the background trim loop.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closeCh)
	}
	return nil
}

func (s *Store) PutApiKey(record engine.ApiKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[record.ApiKey] = record
	return nil
}

func (s *Store) ListApiKeys() ([]engine.ApiKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.ApiKeyRecord, 0, len(s.keys))
	for _, r := range s.keys {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FindApiKey(apiKey string) (engine.ApiKeyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.keys[apiKey]
	return r, ok, nil
}

func (s *Store) PutConfig(record engine.RateLimitConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[record.ApiKey] = append(s.configs[record.ApiKey], record)
	return nil
}

func (s *Store) ListConfigs() ([]engine.RateLimitConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []engine.RateLimitConfig
	for _, cs := range s.configs {
		out = append(out, cs...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) LatestConfigFor(apiKey string) (engine.RateLimitConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.configs[apiKey]
	if len(cs) == 0 {
		return engine.RateLimitConfig{}, false, nil
	}
	latest := cs[0]
	for _, c := range cs[1:] {
		if c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest, true, nil
}

func (s *Store) AppendLog(record engine.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, record)
	return nil
}

func (s *Store) RecentLogs(limit int) ([]engine.RequestLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.logs)
	if limit > n {
		limit = n
	}
	if limit < 0 {
		limit = 0
	}
	out := make([]engine.RequestLog, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.logs[n-1-i]
	}
	return out, nil
}

func (s *Store) CountLogs() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.logs)), nil
}

func (s *Store) DeleteAllLogs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
	return nil
}

var _ engine.Store = (*Store)(nil)
