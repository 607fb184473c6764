package engine

import "sync"

// fakeStore is a minimal in-memory Store used only by this package's own
// tests, so engine tests never depend on package store/memory (which in
// turn imports engine's exported types).
type fakeStore struct {
	mu      sync.Mutex
	keys    map[string]ApiKeyRecord
	configs map[string][]RateLimitConfig
	logs    []RequestLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		keys:    make(map[string]ApiKeyRecord),
		configs: make(map[string][]RateLimitConfig),
	}
}

func (s *fakeStore) PutApiKey(record ApiKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[record.ApiKey] = record
	return nil
}

func (s *fakeStore) ListApiKeys() ([]ApiKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ApiKeyRecord, 0, len(s.keys))
	for _, r := range s.keys {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) FindApiKey(apiKey string) (ApiKeyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.keys[apiKey]
	return r, ok, nil
}

func (s *fakeStore) PutConfig(record RateLimitConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[record.ApiKey] = append(s.configs[record.ApiKey], record)
	return nil
}

func (s *fakeStore) ListConfigs() ([]RateLimitConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RateLimitConfig
	for _, cs := range s.configs {
		out = append(out, cs...)
	}
	return out, nil
}

func (s *fakeStore) LatestConfigFor(apiKey string) (RateLimitConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.configs[apiKey]
	if len(cs) == 0 {
		return RateLimitConfig{}, false, nil
	}
	latest := cs[0]
	for _, c := range cs[1:] {
		if c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest, true, nil
}

func (s *fakeStore) AppendLog(record RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, record)
	return nil
}

func (s *fakeStore) RecentLogs(limit int) ([]RequestLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.logs)
	if limit > n {
		limit = n
	}
	out := make([]RequestLog, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.logs[n-1-i]
	}
	return out, nil
}

func (s *fakeStore) CountLogs() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.logs)), nil
}

func (s *fakeStore) DeleteAllLogs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
	return nil
}
