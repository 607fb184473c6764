package engine

import "sync"

// ConfigLookup is the slice of the Config Store the registry needs: the
// most recent RateLimitConfig for a given apiKey.
type ConfigLookup interface {
	LatestConfigFor(apiKey string) (RateLimitConfig, bool, error)
}

// Registry maps an apiKey to the single live LimiterInstance enforcing its
// policy. Reads are hot (every decision looks one up); writes — first
// create, replace on config change, reset — are cold, so the map is
// guarded by a plain RWMutex rather than anything more elaborate.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*LimiterInstance
	configs   ConfigLookup
	clock     Clock
}

// NewRegistry constructs a Registry that resolves configs through configs
// and seeds new instances from clock's current time.
func NewRegistry(configs ConfigLookup, clock Clock) *Registry {
	return &Registry{
		instances: make(map[string]*LimiterInstance),
		configs:   configs,
		clock:     clock,
	}
}

// ErrNotConfigured is returned by GetOrCreate when no RateLimitConfig
// exists for apiKey.
var ErrNotConfigured = newNotConfigured()

type notConfiguredError struct{}

func newNotConfigured() error { return &notConfiguredError{} }

func (*notConfiguredError) Error() string { return "no rate limit config for api key" }

// GetOrCreate returns the live instance for apiKey, creating it from the
// most recent stored config if none exists yet. If the stored config's
// parameters differ from the live instance's, the instance is replaced —
// old accumulated state is discarded, matching the "reconfiguration
// resets" rule documented in DESIGN.md.
func (r *Registry) GetOrCreate(apiKey string) (*LimiterInstance, error) {
	r.mu.RLock()
	inst, ok := r.instances[apiKey]
	r.mu.RUnlock()

	cfg, found, err := r.configs.LatestConfigFor(apiKey)
	if err != nil {
		if ok {
			// Config Store is unavailable but we already have a live
			// instance; keep serving decisions from it rather than fail
			// a request that doesn't need the store on this path.
			return inst, nil
		}
		return nil, &PersistenceError{Op: "latestConfigFor", Err: err}
	}
	if !found {
		if ok {
			return inst, nil
		}
		return nil, ErrNotConfigured
	}

	if ok && inst.matches(cfg) {
		return inst, nil
	}

	impl, err := newInstanceFromConfig(cfg, r.clock.Now())
	if err != nil {
		return nil, err
	}
	fresh := newLimiterInstance(impl)

	r.mu.Lock()
	r.instances[apiKey] = fresh
	r.mu.Unlock()

	return fresh, nil
}

// CreateDefault installs a synthetic instance for apiKey built from the
// given config, without consulting the Config Store. Used by the gateway
// to satisfy the "unconfigured keys still work" rule.
func (r *Registry) CreateDefault(apiKey string, cfg RateLimitConfig) (*LimiterInstance, error) {
	r.mu.RLock()
	inst, ok := r.instances[apiKey]
	r.mu.RUnlock()
	if ok && inst.matches(cfg) {
		return inst, nil
	}

	impl, err := newInstanceFromConfig(cfg, r.clock.Now())
	if err != nil {
		return nil, err
	}
	fresh := newLimiterInstance(impl)

	r.mu.Lock()
	r.instances[apiKey] = fresh
	r.mu.Unlock()

	return fresh, nil
}

// Reset discards all live instances.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]*LimiterInstance)
}
