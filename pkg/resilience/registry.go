package resilience

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry owns the process-wide breakers, one per dependency name.
type Registry struct {
	mu        sync.Mutex
	defaults  Settings
	overrides map[string]Settings
	breakers  map[string]*Breaker
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOverride uses s instead of the defaults for the named dependency.
func WithOverride(name string, s Settings) RegistryOption {
	return func(r *Registry) {
		r.overrides[name] = s
	}
}

// NewRegistry creates an empty registry. Breakers are created on first use.
func NewRegistry(defaults Settings, opts ...RegistryOption) *Registry {
	r := &Registry{
		defaults:  defaults,
		overrides: make(map[string]Settings),
		breakers:  make(map[string]*Breaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the breaker for name, creating it if needed.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	s, ok := r.overrides[name]
	if !ok {
		s = r.defaults
	}
	if s.Logger == nil {
		s.Logger = r.defaults.Logger
	}
	if s.Clock == nil {
		s.Clock = r.defaults.Clock
	}
	if s.IsFailure == nil {
		s.IsFailure = r.defaults.IsFailure
	}
	b := NewBreaker(name, s)
	r.breakers[name] = b
	return b
}

// Snapshots returns every known breaker sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	snaps := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Name < snaps[j].Name
	})
	return snaps
}

// ResetAll forces every breaker closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breakers {
		b.Reset()
	}
	if r.defaults.Logger != nil {
		r.defaults.Logger.Info("all breakers reset", slog.Int("count", len(r.breakers)))
	}
}
