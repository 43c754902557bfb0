package circuitbreaker

import (
	"sync"

	"github.com/apexlabs/apex-go/config"
)

// Registry hands out one breaker per logical dependency so concurrent
// callers guarding the same dependency share state.
type Registry struct {
	cfg  *config.CircuitBreakerConfig
	opts []Option

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a registry. The config and options are applied to
// every breaker it creates.
func NewRegistry(cfg *config.CircuitBreakerConfig, opts ...Option) *Registry {
	return &Registry{
		cfg:      cfg,
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}
}

// GetOrCreate returns the breaker for name, creating it on first use.
func (r *Registry) GetOrCreate(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, r.cfg, r.opts...)
	r.breakers[name] = b
	return b
}

// Get returns the breaker for name, or nil if none has been created.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakers[name]
}

// States returns the current state of every breaker in the registry.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.State()
	}
	return states
}
