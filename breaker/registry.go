package breaker

import "sync"

// Registry manages one CircuitBreaker per key, all built from a shared
// settings template. Keys are typically backend URLs or downstream service
// names; each key gets independent state and counters.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	settings Settings
}

// NewRegistry creates a registry. The template settings are validated and
// defaulted once; breakers created later inherit them, with the key as their
// name.
func NewRegistry(settings Settings) (*Registry, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		settings: settings.withDefaults(),
	}, nil
}

// Get returns the breaker for the given key, creating it on first use.
func (r *Registry) Get(key string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[key]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[key]; exists {
		return cb
	}

	settings := r.settings
	settings.Name = key

	cb = newCircuitBreaker(settings)
	r.breakers[key] = cb
	return cb
}

// Reset drops every breaker, so the next Get per key starts from a closed
// circuit.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// States returns the current state of every breaker in the registry.
func (r *Registry) States() map[string]State {
	breakers := r.snapshot()

	states := make(map[string]State, len(breakers))
	for key, cb := range breakers {
		states[key] = cb.State()
	}
	return states
}

// Counts returns a counter snapshot for every breaker in the registry.
func (r *Registry) Counts() map[string]Counts {
	breakers := r.snapshot()

	counts := make(map[string]Counts, len(breakers))
	for key, cb := range breakers {
		counts[key] = cb.Counts()
	}
	return counts
}

// snapshot copies the breaker map so the breakers can be queried without the
// registry lock held. State() may fire an OnStateChange callback, and a
// callback that calls back into the registry must not deadlock.
func (r *Registry) snapshot() map[string]*CircuitBreaker {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	breakers := make(map[string]*CircuitBreaker, len(r.breakers))
	for key, cb := range r.breakers {
		breakers[key] = cb
	}
	return breakers
}
