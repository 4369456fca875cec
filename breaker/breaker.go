package breaker

import (
	"sync"
	"time"
)

// CircuitBreaker guards a downstream operation. Callers ask for admission
// with Allow before performing the operation and report what happened with
// Record afterwards; the breaker opens once failures satisfy the trip
// predicate, denies requests for the configured cooldown, then admits a
// limited number of probes before closing again.
//
// A CircuitBreaker is safe for concurrent use by multiple goroutines. The
// guarded operation itself always runs outside the breaker's lock.
type CircuitBreaker struct {
	name          string
	maxRequests   uint32
	interval      time.Duration
	timeout       time.Duration
	readyToTrip   func(counts Counts) bool
	isSuccessful  func(err error) bool
	onStateChange func(name string, from State, to State)
	metadata      map[string]any

	mutex      sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
	pending    []transition
}

type transition struct {
	from State
	to   State
}

// New creates a CircuitBreaker from the given settings. Unset fields fall
// back to their documented defaults; malformed settings are rejected.
func New(settings Settings) (*CircuitBreaker, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return newCircuitBreaker(settings.withDefaults()), nil
}

// newCircuitBreaker assumes settings are already validated and merged.
func newCircuitBreaker(settings Settings) *CircuitBreaker {
	return &CircuitBreaker{
		name:          settings.Name,
		maxRequests:   settings.MaxRequests,
		interval:      settings.Interval,
		timeout:       settings.Timeout,
		readyToTrip:   settings.ReadyToTrip,
		isSuccessful:  settings.IsSuccessful,
		onStateChange: settings.OnStateChange,
		metadata:      settings.Metadata,
		state:         StateClosed,
	}
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Metadata returns a copy of the opaque tag bag supplied at construction.
// The breaker never reads it, and mutating the returned map does not touch
// the stored one.
func (cb *CircuitBreaker) Metadata() map[string]any {
	if cb.metadata == nil {
		return nil
	}

	metadata := make(map[string]any, len(cb.metadata))
	for k, v := range cb.metadata {
		metadata[k] = v
	}
	return metadata
}

// Allow asks for admission of one request. It returns nil and counts the
// request when the circuit admits it, ErrOpenCircuit while the circuit is
// open, and ErrTooManyRequests when the half-open probe quota is exhausted.
//
// Every successful Allow must be paired with exactly one Record call after
// the guarded operation finishes.
func (cb *CircuitBreaker) Allow() error {
	_, err := cb.allow()
	return err
}

// Record reports the outcome of a request previously admitted by Allow. The
// outcome is classified by the IsSuccessful setting.
func (cb *CircuitBreaker) Record(outcome error) {
	success := cb.isSuccessful(outcome)

	cb.mutex.Lock()
	cb.record(cb.generation, success, time.Now())
	changes := cb.takePending()
	cb.mutex.Unlock()

	cb.notify(changes)
}

// State returns the current state, re-evaluating an elapsed open cooldown
// first.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	state := cb.currentState(time.Now())
	changes := cb.takePending()
	cb.mutex.Unlock()

	cb.notify(changes)
	return state
}

// Counts returns a snapshot of the counters for the current generation.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.counts
}

// allow is the admission primitive. The returned generation lets wrappers
// discard outcomes that arrive after an intervening transition.
func (cb *CircuitBreaker) allow() (uint64, error) {
	now := time.Now()

	cb.mutex.Lock()

	state := cb.currentState(now)
	generation := cb.generation

	var err error
	switch {
	case state == StateOpen:
		err = ErrOpenCircuit
	case state == StateHalfOpen && cb.maxRequests > 0 && cb.counts.Requests >= cb.maxRequests:
		err = ErrTooManyRequests
	default:
		cb.counts.onRequest()
	}

	changes := cb.takePending()
	cb.mutex.Unlock()

	cb.notify(changes)
	return generation, err
}

// recordOutcome is the recording primitive used by the Do wrappers. Outcomes
// from a superseded generation are dropped.
func (cb *CircuitBreaker) recordOutcome(generation uint64, outcome error) {
	success := cb.isSuccessful(outcome)

	cb.mutex.Lock()
	cb.record(generation, success, time.Now())
	changes := cb.takePending()
	cb.mutex.Unlock()

	cb.notify(changes)
}

// record applies the outcome-recording rule. Caller must hold the lock.
func (cb *CircuitBreaker) record(generation uint64, success bool, now time.Time) {
	state := cb.currentState(now)
	if generation != cb.generation {
		// The circuit moved on since admission; this outcome belongs to a
		// generation whose counters are already gone.
		return
	}

	switch state {
	case StateClosed:
		if success {
			cb.counts.onSuccess()
		} else {
			cb.counts.onFailure()
			if cb.readyToTrip(cb.counts) {
				cb.setState(StateOpen, now)
			}
		}

	case StateHalfOpen:
		if success {
			cb.counts.onSuccess()
			if cb.counts.ConsecutiveSuccesses >= cb.maxRequests {
				cb.setState(StateClosed, now)
			}
		} else {
			// A single failed probe reopens the circuit unconditionally.
			cb.setState(StateOpen, now)
		}
	}
}

// currentState lazily re-evaluates the stored state against the clock: an
// open circuit whose cooldown has elapsed becomes half-open. Caller must hold
// the lock.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && !now.Before(cb.expiry) {
		cb.setState(StateHalfOpen, now)
	}

	return cb.state
}

// setState transitions to a new state, starting a fresh generation with
// cleared counters. Caller must hold the lock; the notification is queued and
// delivered only after the lock is released.
func (cb *CircuitBreaker) setState(to State, now time.Time) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to
	cb.generation++
	cb.counts.clear()

	if to == StateOpen {
		cb.expiry = now.Add(cb.timeout)
	} else {
		cb.expiry = time.Time{}
	}

	cb.pending = append(cb.pending, transition{from: from, to: to})
}

// takePending detaches queued state-change notifications. Caller must hold
// the lock.
func (cb *CircuitBreaker) takePending() []transition {
	changes := cb.pending
	cb.pending = nil
	return changes
}

// notify delivers state-change notifications. Must be called without the
// lock held so the callback can re-enter the breaker.
func (cb *CircuitBreaker) notify(changes []transition) {
	if cb.onStateChange == nil {
		return
	}

	for _, change := range changes {
		cb.onStateChange(cb.name, change.from, change.to)
	}
}
