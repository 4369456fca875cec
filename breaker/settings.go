package breaker

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Defaults applied by New for settings left at their zero value.
const (
	DefaultMaxRequests uint32        = 10
	DefaultInterval    time.Duration = time.Second
	DefaultTimeout     time.Duration = 60 * time.Second

	// DefaultFailureThreshold is the consecutive-failure count used by the
	// default trip predicate.
	DefaultFailureThreshold uint32 = 5
)

// Settings configures a CircuitBreaker. All fields are optional; New
// substitutes the documented default for any field left at its zero value and
// the result is immutable for the breaker's lifetime.
type Settings struct {
	// Name identifies the breaker, typically after the downstream it guards.
	Name string

	// MaxRequests caps the requests admitted while half-open and doubles as
	// the number of consecutive probe successes required to close the
	// circuit. Default is 10.
	MaxRequests uint32

	// Interval is the closed-state statistics period. Counters are kept for
	// the whole generation regardless; the field is accepted and stored so a
	// time-windowed trip predicate can be layered on later without a settings
	// change.
	Interval time.Duration

	// Timeout is how long the circuit stays open before a probe is allowed.
	// Default is 60 seconds.
	Timeout time.Duration

	// ReadyToTrip decides, from the current counts, whether a closed circuit
	// should open. It is consulted after every recorded failure. The default
	// trips on 5 consecutive failures.
	ReadyToTrip func(counts Counts) bool

	// IsSuccessful classifies a reported outcome. The default treats any
	// non-nil error as a failure.
	IsSuccessful func(err error) bool

	// OnStateChange, if set, is invoked once per state transition with the
	// breaker name and the (from, to) pair. It runs outside the breaker's
	// lock, so it may safely call back into the breaker.
	OnStateChange func(name string, from State, to State)

	// Metadata is an opaque tag bag stored with the breaker and never
	// interpreted by it.
	Metadata map[string]any
}

// Validate rejects malformed settings. Durations must not be negative.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Interval, validation.By(validateNonNegativeDuration)),
		validation.Field(&s.Timeout, validation.By(validateNonNegativeDuration)),
	)
}

func validateNonNegativeDuration(value interface{}) error {
	d, ok := value.(time.Duration)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a duration")
	}

	if d < 0 {
		return validation.NewError("validation_negative_duration", "duration cannot be negative")
	}

	return nil
}

// withDefaults returns a copy of s with every unset field replaced by its
// documented default. OnStateChange has no default; unset means no
// notifications.
func (s Settings) withDefaults() Settings {
	if s.MaxRequests == 0 {
		s.MaxRequests = DefaultMaxRequests
	}

	if s.Interval == 0 {
		s.Interval = DefaultInterval
	}

	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}

	if s.ReadyToTrip == nil {
		s.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures >= DefaultFailureThreshold
		}
	}

	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool {
			return err == nil
		}
	}

	return s
}
