package breaker

import "errors"

var (
	// ErrOpenCircuit is returned by Allow while the circuit is open and the
	// cooldown has not elapsed.
	ErrOpenCircuit = errors.New("breaker: circuit is open")

	// ErrTooManyRequests is returned by Allow when the half-open probe quota
	// is exhausted.
	ErrTooManyRequests = errors.New("breaker: too many requests in half-open state")
)

// errPanic stands in for the outcome of a guarded function that panicked, so
// the panic still counts as a failure before it is re-raised.
var errPanic = errors.New("breaker: guarded function panicked")

// IsOpen reports whether err means the request was denied by an open circuit.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpenCircuit)
}

// IsTooManyRequests reports whether err means the half-open probe quota was
// exhausted.
func IsTooManyRequests(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}

// IsDenied reports whether err is one of the breaker's admission denials.
// Anything else came from the guarded operation itself.
func IsDenied(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
