package breaker

import "context"

// Do executes fn under the breaker's protection: admission is requested
// first, and the outcome is recorded afterwards. Denials are returned without
// running fn; otherwise fn's own error is returned unchanged.
//
// If the circuit transitioned while fn was running, the outcome is discarded
// rather than charged to the new generation. A panic inside fn is recorded as
// a failure and re-raised.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := cb.allow()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.recordOutcome(generation, errPanic)
			panic(r)
		}
	}()

	fnErr := fn(ctx)
	cb.recordOutcome(generation, fnErr)
	return fnErr
}

// DoValue executes fn with circuit breaker protection and returns its result.
// This is a convenience wrapper for functions that return a value.
func DoValue[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Do(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}
