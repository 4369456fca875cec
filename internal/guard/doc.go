// Package guard implements the HTTP request handler for the guarded proxy.
// It asks the circuit breaker for admission before forwarding a request to
// the upstream and reports the outcome back afterwards.
package guard
