// Package breaker implements the circuit breaker pattern for guarding calls
// to failure-prone dependencies.
//
// A circuit breaker prevents cascading failures by refusing to issue further
// calls once a dependency keeps failing. It has three states:
//
//   - CLOSED: Normal operation, requests pass through
//   - OPEN: Dependency failing, requests denied for a cooldown period
//   - HALF-OPEN: A limited number of probes test whether it recovered
//
// The primitive contract is the Allow/Record pair:
//
//	cb, _ := breaker.New(breaker.Settings{Name: "billing-api"})
//
//	if err := cb.Allow(); err != nil {
//	    return err // ErrOpenCircuit or ErrTooManyRequests
//	}
//	res, err := client.Charge(ctx, amount)
//	cb.Record(err)
//
// The Do and DoValue wrappers run both halves around a supplied function:
//
//	res, err := breaker.DoValue(ctx, cb, func(ctx context.Context) (*Receipt, error) {
//	    return client.Charge(ctx, amount)
//	})
//	if breaker.IsOpen(err) {
//	    // Fail fast or fall back
//	}
//
// Transitions are driven lazily by the clock at the next query; there is no
// background timer. All decisions are O(1) under a single mutex, and the
// guarded call itself always runs outside it.
//
// A Registry manages one breaker per key (backend URL, service name) from a
// shared settings template:
//
//	reg, _ := breaker.NewRegistry(breaker.Settings{Timeout: 30 * time.Second})
//	cb := reg.Get("http://localhost:8081")
package breaker
