// Package metrics provides real-time metrics collection for guarded upstream
// calls.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Admitted and rejected request counts per breaker (with denial reason)
//   - Success/failure outcomes and response times with percentiles (P50, P95, P99)
//   - HTTP status code distribution
//   - Breaker state and transition counts
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Events are sent via a buffered channel with
// non-blocking semantics, so a saturated collector drops events instead of
// adding latency.
//
// Example usage:
//
//	collector := metrics.NewCollector(256, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.Event{
//		Type:     metrics.EventOutcome,
//		Breaker:  "orders-api",
//		Success:  true,
//		Duration: 150 * time.Millisecond,
//	})
//
//	snapshot := collector.Snapshot()
//
// Metrics storage is guarded by a sync.RWMutex, and shutdown drains the event
// channel so late events are not lost.
package metrics
