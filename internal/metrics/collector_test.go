package metrics_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcvats/arodha/breaker"
	"github.com/arcvats/arodha/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		collector = metrics.NewCollector(64, slog.Default())
		ctx, cancel = context.WithCancel(context.Background())
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	It("should process admission events", func() {
		collector.Emit(metrics.Event{
			Type:      metrics.EventAdmitted,
			Timestamp: time.Now(),
			Breaker:   "orders-api",
		})

		Eventually(func() int64 {
			return collector.Snapshot().TotalAdmitted
		}).Should(Equal(int64(1)))
	})

	It("should process rejection events with their reason", func() {
		collector.Emit(metrics.Event{
			Type:      metrics.EventRejected,
			Timestamp: time.Now(),
			Breaker:   "orders-api",
			Reason:    "open_circuit",
		})

		Eventually(func() map[string]int64 {
			return collector.Snapshot().Breakers["orders-api"].Rejected
		}).Should(HaveKeyWithValue("open_circuit", int64(1)))
	})

	It("should process outcome and state change events", func() {
		collector.Emit(metrics.Event{
			Type:       metrics.EventOutcome,
			Timestamp:  time.Now(),
			Breaker:    "orders-api",
			Success:    false,
			Duration:   25 * time.Millisecond,
			StatusCode: 503,
		})
		collector.Emit(metrics.Event{
			Type:      metrics.EventStateChanged,
			Timestamp: time.Now(),
			Breaker:   "orders-api",
			From:      breaker.StateClosed,
			To:        breaker.StateOpen,
		})

		Eventually(func() string {
			return collector.Snapshot().Breakers["orders-api"].State
		}).Should(Equal("OPEN"))

		bm := collector.Snapshot().Breakers["orders-api"]
		Expect(bm.Failures).To(Equal(int64(1)))
		Expect(bm.StatusCodes).To(HaveKeyWithValue(503, int64(1)))
	})

	It("should drain pending events on shutdown", func() {
		// Queue events, then cancel before the collector necessarily got to
		// them; drain must pick them up.
		for i := 0; i < 10; i++ {
			collector.Emit(metrics.Event{
				Type:    metrics.EventAdmitted,
				Breaker: "orders-api",
			})
		}
		cancel()

		Eventually(func() int64 {
			return collector.Snapshot().TotalAdmitted
		}).Should(Equal(int64(10)))
	})

	It("should not block when the buffer is full", func() {
		small := metrics.NewCollector(1, slog.Default())

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 100; i++ {
				small.Emit(metrics.Event{Type: metrics.EventAdmitted, Breaker: "x"})
			}
		}()

		Eventually(done).Should(BeClosed())
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Emit(metrics.Event{
				Type:    metrics.EventAdmitted,
				Breaker: "orders-api",
			})

			Eventually(func() int64 {
				return collector.Snapshot().TotalAdmitted
			}).Should(Equal(int64(1)))

			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/metrics", nil)
			collector.Handler()(rec, req)

			Expect(rec.Code).To(Equal(200))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.TotalAdmitted).To(Equal(int64(1)))
		})
	})
})
