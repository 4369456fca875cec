package breaker_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcvats/arodha/breaker"
)

var _ = Describe("Settings", func() {
	Describe("defaults", func() {
		var cb *breaker.CircuitBreaker

		BeforeEach(func() {
			// Everything unset except a short cooldown so the probe phase is
			// reachable in a test.
			var err error
			cb, err = breaker.New(breaker.Settings{Timeout: 50 * time.Millisecond})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should trip after 5 consecutive failures by default", func() {
			for i := 0; i < 4; i++ {
				admitAndRecord(cb, errDownstream)
			}
			Expect(cb.State()).To(Equal(breaker.StateClosed))

			admitAndRecord(cb, errDownstream)
			Expect(cb.State()).To(Equal(breaker.StateOpen))
		})

		It("should allow 10 half-open probes by default", func() {
			for i := 0; i < 5; i++ {
				admitAndRecord(cb, errDownstream)
			}
			time.Sleep(80 * time.Millisecond)

			for i := 0; i < 10; i++ {
				Expect(cb.Allow()).To(Succeed())
			}
			Expect(cb.Allow()).To(MatchError(breaker.ErrTooManyRequests))
		})

		It("should classify any non-nil error as failure by default", func() {
			admitAndRecord(cb, nil)
			admitAndRecord(cb, errors.New("anything"))

			counts := cb.Counts()
			Expect(counts.TotalSuccesses).To(Equal(uint32(1)))
			Expect(counts.TotalFailures).To(Equal(uint32(1)))
		})
	})

	Describe("custom policies", func() {
		It("should honor a custom success classifier", func() {
			errExpected := errors.New("not found")

			cb, err := breaker.New(breaker.Settings{
				IsSuccessful: func(err error) bool {
					return err == nil || errors.Is(err, errExpected)
				},
			})
			Expect(err).NotTo(HaveOccurred())

			admitAndRecord(cb, errExpected)

			counts := cb.Counts()
			Expect(counts.TotalSuccesses).To(Equal(uint32(1)))
			Expect(counts.TotalFailures).To(Equal(uint32(0)))
		})

		It("should honor a trip predicate over totals rather than streaks", func() {
			cb, err := breaker.New(breaker.Settings{
				ReadyToTrip: func(counts breaker.Counts) bool {
					return counts.TotalFailures >= 3
				},
			})
			Expect(err).NotTo(HaveOccurred())

			admitAndRecord(cb, errDownstream)
			admitAndRecord(cb, nil)
			admitAndRecord(cb, errDownstream)
			Expect(cb.State()).To(Equal(breaker.StateClosed))

			admitAndRecord(cb, errDownstream)
			Expect(cb.State()).To(Equal(breaker.StateOpen))
		})
	})

	Describe("Validate", func() {
		It("should accept zero-valued settings", func() {
			Expect(breaker.Settings{}.Validate()).To(Succeed())
		})

		It("should reject negative durations", func() {
			Expect(breaker.Settings{Timeout: -1}.Validate()).NotTo(Succeed())
			Expect(breaker.Settings{Interval: -1}.Validate()).NotTo(Succeed())
		})
	})
})
