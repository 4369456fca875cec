package breaker_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcvats/arodha/breaker"
)

var _ = Describe("Counts", func() {
	var cb *breaker.CircuitBreaker

	BeforeEach(func() {
		cb = newTestBreaker(nil)
	})

	It("should tally totals alongside the streaks", func() {
		admitAndRecord(cb, nil)
		admitAndRecord(cb, errDownstream)
		admitAndRecord(cb, errDownstream)
		admitAndRecord(cb, nil)

		Expect(cb.Counts()).To(Equal(breaker.Counts{
			Requests:             4,
			TotalSuccesses:       2,
			TotalFailures:        2,
			ConsecutiveSuccesses: 1,
			ConsecutiveFailures:  0,
		}))
	})

	It("should keep the streak counters mutually exclusive", func() {
		admitAndRecord(cb, errDownstream)
		admitAndRecord(cb, errDownstream)

		counts := cb.Counts()
		Expect(counts.ConsecutiveFailures).To(Equal(uint32(2)))
		Expect(counts.ConsecutiveSuccesses).To(Equal(uint32(0)))

		admitAndRecord(cb, nil)

		counts = cb.Counts()
		Expect(counts.ConsecutiveSuccesses).To(Equal(uint32(1)))
		Expect(counts.ConsecutiveFailures).To(Equal(uint32(0)))
	})

	It("should not be reset by elapsed time while the state is unchanged", func() {
		admitAndRecord(cb, errDownstream)
		time.Sleep(150 * time.Millisecond)

		Expect(cb.State()).To(Equal(breaker.StateClosed))
		Expect(cb.Counts().TotalFailures).To(Equal(uint32(1)))
	})

	It("should start from zero on every transition", func() {
		tripCircuit(cb)
		Expect(cb.Counts()).To(Equal(breaker.Counts{}))

		time.Sleep(150 * time.Millisecond)
		Expect(cb.Allow()).To(Succeed())
		Expect(cb.Counts()).To(Equal(breaker.Counts{Requests: 1}))

		cb.Record(errDownstream)
		Expect(cb.Counts()).To(Equal(breaker.Counts{}))
	})
})
