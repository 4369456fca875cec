package breaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcvats/arodha/breaker"
)

var _ = Describe("Registry", func() {
	var registry *breaker.Registry

	BeforeEach(func() {
		var err error
		registry, err = breaker.NewRegistry(breaker.Settings{
			MaxRequests: 2,
			Timeout:     100 * time.Millisecond,
			ReadyToTrip: func(counts breaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewRegistry", func() {
		It("should create a registry", func() {
			Expect(registry).NotTo(BeNil())
		})

		It("should reject malformed template settings", func() {
			_, err := breaker.NewRegistry(breaker.Settings{Timeout: -time.Second})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get", func() {
		It("should create a new breaker for an unknown key", func() {
			cb := registry.Get("http://localhost:8081")
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(breaker.StateClosed))
		})

		It("should name the breaker after its key", func() {
			cb := registry.Get("http://localhost:8081")
			Expect(cb.Name()).To(Equal("http://localhost:8081"))
		})

		It("should return the same breaker for the same key", func() {
			cb1 := registry.Get("http://localhost:8081")
			cb2 := registry.Get("http://localhost:8081")
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return different breakers for different keys", func() {
			cb1 := registry.Get("http://localhost:8081")
			cb2 := registry.Get("http://localhost:8082")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should apply the template settings to new breakers", func() {
			cb := registry.Get("http://localhost:8081")

			admitAndRecord(cb, errDownstream)
			admitAndRecord(cb, errDownstream)
			Expect(cb.State()).To(Equal(breaker.StateOpen))
		})

		It("should isolate state between keys", func() {
			cb1 := registry.Get("http://localhost:8081")
			cb2 := registry.Get("http://localhost:8082")

			admitAndRecord(cb1, errDownstream)
			admitAndRecord(cb1, errDownstream)

			Expect(cb1.State()).To(Equal(breaker.StateOpen))
			Expect(cb2.State()).To(Equal(breaker.StateClosed))
		})

		It("should return one instance per key under concurrent access", func() {
			const goroutines = 16

			var wg sync.WaitGroup
			results := make([]*breaker.CircuitBreaker, goroutines)

			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = registry.Get("http://localhost:8081")
				}(i)
			}
			wg.Wait()

			for i := 1; i < goroutines; i++ {
				Expect(results[i]).To(BeIdenticalTo(results[0]))
			}
		})
	})

	Describe("States", func() {
		It("should report the state of every breaker", func() {
			cb := registry.Get("http://localhost:8081")
			registry.Get("http://localhost:8082")

			admitAndRecord(cb, errDownstream)
			admitAndRecord(cb, errDownstream)

			Expect(registry.States()).To(Equal(map[string]breaker.State{
				"http://localhost:8081": breaker.StateOpen,
				"http://localhost:8082": breaker.StateClosed,
			}))
		})
	})

	Describe("States with a reentrant notifier", func() {
		It("should not deadlock when the notifier calls back into the registry", func() {
			var reentrant *breaker.Registry

			reentrant, err := breaker.NewRegistry(breaker.Settings{
				MaxRequests: 1,
				Timeout:     50 * time.Millisecond,
				ReadyToTrip: func(counts breaker.Counts) bool {
					return counts.ConsecutiveFailures >= 1
				},
				OnStateChange: func(name string, from, to breaker.State) {
					// Creating a sibling takes the registry's write lock.
					reentrant.Get("shadow:" + name)
				},
			})
			Expect(err).NotTo(HaveOccurred())

			cb := reentrant.Get("http://localhost:8081")
			admitAndRecord(cb, errDownstream)
			Expect(cb.State()).To(Equal(breaker.StateOpen))

			// The cooldown elapses, so States() itself triggers the
			// open-to-half-open transition and fires the notifier.
			time.Sleep(80 * time.Millisecond)

			states := reentrant.States()
			Expect(states["http://localhost:8081"]).To(Equal(breaker.StateHalfOpen))
		})
	})

	Describe("Counts", func() {
		It("should report a counter snapshot per key", func() {
			cb := registry.Get("http://localhost:8081")
			admitAndRecord(cb, nil)

			counts := registry.Counts()
			Expect(counts).To(HaveLen(1))
			Expect(counts["http://localhost:8081"].TotalSuccesses).To(Equal(uint32(1)))
		})
	})

	Describe("Reset", func() {
		It("should drop existing breakers", func() {
			cb := registry.Get("http://localhost:8081")
			admitAndRecord(cb, errDownstream)
			admitAndRecord(cb, errDownstream)
			Expect(cb.State()).To(Equal(breaker.StateOpen))

			registry.Reset()

			fresh := registry.Get("http://localhost:8081")
			Expect(fresh).NotTo(BeIdenticalTo(cb))
			Expect(fresh.State()).To(Equal(breaker.StateClosed))
		})
	})
})
