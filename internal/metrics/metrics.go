package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/arcvats/arodha/breaker"
)

type Metrics struct {
	mutex       sync.RWMutex
	admitted    map[string]int64
	rejected    map[string]map[string]int64
	successes   map[string]int64
	failures    map[string]int64
	durations   map[string][]time.Duration
	statusCodes map[string]map[int]int64
	states      map[string]breaker.State
	transitions map[string]int64
	startTime   time.Time
}

type Snapshot struct {
	TotalAdmitted int64                     `json:"total_admitted"`
	TotalRejected int64                     `json:"total_rejected"`
	Uptime        time.Duration             `json:"uptime"`
	Breakers      map[string]BreakerMetrics `json:"breakers"`
}

type BreakerMetrics struct {
	State       string           `json:"state"`
	Admitted    int64            `json:"admitted"`
	Rejected    map[string]int64 `json:"rejected"`
	Successes   int64            `json:"successes"`
	Failures    int64            `json:"failures"`
	Transitions int64            `json:"transitions"`
	AvgResponse time.Duration    `json:"avg_response"`
	P50Response time.Duration    `json:"p50_response"`
	P95Response time.Duration    `json:"p95_response"`
	P99Response time.Duration    `json:"p99_response"`
	StatusCodes map[int]int64    `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		admitted:    make(map[string]int64),
		rejected:    make(map[string]map[string]int64),
		successes:   make(map[string]int64),
		failures:    make(map[string]int64),
		durations:   make(map[string][]time.Duration),
		statusCodes: make(map[string]map[int]int64),
		states:      make(map[string]breaker.State),
		transitions: make(map[string]int64),
		startTime:   time.Now(),
	}
}

func (m *Metrics) RecordAdmission(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.admitted[name]++
}

func (m *Metrics) RecordRejection(name, reason string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.rejected[name] == nil {
		m.rejected[name] = make(map[string]int64)
	}
	m.rejected[name][reason]++
}

func (m *Metrics) RecordOutcome(name string, success bool, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if success {
		m.successes[name]++
	} else {
		m.failures[name]++
	}

	m.durations[name] = append(m.durations[name], duration)
	if len(m.durations[name]) > 1000 {
		m.durations[name] = m.durations[name][1:]
	}

	if statusCode > 0 {
		if m.statusCodes[name] == nil {
			m.statusCodes[name] = make(map[int]int64)
		}
		m.statusCodes[name][statusCode]++
	}
}

func (m *Metrics) RecordStateChange(name string, to breaker.State) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.states[name] = to
	m.transitions[name]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:   time.Since(m.startTime),
		Breakers: make(map[string]BreakerMetrics),
	}

	// Collect all breaker names seen through any event type
	names := make(map[string]bool)
	for name := range m.admitted {
		names[name] = true
	}
	for name := range m.rejected {
		names[name] = true
	}
	for name := range m.successes {
		names[name] = true
	}
	for name := range m.failures {
		names[name] = true
	}
	for name := range m.states {
		names[name] = true
	}

	for name := range names {
		snap.TotalAdmitted += m.admitted[name]

		// The internal maps keep being written by the collector goroutine;
		// the snapshot must not alias them.
		bm := BreakerMetrics{
			State:       m.currentState(name).String(),
			Admitted:    m.admitted[name],
			Rejected:    copyCounters(m.rejected[name]),
			Successes:   m.successes[name],
			Failures:    m.failures[name],
			Transitions: m.transitions[name],
			StatusCodes: copyCounters(m.statusCodes[name]),
		}

		for _, n := range m.rejected[name] {
			snap.TotalRejected += n
		}

		durations := m.durations[name]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			bm.AvgResponse = average(sorted)
			bm.P50Response = percentile(sorted, 0.50)
			bm.P95Response = percentile(sorted, 0.95)
			bm.P99Response = percentile(sorted, 0.99)
		}

		snap.Breakers[name] = bm
	}

	return snap
}

// currentState assumes the read lock is held. A breaker with no recorded
// transition has been closed since birth.
func (m *Metrics) currentState(name string) breaker.State {
	if state, ok := m.states[name]; ok {
		return state
	}
	return breaker.StateClosed
}

func copyCounters[K comparable](src map[K]int64) map[K]int64 {
	if src == nil {
		return nil
	}

	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
