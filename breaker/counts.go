package breaker

// Counts holds the request tallies for the current generation, i.e. the span
// since the last state transition. All five fields are reset to zero on every
// transition and never in between.
//
// ConsecutiveSuccesses and ConsecutiveFailures are mutually exclusive streak
// counters: at most one of them is non-zero at any time.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) onRequest() {
	c.Requests++
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

func (c *Counts) clear() {
	*c = Counts{}
}
