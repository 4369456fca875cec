package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/arcvats/arodha/breaker"
)

type EventType string

const (
	EventAdmitted     EventType = "request_admitted"
	EventRejected     EventType = "request_rejected"
	EventOutcome      EventType = "outcome_recorded"
	EventStateChanged EventType = "state_changed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Breaker    string
	Reason     string
	Success    bool
	Duration   time.Duration
	StatusCode int
	From       breaker.State
	To         breaker.State
}

type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit queues an event without blocking; events are dropped when the buffer
// is full rather than slowing the request path.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventAdmitted:
		c.metrics.RecordAdmission(event.Breaker)

	case EventRejected:
		c.metrics.RecordRejection(event.Breaker, event.Reason)

	case EventOutcome:
		c.metrics.RecordOutcome(event.Breaker, event.Success, event.Duration, event.StatusCode)

	case EventStateChanged:
		c.metrics.RecordStateChange(event.Breaker, event.To)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
