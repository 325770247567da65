// Package broadcast delivers sprint lifecycle events to an external sink.
// Delivery is fire-and-forget: a full buffer drops the event rather than
// blocking the request path.
package broadcast

import (
	"context"
	"log/slog"
	"time"
)

// Event is a sprint lifecycle notification.
type Event struct {
	Type           string    `json:"type"`
	OrganizationID string    `json:"organization_id"`
	SprintID       string    `json:"sprint_id"`
	SprintName     string    `json:"sprint_name"`
	Velocity       float64   `json:"velocity"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventSprintCompleted is the event type published when a sprint is completed.
const EventSprintCompleted = "sprint.completed"

// Sink receives events from the dispatcher. Implementations must be safe
// for use from a single goroutine; the dispatcher serializes deliveries.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher fans events from an in-memory buffer to a Sink on a
// background goroutine.
type Dispatcher struct {
	sink   Sink
	events chan Event
}

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(sink Sink, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Dispatcher{
		sink:   sink,
		events: make(chan Event, bufferSize),
	}
}

// Enqueue offers an event to the dispatcher without blocking. Returns
// false when the buffer is full and the event was dropped.
func (d *Dispatcher) Enqueue(ev Event) bool {
	select {
	case d.events <- ev:
		return true
	default:
		slog.Warn("broadcast buffer full, dropping event",
			"type", ev.Type,
			"sprint_id", ev.SprintID,
		)
		return false
	}
}

// Run starts the delivery loop. Blocks until ctx is cancelled, then
// drains any buffered events before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case ev := <-d.events:
			d.deliver(ctx, ev)
		}
	}
}

// drain delivers remaining buffered events with a short grace period.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		select {
		case ev := <-d.events:
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	if err := d.sink.Deliver(ctx, ev); err != nil {
		slog.Warn("broadcast delivery failed",
			"error", err,
			"type", ev.Type,
			"sprint_id", ev.SprintID,
		)
	}
}
