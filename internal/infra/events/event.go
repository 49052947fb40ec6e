package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain fact dispatched on the Bus once the change that caused
// it has committed.
type Event interface {
	EventID() uuid.UUID
	// EventType is the routing key handlers subscribe to.
	EventType() string
	OccurredAt() time.Time
	// AggregateID identifies the order the event is about.
	AggregateID() uuid.UUID
}

// BaseEvent implements Event; domain events embed it.
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Occurred  time.Time `json:"occurred_at"`
	Aggregate uuid.UUID `json:"aggregate_id"`
}

// NewBaseEvent stamps a new event of eventType for aggregateID.
func NewBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Occurred:  time.Now().UTC(),
		Aggregate: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID     { return e.ID }
func (e BaseEvent) EventType() string      { return e.Type }
func (e BaseEvent) OccurredAt() time.Time  { return e.Occurred }
func (e BaseEvent) AggregateID() uuid.UUID { return e.Aggregate }
