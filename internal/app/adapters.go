package app

import (
	"context"
	"fmt"

	"github.com/digicheckout/server/internal/infra/events"
	"github.com/digicheckout/server/internal/port/outbound"
)

// eventBusAdapter adapts the in-process event bus to outbound.EventPublisherPort.
// Handler failures are isolated and logged by the bus, so Publish only fails
// for values that are not domain events.
type eventBusAdapter struct {
	bus *events.Bus
}

func newEventBusAdapter(bus *events.Bus) outbound.EventPublisherPort {
	return &eventBusAdapter{bus: bus}
}

func (a *eventBusAdapter) Publish(ctx context.Context, event interface{}) error {
	e, ok := event.(events.Event)
	if !ok {
		return fmt.Errorf("unsupported event type %T", event)
	}
	a.bus.Publish(ctx, e)
	return nil
}
