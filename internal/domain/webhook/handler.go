package webhook

import (
	"context"
	"fmt"

	"github.com/digicheckout/server/internal/domain/event"
	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/domain/settlement"
	"github.com/digicheckout/server/internal/infra/events"
	"github.com/digicheckout/server/internal/port/outbound"
)

// EventHandler publishes order.created for drafted orders and order.paid
// for settled ones.
type EventHandler struct {
	publisher *Publisher
	orderDB   outbound.OrderDatabasePort
}

// NewEventHandler creates a new domain event handler.
func NewEventHandler(publisher *Publisher, orderDB outbound.OrderDatabasePort) *EventHandler {
	return &EventHandler{publisher: publisher, orderDB: orderDB}
}

// Handles returns the event types this handler processes.
func (h *EventHandler) Handles() []string {
	return []string{order.EventOrderDrafted, settlement.EventOrderSettled}
}

// Handle processes the given event.
func (h *EventHandler) Handle(ctx context.Context, e events.Event) error {
	switch evt := e.(type) {
	case *order.OrderDraftedEvent:
		_, err := h.publisher.PublishOrder(ctx, event.OrderCreated, evt.Order)
		return err
	case *settlement.OrderSettledEvent:
		if !evt.Paid() {
			return nil
		}
		// Reload so the payload reflects the committed row.
		o, err := h.orderDB.FindByIDWithRelations(ctx, evt.OrderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("settled order %s not found", evt.OrderID)
		}
		_, err = h.publisher.PublishOrder(ctx, event.OrderPaid, o)
		return err
	}
	return nil
}

var _ events.Handler = (*EventHandler)(nil)
