package settlement

import (
	"time"

	"github.com/digicheckout/server/internal/infra/events"
	"github.com/digicheckout/server/internal/model"
	"github.com/google/uuid"
)

// EventOrderSettled is published after a settlement moved an order.
const EventOrderSettled = "OrderSettled"

// OrderSettledEvent carries a committed settlement to post-commit handlers.
type OrderSettledEvent struct {
	events.BaseEvent
	OrderID        uuid.UUID
	PreviousStatus model.OrderStatus
	NewStatus      model.OrderStatus
	Payment        *model.Payment
}

// NewOrderSettledEvent creates a new OrderSettledEvent.
func NewOrderSettledEvent(outcome *Outcome) *OrderSettledEvent {
	return &OrderSettledEvent{
		BaseEvent:      events.NewBaseEvent(EventOrderSettled, outcome.OrderID),
		OrderID:        outcome.OrderID,
		PreviousStatus: outcome.PreviousStatus,
		NewStatus:      outcome.NewStatus,
		Payment:        outcome.Payment,
	}
}

// Paid reports whether the settlement moved the order to PAID.
func (e *OrderSettledEvent) Paid() bool {
	return e.NewStatus == model.OrderStatusPaid
}

// PaidAt returns when the payment was approved.
func (e *OrderSettledEvent) PaidAt() time.Time {
	if e.Payment != nil && e.Payment.PaidAt != nil {
		return *e.Payment.PaidAt
	}
	return e.OccurredAt()
}
