package order

import (
	"github.com/digicheckout/server/internal/infra/events"
	"github.com/digicheckout/server/internal/model"
	"github.com/google/uuid"
)

// Event types published by the order domain.
const (
	EventOrderDrafted   = "OrderDrafted"
	EventPaymentStarted = "PaymentStarted"
)

// OrderDraftedEvent is published when checkout reports a new DRAFT order.
type OrderDraftedEvent struct {
	events.BaseEvent
	Order *model.Order
}

// NewOrderDraftedEvent creates a new OrderDraftedEvent.
func NewOrderDraftedEvent(order *model.Order) *OrderDraftedEvent {
	return &OrderDraftedEvent{
		BaseEvent: events.NewBaseEvent(EventOrderDrafted, order.ID),
		Order:     order,
	}
}

// PaymentStartedEvent is published after an order moved to PENDING_PAYMENT.
type PaymentStartedEvent struct {
	events.BaseEvent
	OrderID           uuid.UUID
	PaymentID         uuid.UUID
	ProviderPaymentID string
}

// NewPaymentStartedEvent creates a new PaymentStartedEvent.
func NewPaymentStartedEvent(orderID uuid.UUID, payment *model.Payment) *PaymentStartedEvent {
	return &PaymentStartedEvent{
		BaseEvent:         events.NewBaseEvent(EventPaymentStarted, orderID),
		OrderID:           orderID,
		PaymentID:         payment.ID,
		ProviderPaymentID: payment.ProviderPaymentID,
	}
}
