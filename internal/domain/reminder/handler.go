package reminder

import (
	"context"
	"errors"

	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/domain/settlement"
	"github.com/digicheckout/server/internal/infra/events"
	"go.uber.org/zap"
)

// EventHandler schedules reminders for drafted orders and cancels them once
// payment starts or the order settles.
type EventHandler struct {
	domain ReminderDomain
	logger *zap.Logger
}

// NewEventHandler creates a new domain event handler.
func NewEventHandler(domain ReminderDomain, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{domain: domain, logger: logger.Named("reminder_events")}
}

// Handles returns the event types this handler processes.
func (h *EventHandler) Handles() []string {
	return []string{order.EventOrderDrafted, order.EventPaymentStarted, settlement.EventOrderSettled}
}

// Handle processes the given event.
func (h *EventHandler) Handle(ctx context.Context, e events.Event) error {
	switch evt := e.(type) {
	case *order.OrderDraftedEvent:
		_, err := h.domain.ScheduleReminder(ctx, evt.Order.ID)
		if errors.Is(err, ErrReminderDisabled) {
			return nil
		}
		return err
	case *order.PaymentStartedEvent:
		return h.cancel(ctx, evt)
	case *settlement.OrderSettledEvent:
		return h.cancel(ctx, evt)
	}
	return nil
}

func (h *EventHandler) cancel(ctx context.Context, e events.Event) error {
	n, err := h.domain.CancelForOrder(ctx, e.AggregateID())
	if n > 0 {
		h.logger.Info("cart reminders cancelled",
			zap.String("order_id", e.AggregateID().String()),
			zap.String("cause", e.EventType()),
			zap.Int("count", n))
	}
	return err
}

var _ events.Handler = (*EventHandler)(nil)
