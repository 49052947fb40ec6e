package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/digicheckout/server/internal/utils/requestctx"
	"go.uber.org/zap"
)

// Bus is a simple synchronous event bus for domain events.
// It dispatches events to registered handlers synchronously.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewBus creates a new event bus.
func NewBus(logger *zap.Logger, m *metrics.Metrics) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
		metrics:  m,
	}
}

// Register registers a handler for the events it handles.
func (b *Bus) Register(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, eventType := range handler.Handles() {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
		b.logger.Debug("registered event handler",
			zap.String("event_type", eventType),
		)
	}
}

// Publish dispatches an event to all registered handlers.
// Handlers are called synchronously in registration order.
// A failing or panicking handler is logged and the remaining handlers still run.
// The number of failed handlers is returned.
func (b *Bus) Publish(ctx context.Context, event Event) int {
	b.mu.RLock()
	handlers := b.handlers[event.EventType()]
	b.mu.RUnlock()

	log := b.logger.With(eventFields(ctx, event)...)
	if len(handlers) == 0 {
		log.Debug("no handlers registered for event")
		return 0
	}

	log.Info("publishing event", zap.Int("handler_count", len(handlers)))

	failed := 0
	for _, handler := range handlers {
		if err := b.invoke(ctx, handler, event); err != nil {
			failed++
			b.metrics.RecordEventHandlerFailure(event.EventType())
			log.Error("event handler failed", zap.Error(err))
		}
	}
	return failed
}

func (b *Bus) invoke(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

// eventFields identifies the event, and the HTTP request that raised it when
// there is one.
func eventFields(ctx context.Context, event Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
	}
	if id := requestctx.RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}
