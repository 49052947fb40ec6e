package events

import (
	"context"
	"errors"
	"testing"

	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/digicheckout/server/internal/utils/requestctx"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	BaseEvent
}

func newTestEvent(eventType string) testEvent {
	return testEvent{BaseEvent: NewBaseEvent(eventType, uuid.New())}
}

func TestBus_PublishCallsHandlersInOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), nil)

	var calls []string
	bus.Register(NewHandlerFunc([]string{"OrderSettled"}, func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		return nil
	}))
	bus.Register(NewHandlerFunc([]string{"OrderSettled"}, func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	}))
	bus.Register(NewHandlerFunc([]string{"OrderDrafted"}, func(ctx context.Context, e Event) error {
		calls = append(calls, "other")
		return nil
	}))

	failed := bus.Publish(context.Background(), newTestEvent("OrderSettled"))

	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestBus_HandlerErrorsAreIsolated(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	bus := NewBus(zap.NewNop(), m)

	var reached bool
	bus.Register(NewHandlerFunc([]string{"OrderSettled"}, func(ctx context.Context, e Event) error {
		return errors.New("boom")
	}))
	bus.Register(NewHandlerFunc([]string{"OrderSettled"}, func(ctx context.Context, e Event) error {
		panic("handler bug")
	}))
	bus.Register(NewHandlerFunc([]string{"OrderSettled"}, func(ctx context.Context, e Event) error {
		reached = true
		return nil
	}))

	failed := bus.Publish(context.Background(), newTestEvent("OrderSettled"))

	assert.Equal(t, 2, failed)
	assert.True(t, reached)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventHandlerFailuresTotal.WithLabelValues("OrderSettled")))
}

func TestBus_PublishWithoutHandlers(t *testing.T) {
	bus := NewBus(nil, nil)
	assert.Equal(t, 0, bus.Publish(context.Background(), newTestEvent("Unknown")))
}

func TestBus_PassesContext(t *testing.T) {
	bus := NewBus(zap.NewNop(), nil)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	var got any
	bus.Register(NewHandlerFunc([]string{"OrderSettled"}, func(ctx context.Context, e Event) error {
		got = ctx.Value(key{})
		return nil
	}))

	bus.Publish(ctx, newTestEvent("OrderSettled"))
	assert.Equal(t, "value", got)
}

func TestBus_FailureLogCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := NewBus(zap.New(core), nil)
	bus.Register(NewHandlerFunc([]string{"OrderSettled"}, func(ctx context.Context, e Event) error {
		return errors.New("boom")
	}))

	ctx := requestctx.WithRequestID(context.Background(), "req-42")
	evt := newTestEvent("OrderSettled")
	bus.Publish(ctx, evt)

	failures := logs.FilterMessage("event handler failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, evt.EventID().String(), fields["event_id"])
	assert.Equal(t, "boom", fields["error"])
}
