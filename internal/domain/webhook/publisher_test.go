package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/digicheckout/server/internal/adapter/outbound/postgres"
	"github.com/digicheckout/server/internal/domain/event"
	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/domain/settlement"
	"github.com/digicheckout/server/internal/infra/queue"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/digicheckout/server/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T, f *fixture) *queue.MemoryQueue {
	t.Helper()
	q := queue.NewMemoryQueue(&queue.Config{
		Concurrency: 5,
		MaxAttempts: 3,
		Backoff:     []time.Duration{30 * time.Millisecond, 90 * time.Millisecond},
	}, zap.NewNop(), f.metrics)
	q.Register(JobKindDelivery, NewDeliveryHandler(f.dispatcher, postgres.NewWebhookAdapter(f.db), zap.NewNop()).Handle)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Drain(ctx)
	})
	return q
}

func waitForRequests(t *testing.T, sub *subscriber, n int) []receivedRequest {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sub.Requests()) >= n
	}, 3*time.Second, 10*time.Millisecond)
	return sub.Requests()
}

func TestPublisher_RetryBound(t *testing.T) {
	f := newFixture(t, nil)
	q := newTestQueue(t, f)
	sub := newSubscriber(t, http.StatusInternalServerError)
	hook := testutil.SeedWebhook(t, f.db, sub.URL, "whsec", true, "order.created")

	publisher := NewPublisher(f.dispatcher, q, zap.NewNop())
	n, err := publisher.Publish(context.Background(), testEnvelope(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reqs := waitForRequests(t, sub, 3)

	// No fourth attempt after the bound.
	time.Sleep(250 * time.Millisecond)
	reqs = sub.Requests()
	require.Len(t, reqs, 3)

	first := reqs[1].At.Sub(reqs[0].At)
	second := reqs[2].At.Sub(reqs[1].At)
	assert.GreaterOrEqual(t, first, 30*time.Millisecond)
	assert.GreaterOrEqual(t, second, 90*time.Millisecond)
	assert.Greater(t, second, first)

	logs := f.logs(t, hook.ID)
	require.Len(t, logs, 3)
	for i, entry := range logs {
		assert.Equal(t, i+1, entry.Attempt)
		assert.False(t, entry.Success)
	}
	assert.Zero(t, q.Pending())
}

func TestPublisher_OneJobPerSubscriber(t *testing.T) {
	f := newFixture(t, nil)
	q := newTestQueue(t, f)
	ok := newSubscriber(t, http.StatusOK)
	flaky := newSubscriber(t, http.StatusServiceUnavailable)
	testutil.SeedWebhook(t, f.db, ok.URL, "a", true, "order.created")
	flakyHook := testutil.SeedWebhook(t, f.db, flaky.URL, "b", true, "order.created")
	testutil.SeedWebhook(t, f.db, ok.URL, "c", true, "order.paid")

	publisher := NewPublisher(f.dispatcher, q, zap.NewNop())
	n, err := publisher.Publish(context.Background(), testEnvelope(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	waitForRequests(t, flaky, 2)
	flaky.mu.Lock()
	flaky.status = http.StatusOK
	flaky.mu.Unlock()
	waitForRequests(t, flaky, 3)

	// The healthy subscriber is not re-sent when another one retries.
	assert.Len(t, ok.Requests(), 1)

	require.Eventually(t, func() bool {
		logs := f.logs(t, flakyHook.ID)
		return len(logs) == 3 && logs[2].Success
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_NoSubscribers(t *testing.T) {
	f := newFixture(t, nil)
	q := newTestQueue(t, f)

	n, err := NewPublisher(f.dispatcher, q, zap.NewNop()).Publish(context.Background(), testEnvelope(t))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublisher_PublishOrderSchemaViolation(t *testing.T) {
	f := newFixture(t, nil)
	q := newTestQueue(t, f)
	sub := newSubscriber(t, http.StatusOK)
	testutil.SeedWebhook(t, f.db, sub.URL, "whsec", true, "order.paid")

	o := testutil.SeedOrder(t, f.db, model.OrderStatusPaid)
	n, err := NewPublisher(f.dispatcher, q, zap.NewNop()).PublishOrder(context.Background(), event.OrderPaid, o)
	require.ErrorIs(t, err, event.ErrSchemaViolation)
	assert.Zero(t, n)
	assert.Zero(t, q.Pending())
}

func TestDeliveryHandler_DropsGoneSubscriber(t *testing.T) {
	f := newFixture(t, nil)
	sub := newSubscriber(t, http.StatusOK)
	inactive := testutil.SeedWebhook(t, f.db, sub.URL, "whsec", false, "order.created")
	handler := NewDeliveryHandler(f.dispatcher, postgres.NewWebhookAdapter(f.db), zap.NewNop())

	for _, id := range []uuid.UUID{inactive.ID, uuid.New()} {
		payload, err := json.Marshal(&DeliveryJob{WebhookID: id, Envelope: testEnvelope(t)})
		require.NoError(t, err)
		err = handler.Handle(context.Background(), &outbound.Job{ID: "j", Kind: JobKindDelivery, Payload: payload})
		assert.NoError(t, err)
	}

	assert.NoError(t, handler.Handle(context.Background(), &outbound.Job{ID: "bad", Kind: JobKindDelivery, Payload: []byte(`nope`)}))
	assert.Empty(t, sub.Requests())
}

func TestDeliveryHandler_AttemptNumber(t *testing.T) {
	f := newFixture(t, nil)
	sub := newSubscriber(t, http.StatusOK)
	hook := testutil.SeedWebhook(t, f.db, sub.URL, "whsec", true, "order.created")
	handler := NewDeliveryHandler(f.dispatcher, postgres.NewWebhookAdapter(f.db), zap.NewNop())

	payload, err := json.Marshal(&DeliveryJob{WebhookID: hook.ID, Envelope: testEnvelope(t)})
	require.NoError(t, err)
	require.NoError(t, handler.Handle(context.Background(), &outbound.Job{ID: "j", Kind: JobKindDelivery, Payload: payload, Attempts: 2}))

	logs := f.logs(t, hook.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, 3, logs[0].Attempt)
}

func TestEventHandler(t *testing.T) {
	f := newFixture(t, nil)
	q := newTestQueue(t, f)
	sub := newSubscriber(t, http.StatusOK)
	testutil.SeedWebhook(t, f.db, sub.URL, "whsec", true, "order.created", "order.paid")

	handler := NewEventHandler(NewPublisher(f.dispatcher, q, zap.NewNop()), postgres.NewOrderAdapter(f.db))
	assert.ElementsMatch(t, []string{order.EventOrderDrafted, settlement.EventOrderSettled}, handler.Handles())

	ctx := context.Background()
	o := testutil.SeedOrder(t, f.db, model.OrderStatusDraft)
	loaded, err := postgres.NewOrderAdapter(f.db).FindByIDWithRelations(ctx, o.ID)
	require.NoError(t, err)

	require.NoError(t, handler.Handle(ctx, order.NewOrderDraftedEvent(loaded)))
	reqs := waitForRequests(t, sub, 1)
	assert.Equal(t, "order.created", reqs[0].Header.Get(HeaderEvent))

	// A cancellation publishes nothing.
	require.NoError(t, handler.Handle(ctx, settlement.NewOrderSettledEvent(&settlement.Outcome{
		OrderID:        o.ID,
		PreviousStatus: model.OrderStatusPendingPayment,
		NewStatus:      model.OrderStatusCancelled,
		Transitioned:   true,
	})))

	payment := testutil.SeedPayment(t, f.db, o, "mp-123")
	paidAt := time.Now().UTC()
	require.NoError(t, f.db.Model(payment).Updates(map[string]any{"status": model.PaymentStatusApproved, "paid_at": paidAt}).Error)
	require.NoError(t, f.db.Model(&model.Order{}).Where("id = ?", o.ID).Update("status", model.OrderStatusPaid).Error)
	require.NoError(t, handler.Handle(ctx, settlement.NewOrderSettledEvent(&settlement.Outcome{
		OrderID:        o.ID,
		PreviousStatus: model.OrderStatusPendingPayment,
		NewStatus:      model.OrderStatusPaid,
		Transitioned:   true,
		Payment:        payment,
	})))

	reqs = waitForRequests(t, sub, 2)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, sub.Requests(), 2)
	assert.Equal(t, "order.paid", reqs[1].Header.Get(HeaderEvent))

	env, err := event.ParseEnvelope(reqs[1].Body)
	require.NoError(t, err)
	var paid event.PaidOrderResource
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	assert.Equal(t, "mp-123", paid.PaymentID)
}
