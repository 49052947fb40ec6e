package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock implementations ---

type MockOrderDB struct {
	mock.Mock
}

func (m *MockOrderDB) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderDB) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderDB) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderDB) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, change outbound.OrderStatusChange) (bool, error) {
	args := m.Called(ctx, id, from, to, change)
	return args.Bool(0), args.Error(1)
}

type MockHistoryDB struct {
	mock.Mock
}

func (m *MockHistoryDB) Append(ctx context.Context, entry *model.OrderStatusHistory) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryDB) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*model.OrderStatusHistory, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.OrderStatusHistory), args.Error(1)
}

type MockPaymentDB struct {
	mock.Mock
}

func (m *MockPaymentDB) Create(ctx context.Context, payment *model.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentDB) Update(ctx context.Context, payment *model.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentDB) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentDB) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

// passThroughTx runs fn without a real transaction.
type passThroughTx struct{}

func (passThroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	events []interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, event interface{}) error {
	p.events = append(p.events, event)
	return nil
}

type testDeps struct {
	orders    *MockOrderDB
	history   *MockHistoryDB
	payments  *MockPaymentDB
	publisher *recordingPublisher
	domain    OrderDomain
}

func newTestDomain() *testDeps {
	d := &testDeps{
		orders:    new(MockOrderDB),
		history:   new(MockHistoryDB),
		payments:  new(MockPaymentDB),
		publisher: &recordingPublisher{},
	}
	d.domain = NewOrderDomain(d.orders, d.history, d.payments, passThroughTx{}, d.publisher, "mercadopago", zap.NewNop())
	return d
}

// --- Tests ---

func TestValidateTransition(t *testing.T) {
	statuses := []model.OrderStatus{
		model.OrderStatusDraft,
		model.OrderStatusPendingPayment,
		model.OrderStatusPaid,
		model.OrderStatusCancelled,
		model.OrderStatusAbandonedCart,
	}
	allowed := map[[2]model.OrderStatus]bool{
		{model.OrderStatusDraft, model.OrderStatusPendingPayment}:     true,
		{model.OrderStatusDraft, model.OrderStatusAbandonedCart}:      true,
		{model.OrderStatusPendingPayment, model.OrderStatusPaid}:      true,
		{model.OrderStatusPendingPayment, model.OrderStatusCancelled}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			err := ValidateTransition(from, to)
			if allowed[[2]model.OrderStatus{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			}
		}
	}

	assert.ErrorIs(t, ValidateTransition("SHIPPED", model.OrderStatusPaid), ErrInvalidTransition)
	assert.EqualError(t, ValidateTransition(model.OrderStatusPendingPayment, model.OrderStatusAbandonedCart),
		"invalid state transition: PENDING_PAYMENT -> ABANDONED_CART (allowed: [PAID CANCELLED])")
	assert.True(t, model.OrderStatusPaid.IsTerminal())
	assert.True(t, model.OrderStatusAbandonedCart.IsTerminal())
	assert.False(t, model.OrderStatusDraft.IsTerminal())
}

func TestOrderDomain_Drafted(t *testing.T) {
	t.Run("publishes drafted event", func(t *testing.T) {
		d := newTestDomain()
		order := &model.Order{ID: uuid.New(), Status: model.OrderStatusDraft}
		d.orders.On("FindByIDWithRelations", mock.Anything, order.ID).Return(order, nil)

		got, err := d.domain.Drafted(context.Background(), order.ID)

		require.NoError(t, err)
		assert.Equal(t, order, got)
		require.Len(t, d.publisher.events, 1)
		event := d.publisher.events[0].(*OrderDraftedEvent)
		assert.Equal(t, EventOrderDrafted, event.EventType())
		assert.Equal(t, order.ID, event.AggregateID())
	})

	t.Run("not found", func(t *testing.T) {
		d := newTestDomain()
		id := uuid.New()
		d.orders.On("FindByIDWithRelations", mock.Anything, id).Return(nil, nil)

		_, err := d.domain.Drafted(context.Background(), id)

		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.Empty(t, d.publisher.events)
	})

	t.Run("not a draft", func(t *testing.T) {
		d := newTestDomain()
		order := &model.Order{ID: uuid.New(), Status: model.OrderStatusPaid}
		d.orders.On("FindByIDWithRelations", mock.Anything, order.ID).Return(order, nil)

		_, err := d.domain.Drafted(context.Background(), order.ID)

		assert.ErrorIs(t, err, ErrOrderNotDraft)
		assert.Empty(t, d.publisher.events)
	})
}

func TestOrderDomain_StartPayment(t *testing.T) {
	input := &StartPaymentInput{ProviderPaymentID: "mp-123", Method: "pix", Amount: 14700}

	t.Run("creates payment and moves draft to pending", func(t *testing.T) {
		d := newTestDomain()
		order := &model.Order{ID: uuid.New(), Status: model.OrderStatusDraft}

		d.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		d.payments.On("FindByOrderID", mock.Anything, order.ID).Return(nil, nil)
		d.payments.On("Create", mock.Anything, mock.MatchedBy(func(p *model.Payment) bool {
			return p.ProviderPaymentID == "mp-123" && p.Status == model.PaymentStatusPending &&
				p.Provider == "mercadopago" && p.Amount == 14700
		})).Return(nil)
		d.orders.On("TransitionStatus", mock.Anything, order.ID, model.OrderStatusDraft, model.OrderStatusPendingPayment,
			mock.AnythingOfType("outbound.OrderStatusChange")).Return(true, nil)
		d.history.On("Append", mock.Anything, mock.MatchedBy(func(h *model.OrderStatusHistory) bool {
			return h.PreviousStatus == model.OrderStatusDraft && h.NewStatus == model.OrderStatusPendingPayment
		})).Return(nil)

		payment, err := d.domain.StartPayment(context.Background(), order.ID, input)

		require.NoError(t, err)
		assert.Equal(t, "mp-123", payment.ProviderPaymentID)
		require.Len(t, d.publisher.events, 1)
		assert.Equal(t, EventPaymentStarted, d.publisher.events[0].(*PaymentStartedEvent).EventType())
		d.orders.AssertExpectations(t)
		d.payments.AssertExpectations(t)
		d.history.AssertExpectations(t)
	})

	t.Run("re-points payment of pending order without transition", func(t *testing.T) {
		d := newTestDomain()
		order := &model.Order{ID: uuid.New(), Status: model.OrderStatusPendingPayment}
		paidAt := time.Now()
		existing := &model.Payment{ID: uuid.New(), OrderID: order.ID, ProviderPaymentID: "mp-old",
			Status: model.PaymentStatusRejected, PaidAt: &paidAt}

		d.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		d.payments.On("FindByOrderID", mock.Anything, order.ID).Return(existing, nil)
		d.payments.On("Update", mock.Anything, existing).Return(nil)

		payment, err := d.domain.StartPayment(context.Background(), order.ID, input)

		require.NoError(t, err)
		assert.Equal(t, existing.ID, payment.ID)
		assert.Equal(t, "mp-123", payment.ProviderPaymentID)
		assert.Equal(t, model.PaymentStatusPending, payment.Status)
		assert.Nil(t, payment.PaidAt)
		d.orders.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		d.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("rejects terminal order", func(t *testing.T) {
		d := newTestDomain()
		order := &model.Order{ID: uuid.New(), Status: model.OrderStatusAbandonedCart}
		d.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)

		_, err := d.domain.StartPayment(context.Background(), order.ID, input)

		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Empty(t, d.publisher.events)
		d.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("lost race", func(t *testing.T) {
		d := newTestDomain()
		order := &model.Order{ID: uuid.New(), Status: model.OrderStatusDraft}

		d.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		d.payments.On("FindByOrderID", mock.Anything, order.ID).Return(nil, nil)
		d.payments.On("Create", mock.Anything, mock.Anything).Return(nil)
		d.orders.On("TransitionStatus", mock.Anything, order.ID, model.OrderStatusDraft, model.OrderStatusPendingPayment,
			mock.Anything).Return(false, nil)

		_, err := d.domain.StartPayment(context.Background(), order.ID, input)

		assert.ErrorIs(t, err, ErrOrderStateChanged)
		assert.Empty(t, d.publisher.events)
	})

	t.Run("order not found", func(t *testing.T) {
		d := newTestDomain()
		id := uuid.New()
		d.orders.On("FindByID", mock.Anything, id).Return(nil, nil)

		_, err := d.domain.StartPayment(context.Background(), id, input)

		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("database error propagates", func(t *testing.T) {
		d := newTestDomain()
		id := uuid.New()
		d.orders.On("FindByID", mock.Anything, id).Return(nil, errors.New("connection refused"))

		_, err := d.domain.StartPayment(context.Background(), id, input)

		assert.EqualError(t, err, "connection refused")
	})

	t.Run("invalid input", func(t *testing.T) {
		d := newTestDomain()

		_, err := d.domain.StartPayment(context.Background(), uuid.New(), &StartPaymentInput{Amount: 10})
		assert.ErrorIs(t, err, ErrInvalidPaymentData)

		_, err = d.domain.StartPayment(context.Background(), uuid.New(), &StartPaymentInput{ProviderPaymentID: "x"})
		assert.ErrorIs(t, err, ErrInvalidPaymentData)

		_, err = d.domain.StartPayment(context.Background(), uuid.New(), nil)
		assert.ErrorIs(t, err, ErrInvalidPaymentData)
	})
}
