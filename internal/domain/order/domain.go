package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderDomain defines the order lifecycle triggers owned by this service.
type OrderDomain interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)

	// Drafted announces a new DRAFT order: order.created goes out and a cart
	// reminder is scheduled by the event handlers.
	Drafted(ctx context.Context, orderID uuid.UUID) (*model.Order, error)

	// StartPayment records the payment attempt and moves the order to
	// PENDING_PAYMENT.
	StartPayment(ctx context.Context, orderID uuid.UUID, input *StartPaymentInput) (*model.Payment, error)
}

// StartPaymentInput describes a payment attempt created at the provider.
type StartPaymentInput struct {
	Provider          string
	ProviderPaymentID string
	Method            string
	Amount            int64
}

// Validate checks the input.
func (in *StartPaymentInput) Validate() error {
	if in == nil || strings.TrimSpace(in.ProviderPaymentID) == "" {
		return fmt.Errorf("%w: provider payment id is required", ErrInvalidPaymentData)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPaymentData)
	}
	return nil
}

// orderDomain implements OrderDomain.
type orderDomain struct {
	orderDB   outbound.OrderDatabasePort
	historyDB outbound.OrderStatusHistoryDatabasePort
	paymentDB outbound.PaymentDatabasePort
	tx        outbound.TransactionPort
	publisher outbound.EventPublisherPort
	provider  string
	logger    *zap.Logger
}

// NewOrderDomain creates a new order domain service.
func NewOrderDomain(
	orderDB outbound.OrderDatabasePort,
	historyDB outbound.OrderStatusHistoryDatabasePort,
	paymentDB outbound.PaymentDatabasePort,
	tx outbound.TransactionPort,
	publisher outbound.EventPublisherPort,
	provider string,
	logger *zap.Logger,
) OrderDomain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderDomain{
		orderDB:   orderDB,
		historyDB: historyDB,
		paymentDB: paymentDB,
		tx:        tx,
		publisher: publisher,
		provider:  provider,
		logger:    logger.Named("order"),
	}
}

func (d *orderDomain) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := d.orderDB.FindByIDWithRelations(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (d *orderDomain) Drafted(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := d.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusDraft {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotDraft, order.Status)
	}

	d.publish(ctx, NewOrderDraftedEvent(order))
	return order, nil
}

func (d *orderDomain) StartPayment(ctx context.Context, orderID uuid.UUID, input *StartPaymentInput) (*model.Payment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var payment *model.Payment
	err := d.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := d.orderDB.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}

		// A new attempt on an order already waiting for payment only re-points the payment.
		transition := order.Status != model.OrderStatusPendingPayment
		if transition {
			if err := ValidateTransition(order.Status, model.OrderStatusPendingPayment); err != nil {
				return err
			}
		}

		payment, err = d.upsertPayment(ctx, orderID, input)
		if err != nil {
			return err
		}

		if !transition {
			return nil
		}

		ok, err := d.orderDB.TransitionStatus(ctx, orderID, order.Status, model.OrderStatusPendingPayment,
			outbound.OrderStatusChange{At: time.Now()})
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderStateChanged
		}

		return d.historyDB.Append(ctx, &model.OrderStatusHistory{
			OrderID:        orderID,
			PreviousStatus: order.Status,
			NewStatus:      model.OrderStatusPendingPayment,
			Notes:          fmt.Sprintf("Payment started via %s (provider payment %s)", input.Method, input.ProviderPaymentID),
		})
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("payment started",
		zap.String("order_id", orderID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("provider_payment_id", payment.ProviderPaymentID))

	d.publish(ctx, NewPaymentStartedEvent(orderID, payment))
	return payment, nil
}

func (d *orderDomain) upsertPayment(ctx context.Context, orderID uuid.UUID, input *StartPaymentInput) (*model.Payment, error) {
	provider := input.Provider
	if provider == "" {
		provider = d.provider
	}

	payment, err := d.paymentDB.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		payment = &model.Payment{
			OrderID:           orderID,
			Provider:          provider,
			ProviderPaymentID: input.ProviderPaymentID,
			Status:            model.PaymentStatusPending,
			Method:            input.Method,
			Amount:            input.Amount,
		}
		if err := d.paymentDB.Create(ctx, payment); err != nil {
			return nil, err
		}
		return payment, nil
	}

	payment.Provider = provider
	payment.ProviderPaymentID = input.ProviderPaymentID
	payment.Status = model.PaymentStatusPending
	payment.Method = input.Method
	payment.Amount = input.Amount
	payment.PaidAt = nil
	payment.RawData = nil
	if err := d.paymentDB.Update(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (d *orderDomain) publish(ctx context.Context, event interface{}) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Error("failed to publish event", zap.Error(err))
	}
}
