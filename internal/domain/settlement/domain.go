// Package settlement applies a verified provider payment to the local order
// in a single database transaction.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementDomain defines the settlement transaction.
type SettlementDomain interface {
	// Settle updates the payment, moves the order and appends history as one
	// unit. Called with a context that carries a transaction, it joins it.
	Settle(ctx context.Context, input *SettleInput) (*Outcome, error)
}

// SettleInput is a verified provider payment matched to a local payment.
type SettleInput struct {
	OrderID         uuid.UUID
	PreviousStatus  model.OrderStatus
	Payment         *model.Payment
	ProviderPayment *outbound.ProviderPayment
}

// Outcome describes what a settlement did.
type Outcome struct {
	OrderID        uuid.UUID
	PreviousStatus model.OrderStatus
	NewStatus      model.OrderStatus
	Transitioned   bool
	AlreadySettled bool
	Payment        *model.Payment
}

// settlementDomain implements SettlementDomain.
type settlementDomain struct {
	orderDB   outbound.OrderDatabasePort
	historyDB outbound.OrderStatusHistoryDatabasePort
	paymentDB outbound.PaymentDatabasePort
	tx        outbound.TransactionPort
	logger    *zap.Logger
}

// NewSettlementDomain creates a new settlement domain service.
func NewSettlementDomain(
	orderDB outbound.OrderDatabasePort,
	historyDB outbound.OrderStatusHistoryDatabasePort,
	paymentDB outbound.PaymentDatabasePort,
	tx outbound.TransactionPort,
	logger *zap.Logger,
) SettlementDomain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &settlementDomain{
		orderDB:   orderDB,
		historyDB: historyDB,
		paymentDB: paymentDB,
		tx:        tx,
		logger:    logger.Named("settlement"),
	}
}

func (d *settlementDomain) Settle(ctx context.Context, input *SettleInput) (*Outcome, error) {
	if input == nil || input.Payment == nil || input.ProviderPayment == nil {
		return nil, ErrInvalidInput
	}

	pp := input.ProviderPayment
	target, moves := pp.Status.TargetOrderStatus()

	outcome := &Outcome{
		OrderID:        input.OrderID,
		PreviousStatus: input.PreviousStatus,
		NewStatus:      input.PreviousStatus,
		Payment:        input.Payment,
	}

	if moves {
		if input.PreviousStatus == target {
			outcome.AlreadySettled = true
			return outcome, nil
		}
		if err := order.ValidateTransition(input.PreviousStatus, target); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	err := d.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		payment := applyProviderPayment(input.Payment, pp, now)
		if err := d.paymentDB.Update(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if !moves {
			return nil
		}

		change := outbound.OrderStatusChange{At: now}
		if target == model.OrderStatusPaid {
			paid := payment.Amount
			change.PaidAmount = &paid
		}
		ok, err := d.orderDB.TransitionStatus(ctx, input.OrderID, input.PreviousStatus, target, change)
		if err != nil {
			return err
		}
		if !ok {
			return order.ErrOrderStateChanged
		}

		return d.historyDB.Append(ctx, &model.OrderStatusHistory{
			OrderID:        input.OrderID,
			PreviousStatus: input.PreviousStatus,
			NewStatus:      target,
			Notes:          fmt.Sprintf("Payment %s via %s (provider payment %s)", pp.Status, payment.Method, pp.ID),
		})
	})
	if err != nil {
		return nil, err
	}

	if moves {
		outcome.NewStatus = target
		outcome.Transitioned = true
	}

	d.logger.Info("settlement applied",
		zap.String("order_id", input.OrderID.String()),
		zap.String("provider_payment_id", pp.ID),
		zap.String("payment_status", pp.Status.String()),
		zap.String("previous_status", input.PreviousStatus.String()),
		zap.String("new_status", outcome.NewStatus.String()))

	return outcome, nil
}

// applyProviderPayment copies the provider's view onto the local payment.
func applyProviderPayment(payment *model.Payment, pp *outbound.ProviderPayment, now time.Time) *model.Payment {
	payment.Status = pp.Status
	if pp.Method != "" {
		payment.Method = pp.Method
	}
	if pp.Amount > 0 {
		payment.Amount = pp.Amount
	}
	if pp.Status == model.PaymentStatusApproved {
		paidAt := now
		if pp.PaidAt != nil {
			paidAt = *pp.PaidAt
		}
		payment.PaidAt = &paidAt
	}
	if len(pp.Raw) > 0 {
		payment.RawData = []byte(pp.Raw)
	}
	return payment
}
