// Package payment turns provider payment notifications into settled orders.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/domain/settlement"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Outcome is how a notification was resolved. Every outcome is acknowledged
// to the provider.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeNotFound  Outcome = "not_found"
)

// NotificationInput is a raw inbound notification.
type NotificationInput struct {
	Body      []byte
	Signature string
	RequestID string

	// IdempotencyKey is the value of the configured de-duplication header,
	// if the request carried one.
	IdempotencyKey string
}

// Result describes a handled notification.
type Result struct {
	Outcome     Outcome           `json:"status"`
	WebhookID   string            `json:"webhook_id,omitempty"`
	OrderID     *uuid.UUID        `json:"order_id,omitempty"`
	OrderStatus model.OrderStatus `json:"order_status,omitempty"`
}

// PaymentDomain defines the inbound payment notification flow.
type PaymentDomain interface {
	// HandleNotification verifies, de-duplicates and settles a notification.
	HandleNotification(ctx context.Context, input *NotificationInput) (*Result, error)
}

// Config contains inbound notification configuration.
type Config struct {
	WebhookSecret string
	// MaxSkew bounds how old or early a signature timestamp may be. Zero
	// disables the check.
	MaxSkew time.Duration
}

// paymentDomain implements PaymentDomain.
type paymentDomain struct {
	paymentDB  outbound.PaymentDatabasePort
	orderDB    outbound.OrderDatabasePort
	ledger     outbound.ExternalWebhookLogDatabasePort
	provider   outbound.PaymentProviderPort
	settlement settlement.SettlementDomain
	tx         outbound.TransactionPort
	publisher  outbound.EventPublisherPort
	verifier   *Verifier
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewPaymentDomain creates a new payment domain service.
func NewPaymentDomain(
	paymentDB outbound.PaymentDatabasePort,
	orderDB outbound.OrderDatabasePort,
	ledger outbound.ExternalWebhookLogDatabasePort,
	provider outbound.PaymentProviderPort,
	settlementDomain settlement.SettlementDomain,
	tx outbound.TransactionPort,
	publisher outbound.EventPublisherPort,
	cfg *Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) PaymentDomain {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &paymentDomain{
		paymentDB:  paymentDB,
		orderDB:    orderDB,
		ledger:     ledger,
		provider:   provider,
		settlement: settlementDomain,
		tx:         tx,
		publisher:  publisher,
		verifier:   &Verifier{Secret: cfg.WebhookSecret, MaxSkew: cfg.MaxSkew},
		logger:     logger.Named("payment"),
		metrics:    m,
	}
}

func (d *paymentDomain) HandleNotification(ctx context.Context, input *NotificationInput) (*Result, error) {
	result, err := d.handle(ctx, input)
	if err != nil {
		d.metrics.RecordInboundWebhook("error")
		return nil, err
	}
	d.metrics.RecordInboundWebhook(string(result.Outcome))
	return result, nil
}

func (d *paymentDomain) handle(ctx context.Context, input *NotificationInput) (*Result, error) {
	n, err := ParseNotification(input.Body)
	if err != nil {
		return nil, err
	}

	if err := d.verifier.Verify(input.Signature, n.DataID, input.RequestID); err != nil {
		d.logger.Warn("rejected notification signature",
			zap.String("data_id", n.DataID),
			zap.String("request_id", input.RequestID),
			zap.Error(err))
		return nil, err
	}

	if !n.IsPaymentChange() {
		d.logger.Debug("ignoring notification action",
			zap.String("action", n.Action),
			zap.String("data_id", n.DataID))
		return &Result{Outcome: OutcomeIgnored}, nil
	}

	webhookID := input.IdempotencyKey
	if webhookID != "" {
		if dup, err := d.processed(ctx, webhookID); err != nil {
			return nil, err
		} else if dup {
			return &Result{Outcome: OutcomeDuplicate, WebhookID: webhookID}, nil
		}
	}

	pp, err := d.provider.GetPayment(ctx, n.DataID)
	if err != nil {
		d.logger.Warn("provider payment lookup failed",
			zap.String("provider", d.provider.Name()),
			zap.String("data_id", n.DataID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if webhookID == "" {
		webhookID = fmt.Sprintf("%s:%s:%s", pp.ID, n.Action, pp.Status)
		if dup, err := d.processed(ctx, webhookID); err != nil {
			return nil, err
		} else if dup {
			return &Result{Outcome: OutcomeDuplicate, WebhookID: webhookID}, nil
		}
	}

	entry := &model.ExternalWebhookLog{
		WebhookID: webhookID,
		Source:    d.provider.Name(),
		PaymentID: pp.ID,
		Action:    n.Action,
		Payload:   datatypes.JSON(input.Body),
	}

	payment, err := d.paymentDB.FindByProviderPaymentID(ctx, pp.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		d.logger.Warn("notification for unknown payment",
			zap.String("provider_payment_id", pp.ID),
			zap.String("webhook_id", webhookID))
		d.recordFailure(ctx, entry, ErrPaymentNotFound)
		return &Result{Outcome: OutcomeNotFound, WebhookID: webhookID}, nil
	}

	o, err := d.orderDB.FindByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		d.recordFailure(ctx, entry, order.ErrOrderNotFound)
		return nil, fmt.Errorf("%w: payment %s references order %s", order.ErrOrderNotFound, payment.ID, payment.OrderID)
	}

	var outcome *settlement.Outcome
	err = d.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = d.settlement.Settle(ctx, &settlement.SettleInput{
			OrderID:         o.ID,
			PreviousStatus:  o.Status,
			Payment:         payment,
			ProviderPayment: pp,
		})
		if err != nil {
			return err
		}
		entry.Success = true
		entry.ErrorMsg = ""
		return d.ledger.Upsert(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, order.ErrOrderStateChanged) {
			if dup, rerr := d.settledConcurrently(ctx, o.ID, pp.Status); rerr == nil && dup {
				d.logger.Info("notification lost a concurrent settlement",
					zap.String("order_id", o.ID.String()),
					zap.String("webhook_id", webhookID))
				return &Result{Outcome: OutcomeDuplicate, WebhookID: webhookID, OrderID: &o.ID}, nil
			}
		}
		if errors.Is(err, order.ErrInvalidTransition) {
			return d.inapplicable(ctx, entry, o, pp, err), nil
		}
		d.recordFailure(ctx, entry, err)
		return nil, fmt.Errorf("settle order %s: %w", o.ID, err)
	}

	result := &Result{
		Outcome:     OutcomeProcessed,
		WebhookID:   webhookID,
		OrderID:     &o.ID,
		OrderStatus: outcome.NewStatus,
	}
	if outcome.AlreadySettled {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	d.logger.Info("payment notification settled",
		zap.String("order_id", o.ID.String()),
		zap.String("provider_payment_id", pp.ID),
		zap.String("payment_status", pp.Status.String()),
		zap.String("previous_status", outcome.PreviousStatus.String()),
		zap.String("new_status", outcome.NewStatus.String()))

	if outcome.Transitioned {
		d.metrics.RecordSettlement(outcome.NewStatus.String())
		// Post-commit side effects never change the acknowledgement.
		if d.publisher != nil {
			if err := d.publisher.Publish(ctx, settlement.NewOrderSettledEvent(outcome)); err != nil {
				d.logger.Error("failed to publish settlement", zap.String("order_id", o.ID.String()), zap.Error(err))
			}
		}
	}
	return result, nil
}

// processed reports whether the ledger holds a successful row for webhookID.
func (d *paymentDomain) processed(ctx context.Context, webhookID string) (bool, error) {
	entry, err := d.ledger.FindByWebhookID(ctx, webhookID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	if entry.Success {
		d.logger.Debug("notification already processed",
			zap.String("webhook_id", webhookID),
			zap.Time("processed_at", entry.UpdatedAt))
		return true, nil
	}
	return false, nil
}

// settledConcurrently reports whether the order already reached the status
// the provider payment settles into.
func (d *paymentDomain) settledConcurrently(ctx context.Context, orderID uuid.UUID, status model.PaymentStatus) (bool, error) {
	target, ok := status.TargetOrderStatus()
	if !ok {
		return false, nil
	}
	current, err := d.orderDB.FindByID(ctx, orderID)
	if err != nil || current == nil {
		return false, err
	}
	return current.Status == target, nil
}

// inapplicable acknowledges a verified notification whose status has no edge
// from the order's current status. No retry can make the edge valid.
func (d *paymentDomain) inapplicable(ctx context.Context, entry *model.ExternalWebhookLog, o *model.Order, pp *outbound.ProviderPayment, cause error) *Result {
	target, _ := pp.Status.TargetOrderStatus()
	fields := []zap.Field{
		zap.String("order_id", o.ID.String()),
		zap.String("provider_payment_id", pp.ID),
		zap.String("payment_status", pp.Status.String()),
		zap.String("current_status", o.Status.String()),
		zap.String("target_status", target.String()),
		zap.String("webhook_id", entry.WebhookID),
	}
	// An approval that cannot settle needs manual reconciliation.
	if pp.Status == model.PaymentStatusApproved {
		d.logger.Error("approved payment does not apply to order", fields...)
	} else {
		d.logger.Warn("payment status does not apply to order", fields...)
	}

	d.recordFailure(ctx, entry, cause)
	return &Result{
		Outcome:     OutcomeIgnored,
		WebhookID:   entry.WebhookID,
		OrderID:     &o.ID,
		OrderStatus: o.Status,
	}
}

// recordFailure upserts a failed ledger row. The row never blocks a later
// successful processing of the same webhook id.
func (d *paymentDomain) recordFailure(ctx context.Context, entry *model.ExternalWebhookLog, cause error) {
	entry.Success = false
	entry.ErrorMsg = cause.Error()
	if err := d.ledger.Upsert(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Error("failed to record notification failure",
			zap.String("webhook_id", entry.WebhookID),
			zap.Error(err))
	}
}
