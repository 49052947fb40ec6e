package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// paymentAdapter implements outbound.PaymentDatabasePort.
type paymentAdapter struct {
	db *gorm.DB
}

// NewPaymentAdapter creates a new payment database adapter.
func NewPaymentAdapter(db *gorm.DB) outbound.PaymentDatabasePort {
	return &paymentAdapter{db: db}
}

func (a *paymentAdapter) Create(ctx context.Context, payment *model.Payment) error {
	if err := conn(ctx, a.db).Create(payment).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (a *paymentAdapter) Update(ctx context.Context, payment *model.Payment) error {
	result := conn(ctx, a.db).
		Model(payment).
		Select("Provider", "ProviderPaymentID", "Status", "Method", "Amount", "PaidAt", "RawData", "UpdatedAt").
		Updates(payment)
	if result.Error != nil {
		return fmt.Errorf("update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update payment %s: %w", payment.ID, gorm.ErrRecordNotFound)
	}
	return nil
}

func (a *paymentAdapter) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	err := conn(ctx, a.db).First(&payment, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment by order id: %w", err)
	}
	return &payment, nil
}

func (a *paymentAdapter) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := conn(ctx, a.db).First(&payment, "provider_payment_id = ?", providerPaymentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment by provider payment id: %w", err)
	}
	return &payment, nil
}

var _ outbound.PaymentDatabasePort = (*paymentAdapter)(nil)
