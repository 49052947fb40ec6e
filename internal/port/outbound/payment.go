package outbound

import (
	"context"

	"github.com/digicheckout/server/internal/model"
	"github.com/google/uuid"
)

// PaymentDatabasePort defines the interface for payment database operations.
type PaymentDatabasePort interface {
	Create(ctx context.Context, payment *model.Payment) error
	Update(ctx context.Context, payment *model.Payment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error)
}

// ExternalWebhookLogDatabasePort defines the inbound idempotency ledger.
type ExternalWebhookLogDatabasePort interface {
	// FindByWebhookID returns nil when no row exists.
	FindByWebhookID(ctx context.Context, webhookID string) (*model.ExternalWebhookLog, error)

	// Upsert inserts the entry or overwrites the outcome of an existing one
	// with the same webhook id.
	Upsert(ctx context.Context, entry *model.ExternalWebhookLog) error
}
