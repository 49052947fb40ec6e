package outbound

import (
	"context"
	"encoding/json"
	"time"

	"github.com/digicheckout/server/internal/model"
)

// ProviderPayment is the authoritative view of a payment held by the provider.
type ProviderPayment struct {
	ID     string
	Status model.PaymentStatus
	Amount int64
	PaidAt *time.Time
	Method string
	Raw    json.RawMessage
}

// PaymentProviderPort fetches payment truth from the payment provider.
type PaymentProviderPort interface {
	Name() string
	GetPayment(ctx context.Context, id string) (*ProviderPayment, error)
}
