package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Purchase is the conversion reported to the tracking collaborator.
type Purchase struct {
	OrderID       uuid.UUID
	CheckoutID    uuid.UUID
	PaymentID     string
	PaymentMethod string
	Value         int64
	Currency      string
	PaidAt        time.Time
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ProductIDs    []uuid.UUID
}

// TrackingPort reports purchases to the ads tracking pipeline.
type TrackingPort interface {
	TrackPurchase(ctx context.Context, purchase *Purchase) error
}
