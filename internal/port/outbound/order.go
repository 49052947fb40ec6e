package outbound

import (
	"context"
	"time"

	"github.com/digicheckout/server/internal/model"
	"github.com/google/uuid"
)

// OrderDatabasePort defines the interface for order database operations.
type OrderDatabasePort interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// FindByIDWithRelations loads the customer, items and current payment.
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// TransitionStatus moves the order from one status to another only if it
	// is still in from. Returns false when no row matched.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, change OrderStatusChange) (bool, error)
}

// OrderStatusChange carries the columns written alongside a status change.
type OrderStatusChange struct {
	At         time.Time
	PaidAmount *int64
}

// OrderStatusHistoryDatabasePort defines the append-only status audit log.
type OrderStatusHistoryDatabasePort interface {
	Append(ctx context.Context, entry *model.OrderStatusHistory) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*model.OrderStatusHistory, error)
}
