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

// orderAdapter implements outbound.OrderDatabasePort.
type orderAdapter struct {
	db *gorm.DB
}

// NewOrderAdapter creates a new order database adapter.
func NewOrderAdapter(db *gorm.DB) outbound.OrderDatabasePort {
	return &orderAdapter{db: db}
}

func (a *orderAdapter) Create(ctx context.Context, order *model.Order) error {
	if err := conn(ctx, a.db).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (a *orderAdapter) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, a.db).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order by id: %w", err)
	}
	return &order, nil
}

func (a *orderAdapter) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, a.db).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Payment").
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order with relations: %w", err)
	}
	return &order, nil
}

func (a *orderAdapter) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, change outbound.OrderStatusChange) (bool, error) {
	updates := map[string]any{
		"status":            to,
		"status_updated_at": change.At,
		"updated_at":        change.At,
	}
	if change.PaidAmount != nil {
		updates["paid_amount"] = *change.PaidAmount
	}

	result := conn(ctx, a.db).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("transition order status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// orderStatusHistoryAdapter implements outbound.OrderStatusHistoryDatabasePort.
type orderStatusHistoryAdapter struct {
	db *gorm.DB
}

// NewOrderStatusHistoryAdapter creates a new order status history adapter.
func NewOrderStatusHistoryAdapter(db *gorm.DB) outbound.OrderStatusHistoryDatabasePort {
	return &orderStatusHistoryAdapter{db: db}
}

func (a *orderStatusHistoryAdapter) Append(ctx context.Context, entry *model.OrderStatusHistory) error {
	if err := conn(ctx, a.db).Create(entry).Error; err != nil {
		return fmt.Errorf("append order status history: %w", err)
	}
	return nil
}

func (a *orderStatusHistoryAdapter) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]*model.OrderStatusHistory, error) {
	var entries []*model.OrderStatusHistory
	err := conn(ctx, a.db).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list order status history: %w", err)
	}
	return entries, nil
}

// Compile-time interface checks
var (
	_ outbound.OrderDatabasePort              = (*orderAdapter)(nil)
	_ outbound.OrderStatusHistoryDatabasePort = (*orderStatusHistoryAdapter)(nil)
)
