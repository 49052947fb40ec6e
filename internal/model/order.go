package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus represents the status of an order.
type OrderStatus string

const (
	OrderStatusDraft          OrderStatus = "DRAFT"
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusAbandonedCart  OrderStatus = "ABANDONED_CART"
)

// String returns the string representation of the status.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusPendingPayment, OrderStatusPaid, OrderStatusCancelled, OrderStatusAbandonedCart:
		return true
	}
	return false
}

// IsTerminal returns true if no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransitionTo checks if a transition from the current status to target is valid.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, a := range orderTransitions[s] {
		if a == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	allowed := orderTransitions[s]
	out := make([]OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}

// orderTransitions defines valid state transitions.
// Refund and mediation states are not modeled.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:          {OrderStatusPendingPayment, OrderStatusAbandonedCart},
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {},
	OrderStatusCancelled:      {},
	OrderStatusAbandonedCart:  {},
}

// Order represents a checkout order.
type Order struct {
	ID              uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	CheckoutID      uuid.UUID   `json:"checkout_id" gorm:"type:uuid;not null;index"`
	CustomerID      uuid.UUID   `json:"customer_id" gorm:"type:uuid;not null;index"`
	Status          OrderStatus `json:"status" gorm:"not null;index"`
	TotalAmount     int64       `json:"total_amount" gorm:"not null"`
	PaidAmount      int64       `json:"paid_amount" gorm:"not null;default:0"`
	Currency        string      `json:"currency" gorm:"not null;default:'BRL'"`
	StatusUpdatedAt *time.Time  `json:"status_updated_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	Customer *Customer             `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Items    []*OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	Payment  *Payment              `json:"payment,omitempty" gorm:"foreignKey:OrderID"`
	History  []*OrderStatusHistory `json:"history,omitempty" gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for Order.
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns an id when none was set.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// TotalItems returns the total quantity across all items.
func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// OrderItem represents an item in an order.
type OrderItem struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID `json:"product_id" gorm:"type:uuid;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Quantity    int       `json:"quantity" gorm:"not null;default:1"`
	UnitPrice   int64     `json:"unit_price" gorm:"not null"`
	IsOrderBump bool      `json:"is_order_bump" gorm:"not null;default:false"`
	IsUpsell    bool      `json:"is_upsell" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for OrderItem.
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeCreate assigns an id when none was set.
func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Customer is the buyer attached to an order. Owned by the checkout surface.
type Customer struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"not null;index"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Customer.
func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate assigns an id when none was set.
func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// OrderStatusHistory is an append-only audit row, one per order transition.
type OrderStatusHistory struct {
	ID             uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID        uuid.UUID   `json:"order_id" gorm:"type:uuid;not null;index"`
	PreviousStatus OrderStatus `json:"previous_status" gorm:"not null"`
	NewStatus      OrderStatus `json:"new_status" gorm:"not null"`
	Notes          string      `json:"notes"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index"`
}

// TableName returns the table name for OrderStatusHistory.
func (OrderStatusHistory) TableName() string {
	return "order_status_histories"
}

// BeforeCreate assigns an id when none was set.
func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
