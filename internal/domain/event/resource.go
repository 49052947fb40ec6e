package event

import (
	"time"

	"github.com/digicheckout/server/internal/model"
	"github.com/google/uuid"
)

// Resource is the event-specific part of an envelope. Each event name has
// exactly one implementation.
type Resource interface {
	eventName() Name
}

// CustomerResource is the buyer as exposed to subscribers.
type CustomerResource struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

// SummaryResource aggregates the order value.
type SummaryResource struct {
	TotalItems int   `json:"totalItems"`
	ValueTotal int64 `json:"value_total"`
}

// ItemResource is an order line.
type ItemResource struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"productId"`
	Name        string    `json:"name"`
	Quantity    int       `json:"quantity"`
	Price       int64     `json:"price"`
	IsOrderBump bool      `json:"isOrderBump"`
	IsUpsell    bool      `json:"isUpsell"`
}

// ReminderItemResource is the reduced order line sent with cart reminders.
type ReminderItemResource struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
}

// OrderResource is the payload of order.created.
type OrderResource struct {
	ID         uuid.UUID         `json:"id"`
	CheckoutID uuid.UUID         `json:"checkoutId"`
	Status     model.OrderStatus `json:"status"`
	Customer   *CustomerResource `json:"customer"`
	Resource   SummaryResource   `json:"resource"`
	Items      []ItemResource    `json:"items"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (OrderResource) eventName() Name { return OrderCreated }

// PaidOrderResource is the payload of order.paid.
type PaidOrderResource struct {
	OrderResource
	PaymentID     string     `json:"paymentId"`
	PaidAt        *time.Time `json:"paidAt"`
	PaymentMethod string     `json:"paymentMethod"`
}

func (PaidOrderResource) eventName() Name { return OrderPaid }

// CartReminderResource is the payload of cart.reminder.
type CartReminderResource struct {
	OrderID   uuid.UUID              `json:"orderId"`
	Customer  *CustomerResource      `json:"customer"`
	Items     []ReminderItemResource `json:"items"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

func (CartReminderResource) eventName() Name { return CartReminder }

func newCustomerResource(c *model.Customer) *CustomerResource {
	if c == nil {
		return nil
	}
	return &CustomerResource{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func newOrderResource(o *model.Order) OrderResource {
	items := make([]ItemResource, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, ItemResource{
			ID:          item.ID,
			ProductID:   item.ProductID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			Price:       item.UnitPrice,
			IsOrderBump: item.IsOrderBump,
			IsUpsell:    item.IsUpsell,
		})
	}
	return OrderResource{
		ID:         o.ID,
		CheckoutID: o.CheckoutID,
		Status:     o.Status,
		Customer:   newCustomerResource(o.Customer),
		Resource: SummaryResource{
			TotalItems: o.TotalItems(),
			ValueTotal: o.TotalAmount,
		},
		Items:     items,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func newPaidOrderResource(o *model.Order) PaidOrderResource {
	r := PaidOrderResource{OrderResource: newOrderResource(o)}
	if o.Payment != nil {
		r.PaymentID = o.Payment.ProviderPaymentID
		r.PaidAt = o.Payment.PaidAt
		r.PaymentMethod = o.Payment.Method
	}
	return r
}

func newCartReminderResource(o *model.Order) CartReminderResource {
	items := make([]ReminderItemResource, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, ReminderItemResource{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
		})
	}
	return CartReminderResource{
		OrderID:   o.ID,
		Customer:  newCustomerResource(o.Customer),
		Items:     items,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
