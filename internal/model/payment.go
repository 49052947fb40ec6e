package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentStatus is the provider-side status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusInProcess   PaymentStatus = "in_process"
	PaymentStatusAuthorized  PaymentStatus = "authorized"
	PaymentStatusApproved    PaymentStatus = "approved"
	PaymentStatusRejected    PaymentStatus = "rejected"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusChargedBack PaymentStatus = "charged_back"
)

// String returns the string representation of the status.
func (s PaymentStatus) String() string {
	return string(s)
}

// TargetOrderStatus maps a provider status to the order status it settles into.
// The second return value is false when the status does not move the order.
func (s PaymentStatus) TargetOrderStatus() (OrderStatus, bool) {
	switch s {
	case PaymentStatusApproved:
		return OrderStatusPaid, true
	case PaymentStatusRejected, PaymentStatusCancelled:
		return OrderStatusCancelled, true
	}
	return "", false
}

// Payment is the current payment attempt of an order.
type Payment struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID           uuid.UUID      `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"`
	Provider          string         `json:"provider" gorm:"not null"`
	ProviderPaymentID string         `json:"provider_payment_id" gorm:"not null;uniqueIndex"`
	Status            PaymentStatus  `json:"status" gorm:"not null;index"`
	Method            string         `json:"method"`
	Amount            int64          `json:"amount" gorm:"not null"`
	PaidAt            *time.Time     `json:"paid_at,omitempty"`
	RawData           datatypes.JSON `json:"raw_data,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName returns the table name for Payment.
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate assigns an id when none was set.
func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ExternalWebhookLog is the inbound idempotency ledger.
type ExternalWebhookLog struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	WebhookID string         `json:"webhook_id" gorm:"not null;uniqueIndex"`
	Source    string         `json:"source" gorm:"not null"`
	PaymentID string         `json:"payment_id" gorm:"index"`
	Action    string         `json:"action"`
	Payload   datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	Success   bool           `json:"success" gorm:"not null;default:false"`
	ErrorMsg  string         `json:"error_msg,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName returns the table name for ExternalWebhookLog.
func (ExternalWebhookLog) TableName() string {
	return "external_webhook_logs"
}

// BeforeCreate assigns an id when none was set.
func (l *ExternalWebhookLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
