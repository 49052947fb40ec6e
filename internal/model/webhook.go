package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Webhook is a subscriber registration. Managed by the admin surface.
type Webhook struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	URL       string         `json:"url" gorm:"not null"`
	Events    pq.StringArray `json:"events" gorm:"type:text[];not null"`
	Secret    string         `json:"-" gorm:"not null"`
	Active    bool           `json:"active" gorm:"not null;default:true;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for Webhook.
func (Webhook) TableName() string {
	return "webhooks"
}

// BeforeCreate assigns an id when none was set.
func (w *Webhook) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Subscribes reports whether the registration listens to the event.
func (w *Webhook) Subscribes(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookLog records one outbound delivery attempt.
type WebhookLog struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	WebhookID  uuid.UUID      `json:"webhook_id" gorm:"type:uuid;not null;index"`
	DeliveryID uuid.UUID      `json:"delivery_id" gorm:"type:uuid;not null"`
	Event      string         `json:"event" gorm:"not null;index"`
	Attempt    int            `json:"attempt" gorm:"not null;default:1"`
	Payload    datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Response   string         `json:"response"`
	StatusCode int            `json:"status_code"`
	Success    bool           `json:"success" gorm:"not null;index"`
	SentAt     time.Time      `json:"sent_at" gorm:"not null;index"`
}

// TableName returns the table name for WebhookLog.
func (WebhookLog) TableName() string {
	return "webhook_logs"
}

// BeforeCreate assigns an id when none was set.
func (l *WebhookLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// WebhookLogFilter narrows WebhookLog listings.
type WebhookLogFilter struct {
	WebhookID  *uuid.UUID
	Event      string
	FailedOnly bool
	Limit      int
}

// WebhookJobType identifies the kind of delayed job tracked in webhook_jobs.
type WebhookJobType string

const (
	WebhookJobTypeCartReminder WebhookJobType = "cart_reminder"
)

// WebhookJobStatus is the bookkeeping status of a delayed job.
type WebhookJobStatus string

const (
	WebhookJobStatusActive    WebhookJobStatus = "active"
	WebhookJobStatusCancelled WebhookJobStatus = "cancelled"
	WebhookJobStatusCompleted WebhookJobStatus = "completed"
)

// WebhookJob tracks a delayed job scheduled on behalf of an order.
type WebhookJob struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID        `json:"order_id" gorm:"type:uuid;not null;index"`
	JobType     WebhookJobType   `json:"job_type" gorm:"not null"`
	JobID       string           `json:"job_id" gorm:"not null;uniqueIndex"`
	Status      WebhookJobStatus `json:"status" gorm:"not null;index"`
	RunAt       time.Time        `json:"run_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName returns the table name for WebhookJob.
func (WebhookJob) TableName() string {
	return "webhook_jobs"
}

// BeforeCreate assigns an id when none was set.
func (j *WebhookJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the job may still fire.
func (j *WebhookJob) IsActive() bool {
	return j.Status == WebhookJobStatusActive
}
