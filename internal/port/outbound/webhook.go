package outbound

import (
	"context"
	"time"

	"github.com/digicheckout/server/internal/model"
	"github.com/google/uuid"
)

// WebhookDatabasePort reads subscriber registrations.
// The pipeline never writes registrations.
type WebhookDatabasePort interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Webhook, error)
	ListActive(ctx context.Context) ([]*model.Webhook, error)
}

// WebhookLogDatabasePort defines the outbound delivery ledger.
type WebhookLogDatabasePort interface {
	Create(ctx context.Context, entry *model.WebhookLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error)
	List(ctx context.Context, filter *model.WebhookLogFilter) ([]*model.WebhookLog, error)
}

// WebhookJobDatabasePort defines delayed-job bookkeeping.
type WebhookJobDatabasePort interface {
	Create(ctx context.Context, job *model.WebhookJob) error
	FindByJobID(ctx context.Context, jobID string) (*model.WebhookJob, error)
	ListActiveByOrderID(ctx context.Context, orderID uuid.UUID, jobType model.WebhookJobType) ([]*model.WebhookJob, error)
	ListActive(ctx context.Context, jobType model.WebhookJobType) ([]*model.WebhookJob, error)

	// UpdateStatus moves the job to status only if it is still active.
	// Returns false when no row matched.
	UpdateStatus(ctx context.Context, jobID string, status model.WebhookJobStatus, at time.Time) (bool, error)
}
