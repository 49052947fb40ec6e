package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultWebhookLogLimit = 50

// webhookAdapter implements outbound.WebhookDatabasePort.
type webhookAdapter struct {
	db *gorm.DB
}

// NewWebhookAdapter creates a new subscriber registry adapter.
func NewWebhookAdapter(db *gorm.DB) outbound.WebhookDatabasePort {
	return &webhookAdapter{db: db}
}

func (a *webhookAdapter) FindByID(ctx context.Context, id uuid.UUID) (*model.Webhook, error) {
	var hook model.Webhook
	err := conn(ctx, a.db).First(&hook, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find webhook by id: %w", err)
	}
	return &hook, nil
}

// ListActive returns active registrations. Soft-deleted rows are excluded by gorm.
func (a *webhookAdapter) ListActive(ctx context.Context) ([]*model.Webhook, error) {
	var hooks []*model.Webhook
	err := conn(ctx, a.db).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&hooks).Error
	if err != nil {
		return nil, fmt.Errorf("list active webhooks: %w", err)
	}
	return hooks, nil
}

// webhookLogAdapter implements outbound.WebhookLogDatabasePort.
type webhookLogAdapter struct {
	db *gorm.DB
}

// NewWebhookLogAdapter creates a new delivery ledger adapter.
func NewWebhookLogAdapter(db *gorm.DB) outbound.WebhookLogDatabasePort {
	return &webhookLogAdapter{db: db}
}

func (a *webhookLogAdapter) Create(ctx context.Context, entry *model.WebhookLog) error {
	if err := conn(ctx, a.db).Create(entry).Error; err != nil {
		return fmt.Errorf("create webhook log: %w", err)
	}
	return nil
}

func (a *webhookLogAdapter) FindByID(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error) {
	var entry model.WebhookLog
	err := conn(ctx, a.db).First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find webhook log by id: %w", err)
	}
	return &entry, nil
}

func (a *webhookLogAdapter) List(ctx context.Context, filter *model.WebhookLogFilter) ([]*model.WebhookLog, error) {
	if filter == nil {
		filter = &model.WebhookLogFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultWebhookLogLimit
	}

	query := conn(ctx, a.db).Model(&model.WebhookLog{})
	if filter.WebhookID != nil {
		query = query.Where("webhook_id = ?", *filter.WebhookID)
	}
	if filter.Event != "" {
		query = query.Where("event = ?", filter.Event)
	}
	if filter.FailedOnly {
		query = query.Where("success = ?", false)
	}

	var entries []*model.WebhookLog
	if err := query.Order("sent_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list webhook logs: %w", err)
	}
	return entries, nil
}

// webhookJobAdapter implements outbound.WebhookJobDatabasePort.
type webhookJobAdapter struct {
	db *gorm.DB
}

// NewWebhookJobAdapter creates a new delayed-job bookkeeping adapter.
func NewWebhookJobAdapter(db *gorm.DB) outbound.WebhookJobDatabasePort {
	return &webhookJobAdapter{db: db}
}

func (a *webhookJobAdapter) Create(ctx context.Context, job *model.WebhookJob) error {
	if err := conn(ctx, a.db).Create(job).Error; err != nil {
		return fmt.Errorf("create webhook job: %w", err)
	}
	return nil
}

func (a *webhookJobAdapter) FindByJobID(ctx context.Context, jobID string) (*model.WebhookJob, error) {
	var job model.WebhookJob
	err := conn(ctx, a.db).First(&job, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find webhook job: %w", err)
	}
	return &job, nil
}

func (a *webhookJobAdapter) ListActiveByOrderID(ctx context.Context, orderID uuid.UUID, jobType model.WebhookJobType) ([]*model.WebhookJob, error) {
	var jobs []*model.WebhookJob
	err := conn(ctx, a.db).
		Where("order_id = ? AND job_type = ? AND status = ?", orderID, jobType, model.WebhookJobStatusActive).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list active webhook jobs: %w", err)
	}
	return jobs, nil
}

func (a *webhookJobAdapter) ListActive(ctx context.Context, jobType model.WebhookJobType) ([]*model.WebhookJob, error) {
	var jobs []*model.WebhookJob
	err := conn(ctx, a.db).
		Where("job_type = ? AND status = ?", jobType, model.WebhookJobStatusActive).
		Order("run_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list active webhook jobs: %w", err)
	}
	return jobs, nil
}

func (a *webhookJobAdapter) UpdateStatus(ctx context.Context, jobID string, status model.WebhookJobStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	if status == model.WebhookJobStatusCompleted {
		updates["completed_at"] = at
	}

	result := conn(ctx, a.db).
		Model(&model.WebhookJob{}).
		Where("job_id = ? AND status = ?", jobID, model.WebhookJobStatusActive).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("update webhook job status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Compile-time interface checks
var (
	_ outbound.WebhookDatabasePort    = (*webhookAdapter)(nil)
	_ outbound.WebhookLogDatabasePort = (*webhookLogAdapter)(nil)
	_ outbound.WebhookJobDatabasePort = (*webhookJobAdapter)(nil)
)
