package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// externalWebhookLogAdapter implements outbound.ExternalWebhookLogDatabasePort.
type externalWebhookLogAdapter struct {
	db *gorm.DB
}

// NewExternalWebhookLogAdapter creates a new inbound webhook ledger adapter.
func NewExternalWebhookLogAdapter(db *gorm.DB) outbound.ExternalWebhookLogDatabasePort {
	return &externalWebhookLogAdapter{db: db}
}

func (a *externalWebhookLogAdapter) FindByWebhookID(ctx context.Context, webhookID string) (*model.ExternalWebhookLog, error) {
	var entry model.ExternalWebhookLog
	err := conn(ctx, a.db).First(&entry, "webhook_id = ?", webhookID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find webhook log: %w", err)
	}
	return &entry, nil
}

// Upsert writes the ledger row for entry.WebhookID. A row already marked
// successful is never overwritten.
func (a *externalWebhookLogAdapter) Upsert(ctx context.Context, entry *model.ExternalWebhookLog) error {
	err := conn(ctx, a.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "webhook_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payment_id", "action", "payload", "success", "error_msg", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "external_webhook_logs.success = ?", Vars: []interface{}{false}},
			}},
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("upsert webhook log: %w", err)
	}
	return nil
}

var _ outbound.ExternalWebhookLogDatabasePort = (*externalWebhookLogAdapter)(nil)
