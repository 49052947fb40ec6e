// Package reminder schedules cart reminders for DRAFT orders and abandons
// carts that are still unpaid when the reminder fires.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/digicheckout/server/internal/domain/event"
	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/infra/queue"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobKindCartReminder is the queue kind of a cart reminder.
const JobKindCartReminder = "cart_reminder"

// Reminder results recorded in metrics.
const (
	resultScheduled = "scheduled"
	resultCancelled = "cancelled"
	resultSent      = "sent"
	resultStale     = "stale"
)

// Config contains cart reminder configuration.
type Config struct {
	Enabled bool
	Delay   time.Duration
}

// DefaultConfig returns the default reminder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Delay:   15 * time.Minute,
	}
}

// ConfigFrom converts the application reminder config.
func ConfigFrom(cfg *config.ReminderConfig) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	out.Enabled = cfg.Enabled
	if cfg.Delay > 0 {
		out.Delay = cfg.Delay
	}
	return out
}

// OrderPublisher publishes an order event to subscribers.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, name event.Name, order *model.Order) (int, error)
}

// ReminderDomain defines cart reminder operations.
type ReminderDomain interface {
	// ScheduleReminder schedules a reminder for a DRAFT order. An order that
	// already has an active reminder gets that one back.
	ScheduleReminder(ctx context.Context, orderID uuid.UUID) (*model.WebhookJob, error)

	// CancelReminder cancels one reminder. Returns false when it was no
	// longer active.
	CancelReminder(ctx context.Context, jobID string) (bool, error)

	// CancelForOrder cancels every active reminder of the order.
	CancelForOrder(ctx context.Context, orderID uuid.UUID) (int, error)

	// Process is the queue handler for fired reminders.
	Process(ctx context.Context, job *outbound.Job) error

	// Recover re-schedules active reminders after a restart.
	Recover(ctx context.Context) (int, error)
}

// jobPayload is the queue payload of a reminder.
type jobPayload struct {
	JobID   string    `json:"job_id"`
	OrderID uuid.UUID `json:"order_id"`
}

// reminderDomain implements ReminderDomain.
type reminderDomain struct {
	orderDB   outbound.OrderDatabasePort
	historyDB outbound.OrderStatusHistoryDatabasePort
	jobDB     outbound.WebhookJobDatabasePort
	tx        outbound.TransactionPort
	queue     outbound.JobQueuePort
	publisher OrderPublisher
	cfg       *Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewReminderDomain creates a new reminder domain service.
func NewReminderDomain(
	orderDB outbound.OrderDatabasePort,
	historyDB outbound.OrderStatusHistoryDatabasePort,
	jobDB outbound.WebhookJobDatabasePort,
	tx outbound.TransactionPort,
	queue outbound.JobQueuePort,
	publisher OrderPublisher,
	cfg *Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) ReminderDomain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reminderDomain{
		orderDB:   orderDB,
		historyDB: historyDB,
		jobDB:     jobDB,
		tx:        tx,
		queue:     queue,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.Named("reminder"),
		metrics:   m,
	}
}

func (d *reminderDomain) ScheduleReminder(ctx context.Context, orderID uuid.UUID) (*model.WebhookJob, error) {
	if !d.cfg.Enabled {
		return nil, ErrReminderDisabled
	}

	o, err := d.orderDB.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, order.ErrOrderNotFound
	}
	if o.Status != model.OrderStatusDraft {
		return nil, fmt.Errorf("%w: status is %s", order.ErrOrderNotDraft, o.Status)
	}

	active, err := d.jobDB.ListActiveByOrderID(ctx, orderID, model.WebhookJobTypeCartReminder)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return active[0], nil
	}

	record := &model.WebhookJob{
		OrderID: orderID,
		JobType: model.WebhookJobTypeCartReminder,
		JobID:   uuid.NewString(),
		Status:  model.WebhookJobStatusActive,
		RunAt:   time.Now().Add(d.cfg.Delay),
	}
	if err := d.jobDB.Create(ctx, record); err != nil {
		return nil, err
	}

	if err := d.schedule(ctx, record); err != nil {
		if _, cerr := d.jobDB.UpdateStatus(ctx, record.JobID, model.WebhookJobStatusCancelled, time.Now()); cerr != nil {
			d.logger.Error("failed to cancel unscheduled reminder", zap.String("job_id", record.JobID), zap.Error(cerr))
		}
		return nil, fmt.Errorf("schedule reminder: %w", err)
	}

	d.metrics.RecordReminder(resultScheduled)
	d.logger.Info("cart reminder scheduled",
		zap.String("order_id", orderID.String()),
		zap.String("job_id", record.JobID),
		zap.Time("run_at", record.RunAt))
	return record, nil
}

func (d *reminderDomain) schedule(ctx context.Context, record *model.WebhookJob) error {
	payload, err := json.Marshal(&jobPayload{JobID: record.JobID, OrderID: record.OrderID})
	if err != nil {
		return err
	}
	delay := time.Until(record.RunAt)
	if delay < 0 {
		delay = 0
	}
	return d.queue.Schedule(ctx, &outbound.Job{
		ID:      record.JobID,
		Kind:    JobKindCartReminder,
		Payload: payload,
	}, delay)
}

func (d *reminderDomain) CancelReminder(ctx context.Context, jobID string) (bool, error) {
	cancelled, err := d.jobDB.UpdateStatus(ctx, jobID, model.WebhookJobStatusCancelled, time.Now())
	if err != nil {
		return false, err
	}
	if !cancelled {
		return false, nil
	}

	// Process re-checks the job status, so a timer that fires anyway is a no-op.
	if _, err := d.queue.Cancel(ctx, jobID); err != nil {
		d.logger.Warn("failed to remove reminder from queue", zap.String("job_id", jobID), zap.Error(err))
	}

	d.metrics.RecordReminder(resultCancelled)
	d.logger.Info("cart reminder cancelled", zap.String("job_id", jobID))
	return true, nil
}

func (d *reminderDomain) CancelForOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	active, err := d.jobDB.ListActiveByOrderID(ctx, orderID, model.WebhookJobTypeCartReminder)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	var errs []error
	for _, job := range active {
		ok, err := d.CancelReminder(ctx, job.JobID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			cancelled++
		}
	}
	return cancelled, errors.Join(errs...)
}

func (d *reminderDomain) Process(ctx context.Context, job *outbound.Job) error {
	var payload jobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.JobID == "" {
		return fmt.Errorf("%w: %s", ErrInvalidJob, job.ID)
	}

	record, err := d.jobDB.FindByJobID(ctx, payload.JobID)
	if err != nil {
		return err
	}
	if record == nil || !record.IsActive() {
		d.logger.Debug("reminder no longer active", zap.String("job_id", payload.JobID))
		return nil
	}

	o, err := d.orderDB.FindByIDWithRelations(ctx, record.OrderID)
	if err != nil {
		return err
	}
	if o == nil || o.Status != model.OrderStatusDraft {
		return d.markStale(ctx, record)
	}

	now := time.Now()
	err = d.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		ok, err := d.orderDB.TransitionStatus(ctx, o.ID, model.OrderStatusDraft, model.OrderStatusAbandonedCart,
			outbound.OrderStatusChange{At: now})
		if err != nil {
			return err
		}
		if !ok {
			return errStale
		}

		if err := d.historyDB.Append(ctx, &model.OrderStatusHistory{
			OrderID:        o.ID,
			PreviousStatus: model.OrderStatusDraft,
			NewStatus:      model.OrderStatusAbandonedCart,
			Notes:          fmt.Sprintf("Cart abandoned: reminder %s fired", record.JobID),
		}); err != nil {
			return err
		}

		ok, err = d.jobDB.UpdateStatus(ctx, record.JobID, model.WebhookJobStatusCompleted, now)
		if err != nil {
			return err
		}
		if !ok {
			return errStale
		}
		return nil
	})
	if errors.Is(err, errStale) {
		return d.markStale(ctx, record)
	}
	if err != nil {
		return err
	}

	o.Status = model.OrderStatusAbandonedCart
	o.StatusUpdatedAt = &now
	d.logger.Info("cart abandoned",
		zap.String("order_id", o.ID.String()),
		zap.String("job_id", record.JobID))

	// The transition is committed; a failed publish is logged, not retried.
	if _, err := d.publisher.PublishOrder(ctx, event.CartReminder, o); err != nil {
		d.logger.Error("failed to publish cart reminder",
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
		return nil
	}
	d.metrics.RecordReminder(resultSent)
	return nil
}

// markStale cancels a reminder whose order left DRAFT before it fired.
func (d *reminderDomain) markStale(ctx context.Context, record *model.WebhookJob) error {
	if _, err := d.jobDB.UpdateStatus(ctx, record.JobID, model.WebhookJobStatusCancelled, time.Now()); err != nil {
		return err
	}
	d.metrics.RecordReminder(resultStale)
	d.logger.Info("stale cart reminder skipped",
		zap.String("order_id", record.OrderID.String()),
		zap.String("job_id", record.JobID))
	return nil
}

func (d *reminderDomain) Recover(ctx context.Context) (int, error) {
	active, err := d.jobDB.ListActive(ctx, model.WebhookJobTypeCartReminder)
	if err != nil {
		return 0, err
	}

	recovered := 0
	var errs []error
	for _, record := range active {
		err := d.schedule(ctx, record)
		switch {
		case err == nil:
			recovered++
		case errors.Is(err, queue.ErrDuplicateJob):
			// Scheduled or leased in a durable queue. Orphans are requeued by Schedule.
		default:
			errs = append(errs, fmt.Errorf("recover reminder %s: %w", record.JobID, err))
		}
	}

	if len(active) > 0 {
		d.logger.Info("cart reminders recovered",
			zap.Int("active", len(active)),
			zap.Int("rescheduled", recovered))
	}
	return recovered, errors.Join(errs...)
}
