package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/digicheckout/server/internal/domain/event"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/digicheckout/server/internal/utils/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobKindDelivery is the queue kind of a single subscriber delivery.
const JobKindDelivery = "webhook_delivery"

// DeliveryJob is the queue payload of a delivery to one subscriber.
type DeliveryJob struct {
	WebhookID uuid.UUID       `json:"webhook_id"`
	Envelope  *event.Envelope `json:"envelope"`
}

// Publisher fans an envelope out to the delivery queue, one job per
// subscriber, so retries are tracked per subscriber.
type Publisher struct {
	dispatcher *Dispatcher
	queue      outbound.JobQueuePort
	logger     *zap.Logger
}

// NewPublisher creates a new publisher.
func NewPublisher(dispatcher *Dispatcher, queue outbound.JobQueuePort, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger.Named("publisher"),
	}
}

// Publish enqueues one delivery job per subscriber and returns the number
// of jobs enqueued.
func (p *Publisher) Publish(ctx context.Context, env *event.Envelope) (int, error) {
	hooks, err := p.dispatcher.Subscribers(ctx, env.Event)
	if err != nil {
		return 0, fmt.Errorf("resolve subscribers: %w", err)
	}

	enqueued := 0
	var errs []error
	for _, hook := range hooks {
		payload, err := json.Marshal(&DeliveryJob{WebhookID: hook.ID, Envelope: env})
		if err != nil {
			return enqueued, fmt.Errorf("encode delivery job: %w", err)
		}
		if err := p.queue.Enqueue(ctx, &outbound.Job{Kind: JobKindDelivery, Payload: payload}); err != nil {
			errs = append(errs, fmt.Errorf("enqueue delivery to %s: %w", hook.ID, err))
			continue
		}
		enqueued++
	}

	p.logger.Info("event published",
		zap.String("event", env.Event.String()),
		zap.Int("subscribers", len(hooks)),
		zap.Int("enqueued", enqueued))

	return enqueued, errors.Join(errs...)
}

// PublishOrder builds name for order and publishes it. Schema violations are
// logged at error level and returned without enqueuing anything.
func (p *Publisher) PublishOrder(ctx context.Context, name event.Name, order *model.Order) (int, error) {
	env, err := event.Build(name, order)
	if err != nil {
		if errors.Is(err, event.ErrSchemaViolation) {
			p.logger.Error("event payload failed validation",
				zap.String("event", name.String()),
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
		}
		return 0, err
	}
	return p.Publish(ctx, env)
}

// DeliveryHandler runs delivery jobs from the queue.
type DeliveryHandler struct {
	dispatcher *Dispatcher
	webhookDB  outbound.WebhookDatabasePort
	logger     *zap.Logger
}

// NewDeliveryHandler creates a new delivery job handler.
func NewDeliveryHandler(dispatcher *Dispatcher, webhookDB outbound.WebhookDatabasePort, logger *zap.Logger) *DeliveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryHandler{
		dispatcher: dispatcher,
		webhookDB:  webhookDB,
		logger:     logger.Named("delivery"),
	}
}

// Handle delivers one job. The returned error drives the queue's retry.
// Jobs for removed or inactive subscribers are dropped.
func (h *DeliveryHandler) Handle(ctx context.Context, job *outbound.Job) error {
	log := logger.FromContext(ctx, h.logger)

	var payload DeliveryJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.Envelope == nil {
		log.Error("dropping malformed delivery job", zap.Error(err))
		return nil
	}

	hook, err := h.webhookDB.FindByID(ctx, payload.WebhookID)
	if err != nil {
		return err
	}
	if hook == nil || !hook.Active {
		log.Info("subscriber gone, dropping delivery",
			zap.String("webhook_id", payload.WebhookID.String()),
			zap.String("event", payload.Envelope.Event.String()))
		return nil
	}

	_, err = h.dispatcher.Deliver(ctx, hook, payload.Envelope, job.Attempts+1)
	return err
}
