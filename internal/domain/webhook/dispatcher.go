// Package webhook signs event envelopes and delivers them to subscribers.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/digicheckout/server/internal/domain/event"
	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config contains delivery configuration.
type Config struct {
	Timeout          time.Duration
	MaxResponseBytes int
	UserAgent        string
	Concurrency      int
}

// DefaultConfig returns the default delivery configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:          10 * time.Second,
		MaxResponseBytes: 4096,
		UserAgent:        "digicheckout-webhooks/1.0",
		Concurrency:      5,
	}
}

// ConfigFrom converts the application delivery config.
func ConfigFrom(cfg *config.DeliveryConfig, concurrency int) *Config {
	out := DefaultConfig()
	if cfg != nil {
		if cfg.Timeout > 0 {
			out.Timeout = cfg.Timeout
		}
		if cfg.MaxResponseBytes > 0 {
			out.MaxResponseBytes = cfg.MaxResponseBytes
		}
		if cfg.UserAgent != "" {
			out.UserAgent = cfg.UserAgent
		}
	}
	if concurrency > 0 {
		out.Concurrency = concurrency
	}
	return out
}

// Dispatcher delivers envelopes to subscriber endpoints and records every
// attempt in the delivery ledger.
type Dispatcher struct {
	webhookDB outbound.WebhookDatabasePort
	logDB     outbound.WebhookLogDatabasePort
	client    *http.Client
	cfg       *Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewDispatcher creates a new dispatcher. The client's timeout is replaced by
// the delivery timeout.
func NewDispatcher(
	webhookDB outbound.WebhookDatabasePort,
	logDB outbound.WebhookLogDatabasePort,
	client *http.Client,
	cfg *Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		webhookDB: webhookDB,
		logDB:     logDB,
		client: &http.Client{
			Transport: client.Transport,
			Timeout:   cfg.Timeout,
		},
		cfg:     cfg,
		logger:  logger.Named("dispatcher"),
		metrics: m,
	}
}

// Subscribers returns the active registrations listening to name.
func (d *Dispatcher) Subscribers(ctx context.Context, name event.Name) ([]*model.Webhook, error) {
	hooks, err := d.webhookDB.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	subscribed := make([]*model.Webhook, 0, len(hooks))
	for _, hook := range hooks {
		if hook.Subscribes(name.String()) {
			subscribed = append(subscribed, hook)
		}
	}
	return subscribed, nil
}

// Deliver performs one delivery attempt and appends its WebhookLog row.
// A transport error or non-2xx response returns ErrDeliveryFailed along with
// the recorded log.
func (d *Dispatcher) Deliver(ctx context.Context, hook *model.Webhook, env *event.Envelope, attempt int) (*model.WebhookLog, error) {
	body, err := env.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	entry := &model.WebhookLog{
		WebhookID:  hook.ID,
		DeliveryID: uuid.New(),
		Event:      env.Event.String(),
		Attempt:    attempt,
		Payload:    body,
		SentAt:     time.Now(),
	}

	statusCode, response, sendErr := d.send(ctx, hook, env.Event, entry.DeliveryID, body)
	entry.StatusCode = statusCode
	entry.Success = sendErr == nil && statusCode >= 200 && statusCode < 300
	if sendErr != nil {
		entry.Response = sendErr.Error()
	} else {
		entry.Response = response
	}

	d.metrics.RecordDelivery(entry.Event, entry.Success, time.Since(entry.SentAt))

	// The attempt is recorded even when the caller's context has expired.
	if err := d.logDB.Create(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Error("failed to record delivery attempt",
			zap.String("webhook_id", hook.ID.String()),
			zap.String("delivery_id", entry.DeliveryID.String()),
			zap.Error(err))
	}

	if entry.Success {
		d.logger.Debug("webhook delivered",
			zap.String("webhook_id", hook.ID.String()),
			zap.String("event", entry.Event),
			zap.Int("attempt", attempt),
			zap.Int("status_code", statusCode))
		return entry, nil
	}

	d.logger.Warn("webhook delivery failed",
		zap.String("webhook_id", hook.ID.String()),
		zap.String("url", hook.URL),
		zap.String("event", entry.Event),
		zap.Int("attempt", attempt),
		zap.Int("status_code", statusCode),
		zap.String("response", entry.Response))

	if sendErr != nil {
		return entry, fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
	}
	return entry, fmt.Errorf("%w: status %d", ErrDeliveryFailed, statusCode)
}

func (d *Dispatcher) send(ctx context.Context, hook *model.Webhook, name event.Name, deliveryID uuid.UUID, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set(HeaderEvent, name.String())
	req.Header.Set(HeaderDelivery, deliveryID.String())
	req.Header.Set(HeaderSignature, Sign(hook.Secret, body))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(d.cfg.MaxResponseBytes)))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, string(data), nil
}

// Dispatch performs one attempt against every subscriber of the envelope's
// event concurrently and returns the ids attempted. A failing subscriber does
// not affect the others.
func (d *Dispatcher) Dispatch(ctx context.Context, env *event.Envelope) ([]uuid.UUID, error) {
	hooks, err := d.Subscribers(ctx, env.Event)
	if err != nil {
		return nil, err
	}

	attempted := make([]uuid.UUID, len(hooks))
	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i, hook := range hooks {
		g.Go(func() error {
			attempted[i] = hook.ID
			_, _ = d.Deliver(ctx, hook, env, 1)
			return nil
		})
	}
	_ = g.Wait()

	return attempted, nil
}

// Replay re-sends a recorded delivery to its subscriber as a new attempt.
func (d *Dispatcher) Replay(ctx context.Context, logID uuid.UUID) (*model.WebhookLog, error) {
	entry, err := d.logDB.FindByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrWebhookLogNotFound
	}

	hook, err := d.webhookDB.FindByID(ctx, entry.WebhookID)
	if err != nil {
		return nil, err
	}
	if hook == nil {
		return nil, ErrWebhookNotFound
	}
	if !hook.Active {
		return nil, ErrWebhookInactive
	}

	env, err := event.ParseEnvelope(entry.Payload)
	if err != nil {
		return nil, err
	}

	d.logger.Info("replaying webhook delivery",
		zap.String("webhook_log_id", logID.String()),
		zap.String("webhook_id", hook.ID.String()),
		zap.String("event", entry.Event))

	return d.Deliver(ctx, hook, env, entry.Attempt+1)
}

// Logs lists recorded delivery attempts, newest first.
func (d *Dispatcher) Logs(ctx context.Context, filter *model.WebhookLogFilter) ([]*model.WebhookLog, error) {
	return d.logDB.List(ctx, filter)
}
