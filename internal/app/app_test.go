package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	orderhttp "github.com/digicheckout/server/internal/adapter/inbound/http/order"
	"github.com/digicheckout/server/internal/adapter/outbound/postgres"
	"github.com/digicheckout/server/internal/domain/reminder"
	"github.com/digicheckout/server/internal/domain/settlement"
	"github.com/digicheckout/server/internal/domain/webhook"
	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Mode: "test", ShutdownTimeout: time.Second},
		Log:     config.LogConfig{Level: "error", Format: "console"},
		Metrics: config.MetricsConfig{Namespace: "checkout_test", Path: "/metrics"},
		Auth:    config.AuthConfig{JWTSecret: "test-secret", Issuer: "digicheckout"},
		Provider: config.ProviderConfig{
			Name:          "mercadopago",
			BaseURL:       "http://127.0.0.1:0",
			WebhookSecret: "whsec",
			DedupHeader:   "X-Idempotency-Key",
		},
		Queue:    config.QueueConfig{Driver: "memory", Concurrency: 2, MaxAttempts: 3, Backoff: []time.Duration{time.Second}},
		Delivery: config.DeliveryConfig{Timeout: time.Second, MaxResponseBytes: 1024, UserAgent: "test"},
		Reminder: config.ReminderConfig{Enabled: true, Delay: time.Hour},
	}
}

// buildDependencies mirrors InitializeDependencies on top of a test database.
func buildDependencies(t *testing.T, cfg *config.Config, db *gorm.DB) *Dependencies {
	t.Helper()

	log := zap.NewNop()
	registry := ProvideRegistry()
	m := ProvideMetrics(cfg, registry)
	bus := ProvideEventBus(log, m)
	jobs, err := ProvideJobQueue(cfg, nil, log, m)
	require.NoError(t, err)

	orderDB := postgres.NewOrderAdapter(db)
	historyDB := postgres.NewOrderStatusHistoryAdapter(db)
	paymentDB := postgres.NewPaymentAdapter(db)
	tx := postgres.NewTransactionAdapter(db)
	publisher := ProvideEventPublisher(bus)
	client := ProvideHTTPClient(cfg)

	paymentProvider, err := ProvidePaymentProvider(cfg, client, log)
	require.NoError(t, err)

	settlementDomain := settlement.NewSettlementDomain(orderDB, historyDB, paymentDB, tx, log)
	paymentDomain := ProvidePaymentDomain(cfg, paymentDB, orderDB, postgres.NewExternalWebhookLogAdapter(db),
		paymentProvider, settlementDomain, tx, publisher, log, m)
	dispatcher := ProvideDispatcher(cfg, postgres.NewWebhookAdapter(db), postgres.NewWebhookLogAdapter(db), client, log, m)
	webhookPublisher := webhook.NewPublisher(dispatcher, jobs, log)
	reminderDomain := ProvideReminderDomain(cfg, orderDB, historyDB, postgres.NewWebhookJobAdapter(db), tx, jobs, webhookPublisher, log, m)
	orderDomain := ProvideOrderDomain(cfg, orderDB, historyDB, paymentDB, tx, publisher, log)

	return &Dependencies{
		Config:          cfg,
		DB:              db,
		Logger:          log,
		Registry:        registry,
		Metrics:         m,
		Bus:             bus,
		Queue:           jobs,
		Tokens:          ProvideServiceTokens(cfg),
		OrderDomain:     orderDomain,
		PaymentDomain:   paymentDomain,
		ReminderDomain:  reminderDomain,
		Dispatcher:      dispatcher,
		Tracking:        ProvideTrackingDispatcher(cfg, ProvideTracker(cfg, client, log), orderDB, log),
		WebhookEvents:   webhook.NewEventHandler(webhookPublisher, orderDB),
		ReminderEvents:  reminder.NewEventHandler(reminderDomain, log),
		DeliveryHandler: webhook.NewDeliveryHandler(dispatcher, postgres.NewWebhookAdapter(db), log),
		WebhookHandler:  ProvideWebhookHandler(cfg, paymentDomain),
		OrderHandler:    orderhttp.NewOrderHandler(orderDomain),
		AdminHandler:    ProvideAdminHandler(dispatcher),
	}
}

func newTestApp(t *testing.T) (*App, *gorm.DB) {
	t.Helper()

	db := testutil.NewDB(t)
	a := newApp(buildDependencies(t, testConfig(), db), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.Stop(ctx)
	})
	return a, db
}

func serviceToken(t *testing.T, a *App) string {
	t.Helper()

	token, err := a.Dependencies().Tokens.Issue("checkout", time.Minute)
	require.NoError(t, err)
	return token
}

func serve(a *App, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestApp_Health(t *testing.T) {
	a, _ := newTestApp(t)

	w := serve(a, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.NotContains(t, body.Checks, "redis")
}

func TestApp_Metrics(t *testing.T) {
	a, _ := newTestApp(t)

	serve(a, http.MethodGet, "/health", "")
	w := serve(a, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestApp_InternalRoutesRequireToken(t *testing.T) {
	a, db := newTestApp(t)
	order := testutil.SeedOrder(t, db, model.OrderStatusDraft)
	path := "/internal/orders/" + order.ID.String()

	t.Run("missing token", func(t *testing.T) {
		w := serve(a, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		w := serve(a, http.MethodGet, path, "not-a-token")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := serve(a, http.MethodGet, path, serviceToken(t, a))
		require.Equal(t, http.StatusOK, w.Code)

		var got model.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, order.ID, got.ID)
		assert.Equal(t, model.OrderStatusDraft, got.Status)
	})
}

func TestApp_AdminRoutesRequireToken(t *testing.T) {
	a, _ := newTestApp(t)

	w := serve(a, http.MethodGet, "/admin/webhook-logs", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(a, http.MethodGet, "/admin/webhook-logs", serviceToken(t, a))
	require.Equal(t, http.StatusOK, w.Code)

	var body model.ListResponse[*model.WebhookLog]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
}

func TestApp_DraftedOrderSchedulesReminder(t *testing.T) {
	a, db := newTestApp(t)
	order := testutil.SeedOrder(t, db, model.OrderStatusDraft)

	w := serve(a, http.MethodPost, "/internal/orders/"+order.ID.String()+"/drafted", serviceToken(t, a))
	require.Equal(t, http.StatusAccepted, w.Code)

	var jobs []model.WebhookJob
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.WebhookJobTypeCartReminder, jobs[0].JobType)
	assert.Equal(t, model.WebhookJobStatusActive, jobs[0].Status)
}
