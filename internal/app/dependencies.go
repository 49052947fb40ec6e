package app

import (
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domains
	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/domain/payment"
	"github.com/digicheckout/server/internal/domain/reminder"
	"github.com/digicheckout/server/internal/domain/tracking"
	"github.com/digicheckout/server/internal/domain/webhook"

	// Inbound adapters
	orderhttp "github.com/digicheckout/server/internal/adapter/inbound/http/order"
	paymenthttp "github.com/digicheckout/server/internal/adapter/inbound/http/payment"
	webhookhttp "github.com/digicheckout/server/internal/adapter/inbound/http/webhook"

	// Ports
	"github.com/digicheckout/server/internal/port/outbound"

	// Infrastructure
	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/infra/events"

	// Utils
	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/digicheckout/server/internal/utils/middleware"
)

// Dependencies holds all injected dependencies.
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    goredis.UniversalClient
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Bus      *events.Bus
	Queue    outbound.JobQueuePort
	Tokens   *middleware.ServiceTokens

	// Domains
	OrderDomain    order.OrderDomain
	PaymentDomain  payment.PaymentDomain
	ReminderDomain reminder.ReminderDomain
	Dispatcher     *webhook.Dispatcher
	Tracking       *tracking.Dispatcher

	// Event and job handlers
	WebhookEvents   *webhook.EventHandler
	ReminderEvents  *reminder.EventHandler
	DeliveryHandler *webhook.DeliveryHandler

	// HTTP Handlers
	WebhookHandler *paymenthttp.WebhookHandler
	OrderHandler   *orderhttp.OrderHandler
	AdminHandler   *webhookhttp.AdminHandler
}
