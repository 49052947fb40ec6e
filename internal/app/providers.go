package app

import (
	"context"
	"net/http"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domains
	"github.com/digicheckout/server/internal/domain/order"
	"github.com/digicheckout/server/internal/domain/payment"
	"github.com/digicheckout/server/internal/domain/reminder"
	"github.com/digicheckout/server/internal/domain/settlement"
	"github.com/digicheckout/server/internal/domain/tracking"
	"github.com/digicheckout/server/internal/domain/webhook"

	// Inbound adapters
	orderhttp "github.com/digicheckout/server/internal/adapter/inbound/http/order"
	paymenthttp "github.com/digicheckout/server/internal/adapter/inbound/http/payment"
	webhookhttp "github.com/digicheckout/server/internal/adapter/inbound/http/webhook"

	// Ports
	"github.com/digicheckout/server/internal/port/outbound"

	// Outbound adapters
	"github.com/digicheckout/server/internal/adapter/outbound/postgres"
	"github.com/digicheckout/server/internal/adapter/outbound/provider"
	trackingadapter "github.com/digicheckout/server/internal/adapter/outbound/tracking"

	// Infrastructure
	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/infra/events"
	"github.com/digicheckout/server/internal/infra/httpclient"
	"github.com/digicheckout/server/internal/infra/queue"
	"github.com/digicheckout/server/internal/shared/cache"
	"github.com/digicheckout/server/internal/shared/database"

	// Utils
	"github.com/digicheckout/server/internal/utils/logger"
	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/digicheckout/server/internal/utils/middleware"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideDatabase,
	ProvideRedisClient,
	ProvideHTTPClient,
	ProvideEventBus,
	ProvideEventPublisher,
	ProvideJobQueue,
	ProvideServiceTokens,
)

// ProvideLogger creates the zap logger.
func ProvideLogger(cfg *config.Config) *zap.Logger {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// ProvideRegistry creates the prometheus registry served on the metrics path.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a metrics instance.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(cfg.Metrics.Namespace, reg)
}

// ProvideDatabase creates a database connection, migrating the schema when
// configured.
func ProvideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			_ = database.Close(db)
			return nil, nil, err
		}
		log.Info("database schema migrated")
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideRedisClient creates a Redis client. Returns nil when no address is
// configured.
func ProvideRedisClient(cfg *config.Config, log *zap.Logger) (goredis.UniversalClient, func(), error) {
	if cfg.Redis.Address == "" {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(context.Background(), &cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := cache.Close(client); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideHTTPClient creates a shared HTTP client with connection pooling.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ProvideEventBus creates the in-process domain event bus.
func ProvideEventBus(log *zap.Logger, m *metrics.Metrics) *events.Bus {
	return events.NewBus(log, m)
}

// ProvideEventPublisher exposes the bus as a publisher port.
func ProvideEventPublisher(bus *events.Bus) outbound.EventPublisherPort {
	return newEventBusAdapter(bus)
}

// ProvideJobQueue creates the job queue selected by queue.driver.
func ProvideJobQueue(cfg *config.Config, rdb goredis.UniversalClient, log *zap.Logger, m *metrics.Metrics) (outbound.JobQueuePort, error) {
	return queue.New(&cfg.Queue, rdb, log, m)
}

// ProvideServiceTokens creates the service token validator for internal and admin routes.
func ProvideServiceTokens(cfg *config.Config) *middleware.ServiceTokens {
	return middleware.NewServiceTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
}

// ===== Outbound Adapter Providers =====

// AdapterSet provides database and collaborator adapters.
var AdapterSet = wire.NewSet(
	postgres.NewTransactionAdapter,
	postgres.NewOrderAdapter,
	postgres.NewOrderStatusHistoryAdapter,
	postgres.NewPaymentAdapter,
	postgres.NewExternalWebhookLogAdapter,
	postgres.NewWebhookAdapter,
	postgres.NewWebhookLogAdapter,
	postgres.NewWebhookJobAdapter,
	ProvidePaymentProvider,
	ProvideTracker,
)

// ProvidePaymentProvider creates the configured provider behind a circuit breaker.
func ProvidePaymentProvider(cfg *config.Config, client *http.Client, log *zap.Logger) (outbound.PaymentProviderPort, error) {
	return provider.New(cfg, client, log)
}

// ProvideTracker creates the purchase tracker.
func ProvideTracker(cfg *config.Config, client *http.Client, log *zap.Logger) outbound.TrackingPort {
	return trackingadapter.New(&cfg.Tracking, client, log)
}

// ===== Domain Providers =====

// DomainSet provides the domain services.
var DomainSet = wire.NewSet(
	settlement.NewSettlementDomain,
	ProvideOrderDomain,
	ProvidePaymentDomain,
	ProvideDispatcher,
	webhook.NewPublisher,
	webhook.NewDeliveryHandler,
	webhook.NewEventHandler,
	ProvideReminderDomain,
	reminder.NewEventHandler,
	ProvideTrackingDispatcher,
	wire.Bind(new(reminder.OrderPublisher), new(*webhook.Publisher)),
)

// ProvideOrderDomain creates the order domain.
func ProvideOrderDomain(
	cfg *config.Config,
	orderDB outbound.OrderDatabasePort,
	historyDB outbound.OrderStatusHistoryDatabasePort,
	paymentDB outbound.PaymentDatabasePort,
	tx outbound.TransactionPort,
	publisher outbound.EventPublisherPort,
	log *zap.Logger,
) order.OrderDomain {
	return order.NewOrderDomain(orderDB, historyDB, paymentDB, tx, publisher, cfg.Provider.Name, log)
}

// ProvidePaymentDomain creates the payment domain.
func ProvidePaymentDomain(
	cfg *config.Config,
	paymentDB outbound.PaymentDatabasePort,
	orderDB outbound.OrderDatabasePort,
	ledger outbound.ExternalWebhookLogDatabasePort,
	paymentProvider outbound.PaymentProviderPort,
	settlementDomain settlement.SettlementDomain,
	tx outbound.TransactionPort,
	publisher outbound.EventPublisherPort,
	log *zap.Logger,
	m *metrics.Metrics,
) payment.PaymentDomain {
	return payment.NewPaymentDomain(
		paymentDB,
		orderDB,
		ledger,
		paymentProvider,
		settlementDomain,
		tx,
		publisher,
		&payment.Config{WebhookSecret: cfg.Provider.WebhookSecret, MaxSkew: cfg.Provider.MaxSkew},
		log,
		m,
	)
}

// ProvideDispatcher creates the outbound webhook dispatcher.
func ProvideDispatcher(
	cfg *config.Config,
	webhookDB outbound.WebhookDatabasePort,
	logDB outbound.WebhookLogDatabasePort,
	client *http.Client,
	log *zap.Logger,
	m *metrics.Metrics,
) *webhook.Dispatcher {
	return webhook.NewDispatcher(webhookDB, logDB, client, webhook.ConfigFrom(&cfg.Delivery, cfg.Queue.Concurrency), log, m)
}

// ProvideReminderDomain creates the cart reminder domain.
func ProvideReminderDomain(
	cfg *config.Config,
	orderDB outbound.OrderDatabasePort,
	historyDB outbound.OrderStatusHistoryDatabasePort,
	jobDB outbound.WebhookJobDatabasePort,
	tx outbound.TransactionPort,
	jobs outbound.JobQueuePort,
	publisher reminder.OrderPublisher,
	log *zap.Logger,
	m *metrics.Metrics,
) reminder.ReminderDomain {
	return reminder.NewReminderDomain(orderDB, historyDB, jobDB, tx, jobs, publisher, reminder.ConfigFrom(&cfg.Reminder), log, m)
}

// ProvideTrackingDispatcher creates the background purchase tracking dispatcher.
func ProvideTrackingDispatcher(
	cfg *config.Config,
	tracker outbound.TrackingPort,
	orderDB outbound.OrderDatabasePort,
	log *zap.Logger,
) *tracking.Dispatcher {
	return tracking.NewDispatcher(tracker, orderDB, cfg.Tracking.Timeout, log)
}

// ===== HTTP Handler Providers =====

// HandlerSet provides the inbound HTTP handlers.
var HandlerSet = wire.NewSet(
	ProvideWebhookHandler,
	orderhttp.NewOrderHandler,
	ProvideAdminHandler,
)

// ProvideWebhookHandler creates the payment notification handler.
func ProvideWebhookHandler(cfg *config.Config, domain payment.PaymentDomain) *paymenthttp.WebhookHandler {
	return paymenthttp.NewWebhookHandler(domain, cfg.Provider.DedupHeader)
}

// ProvideAdminHandler creates the delivery ledger admin handler.
func ProvideAdminHandler(dispatcher *webhook.Dispatcher) *webhookhttp.AdminHandler {
	return webhookhttp.NewAdminHandler(dispatcher)
}

// AppSet is the full provider set.
var AppSet = wire.NewSet(
	InfraSet,
	AdapterSet,
	DomainSet,
	HandlerSet,
)
