package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/digicheckout/server/internal/domain/reminder"
	"github.com/digicheckout/server/internal/domain/webhook"
	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/shared/database"
	"github.com/digicheckout/server/internal/utils/middleware"
)

// App represents the application.
type App struct {
	deps    *Dependencies
	router  *gin.Engine
	cleanup func()
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	deps, cleanup, err := InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("init dependencies: %w", err)
	}
	return newApp(deps, cleanup), nil
}

func newApp(deps *Dependencies, cleanup func()) *App {
	if cleanup == nil {
		cleanup = func() {}
	}
	a := &App{deps: deps, cleanup: cleanup}
	a.registerHandlers()
	a.router = a.setupRouter()
	return a
}

// registerHandlers wires event subscribers and job handlers.
func (a *App) registerHandlers() {
	a.deps.Bus.Register(a.deps.WebhookEvents)
	a.deps.Bus.Register(a.deps.ReminderEvents)
	a.deps.Bus.Register(a.deps.Tracking)

	a.deps.Queue.Register(webhook.JobKindDelivery, a.deps.DeliveryHandler.Handle)
	a.deps.Queue.Register(reminder.JobKindCartReminder, a.deps.ReminderDomain.Process)
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	cfg := a.deps.Config
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.TestMode, gin.ReleaseMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.deps.Logger))
	r.Use(middleware.Metrics(a.deps.Metrics))

	r.GET("/health", a.health)

	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(a.deps.Registry, promhttp.HandlerOpts{})))

	// Provider notifications authenticate by signature
	v1 := r.Group("/api/v1")
	a.deps.WebhookHandler.RegisterRoutes(v1)

	// Checkout surface, service to service
	internal := r.Group("/internal")
	internal.Use(middleware.RequireServiceToken(a.deps.Tokens))
	a.deps.OrderHandler.RegisterRoutes(internal)

	admin := r.Group("/admin")
	admin.Use(middleware.CORS(middleware.AdminCORSConfig(cfg.Auth.AllowOrigins)))
	admin.Use(middleware.RequireServiceToken(a.deps.Tokens))
	a.deps.AdminHandler.RegisterRoutes(admin)

	return r
}

// health reports database and Redis reachability.
func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true
	if err := database.Ping(ctx, a.deps.DB); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if a.deps.Redis != nil {
		checks["redis"] = "ok"
		if err := a.deps.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Dependencies exposes the wired components.
func (a *App) Dependencies() *Dependencies {
	return a.deps
}

// Run starts the job queue, recovers scheduled reminders and serves HTTP
// until ctx is cancelled. Shutdown is graceful.
func (a *App) Run(ctx context.Context) error {
	cfg := a.deps.Config
	log := a.deps.Logger

	if err := a.deps.Queue.Start(ctx); err != nil {
		return fmt.Errorf("start job queue: %w", err)
	}

	recovered, err := a.deps.ReminderDomain.Recover(ctx)
	if err != nil {
		log.Warn("recover cart reminders", zap.Error(err))
	} else if recovered > 0 {
		log.Info("cart reminders recovered", zap.Int("count", recovered))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.Stop(context.Background())
			return fmt.Errorf("serve http: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}
	a.Stop(shutdownCtx)

	return nil
}

// Stop drains background work and releases connections.
func (a *App) Stop(ctx context.Context) {
	log := a.deps.Logger

	if err := a.deps.Queue.Drain(ctx); err != nil {
		log.Warn("drain job queue", zap.Error(err))
	}
	if err := a.deps.Tracking.Wait(ctx); err != nil {
		log.Warn("wait for purchase tracking", zap.Error(err))
	}

	a.cleanup()
	_ = log.Sync()
}
