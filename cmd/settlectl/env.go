package main

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/digicheckout/server/internal/adapter/outbound/postgres"
	"github.com/digicheckout/server/internal/domain/webhook"
	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/infra/httpclient"
	"github.com/digicheckout/server/internal/shared/database"
	"github.com/digicheckout/server/internal/utils/logger"
)

// env holds what a command needs to talk to the database.
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{
		cfg: cfg,
		db:  db,
		logger: logger.New(&logger.Config{
			Level:  "warn",
			Format: "console",
		}),
	}, nil
}

func (e *env) Close() {
	_ = database.Close(e.db)
	_ = e.logger.Sync()
}

// dispatcher builds a webhook dispatcher without metrics.
func (e *env) dispatcher() *webhook.Dispatcher {
	return webhook.NewDispatcher(
		postgres.NewWebhookAdapter(e.db),
		postgres.NewWebhookLogAdapter(e.db),
		httpclient.New(e.cfg.HTTPClient),
		webhook.ConfigFrom(&e.cfg.Delivery, e.cfg.Queue.Concurrency),
		e.logger,
		nil,
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
