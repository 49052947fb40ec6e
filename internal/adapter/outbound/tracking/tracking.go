package tracking

import (
	"net/http"

	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/infra/httpclient"
	"github.com/digicheckout/server/internal/port/outbound"
	"go.uber.org/zap"
)

// New returns the CAPI tracker when enabled, otherwise a noop.
func New(cfg *config.TrackingConfig, client *http.Client, logger *zap.Logger) outbound.TrackingPort {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return NewNoop(logger)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout > 0 {
		client = httpclient.WithTimeout(client, cfg.Timeout)
	}
	return NewCAPI(cfg.Endpoint, cfg.Token, client)
}
