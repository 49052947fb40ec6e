package provider

import (
	"fmt"
	"net/http"

	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/infra/httpclient"
	"github.com/digicheckout/server/internal/port/outbound"
	"go.uber.org/zap"
)

// New creates the configured provider wrapped in a circuit breaker.
func New(cfg *config.Config, client *http.Client, logger *zap.Logger) (outbound.PaymentProviderPort, error) {
	var inner outbound.PaymentProviderPort
	switch cfg.Provider.Name {
	case NameMercadoPago, "":
		if client == nil {
			client = http.DefaultClient
		}
		if cfg.Provider.Timeout > 0 {
			client = httpclient.WithTimeout(client, cfg.Provider.Timeout)
		}
		inner = NewMercadoPago(cfg.Provider.BaseURL, cfg.Provider.AccessToken, client)
	case NameStripe:
		inner = NewStripe(cfg.Stripe.SecretKey, nil)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider.Name)
	}

	return NewBreaker(inner, &BreakerConfig{
		ConsecutiveFailures: cfg.Provider.BreakerFailures,
		Timeout:             cfg.Provider.BreakerTimeout,
	}, logger), nil
}
