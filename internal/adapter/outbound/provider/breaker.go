package provider

import (
	"context"
	"time"

	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig contains circuit breaker configuration.
type BreakerConfig struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
	}
}

// Breaker guards a provider with a circuit breaker. While open, lookups
// fail fast with gobreaker.ErrOpenState.
type Breaker struct {
	inner outbound.PaymentProviderPort
	cb    *gobreaker.CircuitBreaker[*outbound.ProviderPayment]
}

// NewBreaker wraps inner in a circuit breaker.
func NewBreaker(inner outbound.PaymentProviderPort, cfg *BreakerConfig, logger *zap.Logger) *Breaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = DefaultBreakerConfig().ConsecutiveFailures
	}

	log := logger.Named("provider_breaker")
	cb := gobreaker.NewCircuitBreaker[*outbound.ProviderPayment](gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("provider circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Breaker{inner: inner, cb: cb}
}

// Name returns the wrapped provider's name.
func (b *Breaker) Name() string {
	return b.inner.Name()
}

// GetPayment fetches through the breaker.
func (b *Breaker) GetPayment(ctx context.Context, id string) (*outbound.ProviderPayment, error) {
	return b.cb.Execute(func() (*outbound.ProviderPayment, error) {
		return b.inner.GetPayment(ctx, id)
	})
}

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

var _ outbound.PaymentProviderPort = (*Breaker)(nil)
