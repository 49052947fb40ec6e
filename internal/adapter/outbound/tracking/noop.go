package tracking

import (
	"context"

	"github.com/digicheckout/server/internal/port/outbound"
	"go.uber.org/zap"
)

// Noop drops purchases. Used when tracking is disabled.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new noop tracker.
func NewNoop(logger *zap.Logger) *Noop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Noop{logger: logger}
}

func (n *Noop) TrackPurchase(_ context.Context, purchase *outbound.Purchase) error {
	n.logger.Debug("tracking disabled, purchase dropped",
		zap.String("order_id", purchase.OrderID.String()))
	return nil
}

var _ outbound.TrackingPort = (*Noop)(nil)
