// Package tracking reports paid orders to the ads conversion pipeline.
package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/digicheckout/server/internal/domain/settlement"
	"github.com/digicheckout/server/internal/infra/events"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Dispatcher sends purchases to the tracking collaborator in the background
// after an order is paid.
type Dispatcher struct {
	tracker outbound.TrackingPort
	orderDB outbound.OrderDatabasePort
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a new tracking dispatcher.
func NewDispatcher(tracker outbound.TrackingPort, orderDB outbound.OrderDatabasePort, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		tracker: tracker,
		orderDB: orderDB,
		timeout: timeout,
		logger:  logger.Named("tracking"),
	}
}

// Handles returns the event types this handler processes.
func (d *Dispatcher) Handles() []string {
	return []string{settlement.EventOrderSettled}
}

// Handle starts the tracking dispatch for paid orders and returns at once.
func (d *Dispatcher) Handle(ctx context.Context, e events.Event) error {
	evt, ok := e.(*settlement.OrderSettledEvent)
	if !ok || !evt.Paid() {
		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Detached from the request; bounded by its own timeout.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.track(ctx, evt); err != nil {
			d.logger.Error("purchase tracking failed",
				zap.String("order_id", evt.OrderID.String()),
				zap.Error(err))
		}
	}()
	return nil
}

func (d *Dispatcher) track(ctx context.Context, evt *settlement.OrderSettledEvent) error {
	o, err := d.orderDB.FindByIDWithRelations(ctx, evt.OrderID)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("order %s not found", evt.OrderID)
	}

	purchase := NewPurchase(o, evt.PaidAt())
	if err := d.tracker.TrackPurchase(ctx, purchase); err != nil {
		return err
	}
	d.logger.Debug("purchase tracked", zap.String("order_id", o.ID.String()))
	return nil
}

// Wait blocks until running dispatches finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewPurchase maps a paid order to the tracked purchase.
func NewPurchase(o *model.Order, paidAt time.Time) *outbound.Purchase {
	p := &outbound.Purchase{
		OrderID:    o.ID,
		CheckoutID: o.CheckoutID,
		Value:      o.TotalAmount,
		Currency:   o.Currency,
		PaidAt:     paidAt,
	}
	if o.PaidAmount > 0 {
		p.Value = o.PaidAmount
	}
	if o.Payment != nil {
		p.PaymentID = o.Payment.ProviderPaymentID
		p.PaymentMethod = o.Payment.Method
	}
	if o.Customer != nil {
		p.CustomerName = o.Customer.Name
		p.CustomerEmail = o.Customer.Email
		p.CustomerPhone = o.Customer.Phone
	}
	p.ProductIDs = make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		p.ProductIDs = append(p.ProductIDs, item.ProductID)
	}
	return p
}

var _ events.Handler = (*Dispatcher)(nil)
