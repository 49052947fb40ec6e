package provider

import (
	"context"
	"fmt"

	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// NameStripe is the provider name of Stripe.
const NameStripe = "stripe"

// Stripe fetches payments as Stripe PaymentIntents.
type Stripe struct {
	intents paymentintent.Client
}

// NewStripe creates a new Stripe provider. A nil backend uses the default
// API backend.
func NewStripe(secretKey string, backend stripe.Backend) *Stripe {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &Stripe{
		intents: paymentintent.Client{B: backend, Key: secretKey},
	}
}

// Name returns the provider name.
func (p *Stripe) Name() string {
	return NameStripe
}

// GetPayment returns the PaymentIntent id as a provider payment.
func (p *Stripe) GetPayment(ctx context.Context, id string) (*outbound.ProviderPayment, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.intents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent %s: %w", id, err)
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	payment := &outbound.ProviderPayment{
		ID:     pi.ID,
		Status: mapStripeStatus(pi.Status),
		Amount: amount,
	}
	if len(pi.PaymentMethodTypes) > 0 {
		payment.Method = pi.PaymentMethodTypes[0]
	}
	if pi.LastResponse != nil {
		payment.Raw = pi.LastResponse.RawJSON
	}
	return payment, nil
}

func mapStripeStatus(status stripe.PaymentIntentStatus) model.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return model.PaymentStatusApproved
	case stripe.PaymentIntentStatusProcessing:
		return model.PaymentStatusInProcess
	case stripe.PaymentIntentStatusRequiresCapture:
		return model.PaymentStatusAuthorized
	case stripe.PaymentIntentStatusCanceled:
		return model.PaymentStatusCancelled
	}
	return model.PaymentStatusPending
}

var _ outbound.PaymentProviderPort = (*Stripe)(nil)
