// Package provider implements payment provider lookups.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
)

// NameMercadoPago is the provider name of Mercado Pago.
const NameMercadoPago = "mercadopago"

const maxErrorBody = 1024

// MercadoPago fetches payments from the Mercado Pago payments API.
type MercadoPago struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewMercadoPago creates a new Mercado Pago client.
func NewMercadoPago(baseURL, accessToken string, client *http.Client) *MercadoPago {
	if client == nil {
		client = http.DefaultClient
	}
	return &MercadoPago{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		client:      client,
	}
}

// Name returns the provider name.
func (p *MercadoPago) Name() string {
	return NameMercadoPago
}

type mpPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	TransactionAmount float64     `json:"transaction_amount"`
	DateApproved      *time.Time  `json:"date_approved"`
	PaymentMethodID   string      `json:"payment_method_id"`
	PaymentTypeID     string      `json:"payment_type_id"`
}

// GetPayment returns the provider's view of payment id.
func (p *MercadoPago) GetPayment(ctx context.Context, id string) (*outbound.ProviderPayment, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s", p.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read payment %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("get payment %s: status %d: %s", id, resp.StatusCode, body)
	}

	var payment mpPayment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, fmt.Errorf("decode payment %s: %w", id, err)
	}

	method := payment.PaymentMethodID
	if method == "" {
		method = payment.PaymentTypeID
	}
	return &outbound.ProviderPayment{
		ID:     payment.ID.String(),
		Status: mapMercadoPagoStatus(payment.Status),
		Amount: ToMinorUnits(payment.TransactionAmount),
		PaidAt: payment.DateApproved,
		Method: method,
		Raw:    body,
	}, nil
}

func mapMercadoPagoStatus(status string) model.PaymentStatus {
	switch status {
	case "in_mediation":
		return model.PaymentStatusInProcess
	case "":
		return model.PaymentStatusPending
	}
	return model.PaymentStatus(status)
}

// ToMinorUnits converts a decimal amount to cents.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

var _ outbound.PaymentProviderPort = (*MercadoPago)(nil)
