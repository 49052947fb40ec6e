// Package tracking implements purchase reporting to a conversions API relay.
package tracking

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/digicheckout/server/internal/port/outbound"
)

const maxErrorBody = 512

// CAPI posts purchase events to a conversions API relay.
type CAPI struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewCAPI creates a new conversions API client.
func NewCAPI(endpoint, token string, client *http.Client) *CAPI {
	if client == nil {
		client = http.DefaultClient
	}
	return &CAPI{endpoint: endpoint, token: token, client: client}
}

type capiEvent struct {
	EventName    string         `json:"event_name"`
	EventTime    int64          `json:"event_time"`
	EventID      string         `json:"event_id"`
	ActionSource string         `json:"action_source"`
	UserData     capiUserData   `json:"user_data"`
	CustomData   capiCustomData `json:"custom_data"`
}

type capiUserData struct {
	Email      []string `json:"em,omitempty"`
	Phone      []string `json:"ph,omitempty"`
	FirstName  []string `json:"fn,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
}

type capiCustomData struct {
	Value       float64  `json:"value"`
	Currency    string   `json:"currency"`
	OrderID     string   `json:"order_id"`
	ContentIDs  []string `json:"content_ids"`
	ContentType string   `json:"content_type"`
	PaymentID   string   `json:"payment_id,omitempty"`
	Method      string   `json:"payment_method,omitempty"`
}

type capiRequest struct {
	Data []capiEvent `json:"data"`
}

// TrackPurchase posts one Purchase event. Non-2xx answers are errors.
func (c *CAPI) TrackPurchase(ctx context.Context, purchase *outbound.Purchase) error {
	body, err := json.Marshal(capiRequest{Data: []capiEvent{newCAPIEvent(purchase)}})
	if err != nil {
		return fmt.Errorf("encode purchase: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post purchase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("post purchase: status %d: %s", resp.StatusCode, msg)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func newCAPIEvent(p *outbound.Purchase) capiEvent {
	contentIDs := make([]string, 0, len(p.ProductIDs))
	for _, id := range p.ProductIDs {
		contentIDs = append(contentIDs, id.String())
	}

	user := capiUserData{ExternalID: hashPII(p.CheckoutID.String())}
	if p.CustomerEmail != "" {
		user.Email = []string{hashPII(p.CustomerEmail)}
	}
	if phone := digits(p.CustomerPhone); phone != "" {
		user.Phone = []string{hashPII(phone)}
	}
	if first, _, _ := strings.Cut(strings.TrimSpace(p.CustomerName), " "); first != "" {
		user.FirstName = []string{hashPII(first)}
	}

	return capiEvent{
		EventName:    "Purchase",
		EventTime:    p.PaidAt.Unix(),
		EventID:      p.OrderID.String(),
		ActionSource: "website",
		UserData:     user,
		CustomData: capiCustomData{
			Value:       float64(p.Value) / 100,
			Currency:    p.Currency,
			OrderID:     p.OrderID.String(),
			ContentIDs:  contentIDs,
			ContentType: "product",
			PaymentID:   p.PaymentID,
			Method:      p.PaymentMethod,
		},
	}
}

// hashPII normalizes and SHA-256 hashes a customer identifier.
func hashPII(v string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(v))))
	return hex.EncodeToString(sum[:])
}

func digits(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var _ outbound.TrackingPort = (*CAPI)(nil)
