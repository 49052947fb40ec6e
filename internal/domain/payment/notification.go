package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider actions that carry a payment change.
const (
	ActionPaymentCreated = "payment.created"
	ActionPaymentUpdated = "payment.updated"
)

// Notification is the provider's change notice. It carries no payment state;
// the state is fetched from the provider.
type Notification struct {
	Action string
	Type   string
	DataID string
}

type notificationBody struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseNotification decodes a notification body. data.id may be a string or
// a number.
func ParseNotification(body []byte) (*Notification, error) {
	var raw notificationBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	id, err := parseDataID(raw.Data.ID)
	if err != nil {
		return nil, err
	}
	return &Notification{
		Action: strings.TrimSpace(raw.Action),
		Type:   strings.TrimSpace(raw.Type),
		DataID: id,
	}, nil
}

func parseDataID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: data.id is required", ErrMalformedNotification)
	}

	var id string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("%w: data.id: %v", ErrMalformedNotification, err)
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("%w: data.id must be a string or number", ErrMalformedNotification)
		}
		id = n.String()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: data.id is required", ErrMalformedNotification)
	}
	return id, nil
}

// IsPaymentChange reports whether the notification can change a payment.
func (n *Notification) IsPaymentChange() bool {
	return n.Action == ActionPaymentCreated || n.Action == ActionPaymentUpdated
}
