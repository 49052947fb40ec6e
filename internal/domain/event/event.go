// Package event builds the typed payloads delivered to webhook subscribers.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Name identifies an outbound event.
type Name string

// Outbound events.
const (
	OrderCreated Name = "order.created"
	OrderPaid    Name = "order.paid"
	CartReminder Name = "cart.reminder"
)

// String returns the event name.
func (n Name) String() string {
	return string(n)
}

// IsValid reports whether n is a known event.
func (n Name) IsValid() bool {
	switch n {
	case OrderCreated, OrderPaid, CartReminder:
		return true
	}
	return false
}

// Names returns every known event.
func Names() []Name {
	return []Name{OrderCreated, OrderPaid, CartReminder}
}

var (
	// ErrUnknownEvent is returned for an event name with no resource.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrSchemaViolation is returned when a built payload fails its schema.
	// It indicates a mapping bug and must not be retried.
	ErrSchemaViolation = errors.New("event payload violates schema")
)

// SchemaError lists the schema violations of a payload.
type SchemaError struct {
	Event      Name
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSchemaViolation, e.Event, strings.Join(e.Violations, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}

// Envelope is the wire format shared by all events. Data holds the
// event-specific resource.
type Envelope struct {
	Event     Name            `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Marshal encodes the envelope as sent to subscribers.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes a stored envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Event.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return &env, nil
}
