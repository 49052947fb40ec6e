package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/digicheckout/server/internal/model"
)

// Build maps an order with its relations onto the resource of name, validates
// it and wraps it in an envelope. It performs no I/O.
func Build(name Name, order *model.Order) (*Envelope, error) {
	if order == nil {
		return nil, fmt.Errorf("%w: %s: nil order", ErrSchemaViolation, name)
	}

	resource, err := NewResource(name, order)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	if err := Validate(name, data); err != nil {
		return nil, err
	}

	return &Envelope{
		Event:     name,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResource returns the unvalidated resource of name for order.
func NewResource(name Name, order *model.Order) (Resource, error) {
	switch name {
	case OrderCreated:
		return newOrderResource(order), nil
	case OrderPaid:
		if order.Payment == nil {
			return nil, &SchemaError{Event: name, Violations: []string{"order has no payment"}}
		}
		return newPaidOrderResource(order), nil
	case CartReminder:
		return newCartReminderResource(order), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}
