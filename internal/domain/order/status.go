package order

import (
	"errors"
	"fmt"

	"github.com/digicheckout/server/internal/model"
)

// ErrInvalidTransition is returned when a state transition is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidateTransition checks the edge from -> to against the order state machine.
func ValidateTransition(from, to model.OrderStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return fmt.Errorf("%w: unknown status %s -> %s", ErrInvalidTransition, from, to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s (allowed: %v)", ErrInvalidTransition, from, to, from.AllowedTransitions())
	}
	return nil
}
