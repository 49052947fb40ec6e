package order

import "errors"

// Domain errors for order.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotDraft      = errors.New("order is not a draft")
	ErrOrderStateChanged  = errors.New("order status changed concurrently")
	ErrInvalidPaymentData = errors.New("invalid payment data")
)

// Note: ErrInvalidTransition is defined in status.go
