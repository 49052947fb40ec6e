package payment

import "errors"

var (
	// ErrMalformedNotification is returned for a body that is not a provider
	// notification.
	ErrMalformedNotification = errors.New("malformed payment notification")

	// ErrInvalidSignature is returned when the notification signature is
	// missing or does not match.
	ErrInvalidSignature = errors.New("invalid notification signature")

	// ErrProviderUnavailable is returned when the provider could not be asked
	// for the payment. The provider's own retry re-runs the flow.
	ErrProviderUnavailable = errors.New("payment provider unavailable")

	// ErrPaymentNotFound is returned when no local payment matches the
	// provider payment.
	ErrPaymentNotFound = errors.New("payment not found")
)
