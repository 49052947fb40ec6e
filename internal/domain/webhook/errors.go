package webhook

import "errors"

// Domain errors for webhook delivery.
var (
	ErrDeliveryFailed     = errors.New("webhook delivery failed")
	ErrWebhookNotFound    = errors.New("webhook not found")
	ErrWebhookInactive    = errors.New("webhook is inactive")
	ErrWebhookLogNotFound = errors.New("webhook log not found")
)
