package outbound

import "context"

// EventPublisherPort defines event publishing operations.
type EventPublisherPort interface {
	// Publish publishes a domain event to in-process handlers.
	Publish(ctx context.Context, event interface{}) error
}
