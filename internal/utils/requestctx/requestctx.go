// Package requestctx carries the inbound request ID through context.Context
// so logs written below the HTTP layer can be correlated.
package requestctx

import "context"

type requestIDKey struct{}

// WithRequestID returns ctx tagged with id. A nil ctx is treated as Background.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the ID set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
