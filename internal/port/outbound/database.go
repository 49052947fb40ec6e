package outbound

import "context"

// TransactionPort runs work inside a database transaction.
// The transaction travels in the context handed to fn; adapters called with
// that context join it.
type TransactionPort interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
