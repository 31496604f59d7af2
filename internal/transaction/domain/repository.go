package transaction

import "context"

// Repository persists transactions.
type Repository interface {
	// FindByID returns the transaction, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Transaction, error)
	// FindByOrderID returns the transaction for a trading-platform
	// order, or ErrNotFound.
	FindByOrderID(ctx context.Context, orderID string) (*Transaction, error)
	// ListByStatus returns transactions in the given status.
	ListByStatus(ctx context.Context, status Status) ([]*Transaction, error)
	// ListReleasable returns transactions in release_money with a
	// non-null approval timestamp.
	ListReleasable(ctx context.Context) ([]*Transaction, error)
	// Save upserts the transaction.
	Save(ctx context.Context, tx *Transaction) error
}
