package payout

import "context"

// Repository reads and advances payouts.
type Repository interface {
	// FindByID returns the payout, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Payout, error)
	// FindByTransactionID returns the payout linked to a transaction,
	// or ErrNotFound.
	FindByTransactionID(ctx context.Context, transactionID string) (*Payout, error)
	// ListAwaitingMatch returns payouts in StatusAwaitingMatch ordered
	// oldest first. Candidate order is the matcher's tie-break.
	ListAwaitingMatch(ctx context.Context) ([]*Payout, error)
	// UpdateStatus advances the payout lifecycle.
	UpdateStatus(ctx context.Context, id string, status int) error
}
