package receipt

import "context"

// Repository persists receipts. EmailID uniqueness and write-once
// PayoutID linking are enforced at this boundary.
type Repository interface {
	// Create inserts a new receipt. Returns ErrDuplicateEmail when a
	// record with the same EmailID already exists.
	Create(ctx context.Context, rec *Receipt) error
	// FindByEmailID returns the receipt for an email id, or ErrNotFound.
	FindByEmailID(ctx context.Context, emailID string) (*Receipt, error)
	// FindByID returns the receipt by primary id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Receipt, error)
	// FindByPayoutID returns the receipt linked to a payout, or
	// ErrNotFound.
	FindByPayoutID(ctx context.Context, payoutID string) (*Receipt, error)
	// LinkPayout sets PayoutID and marks the receipt processed. The link
	// is conditional on no payout being linked yet; a second attempt
	// returns ErrAlreadyLinked.
	LinkPayout(ctx context.Context, receiptID, payoutID string) error
	// ListUnmatched returns successful receipts without a linked payout.
	ListUnmatched(ctx context.Context) ([]*Receipt, error)
}
