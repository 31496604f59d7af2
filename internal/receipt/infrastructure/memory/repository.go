// Package memory provides in-memory repositories mirroring the
// postgres ones, for tests and local runs without a database.
package memory

import (
	"context"
	"sync"

	receipt "otc-settlement/internal/receipt/domain"
)

// ReceiptRepository is an in-memory receipt store keyed by email id.
type ReceiptRepository struct {
	mu      sync.RWMutex
	byID    map[string]*receipt.Receipt
	byEmail map[string]string
}

// NewReceiptRepository constructs a repository.
func NewReceiptRepository() *ReceiptRepository {
	return &ReceiptRepository{
		byID:    make(map[string]*receipt.Receipt),
		byEmail: make(map[string]string),
	}
}

// Create inserts a receipt; duplicate email ids are rejected.
func (r *ReceiptRepository) Create(ctx context.Context, rec *receipt.Receipt) error {
	_ = ctx
	if rec == nil {
		return receipt.ErrNilReceipt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[rec.EmailID]; exists {
		return receipt.ErrDuplicateEmail
	}
	clone := *rec
	r.byID[rec.ID] = &clone
	r.byEmail[rec.EmailID] = rec.ID
	return nil
}

// FindByEmailID returns the receipt for an email id.
func (r *ReceiptRepository) FindByEmailID(ctx context.Context, emailID string) (*receipt.Receipt, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailID]
	if !ok {
		return nil, receipt.ErrNotFound
	}
	clone := *r.byID[id]
	return &clone, nil
}

// FindByID returns the receipt by primary id.
func (r *ReceiptRepository) FindByID(ctx context.Context, id string) (*receipt.Receipt, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, receipt.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

// FindByPayoutID returns the receipt linked to a payout.
func (r *ReceiptRepository) FindByPayoutID(ctx context.Context, payoutID string) (*receipt.Receipt, error) {
	_ = ctx
	if payoutID == "" {
		return nil, receipt.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.byID {
		if rec.PayoutID == payoutID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, receipt.ErrNotFound
}

// LinkPayout sets the payout id once; a second link fails.
func (r *ReceiptRepository) LinkPayout(ctx context.Context, receiptID, payoutID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[receiptID]
	if !ok {
		return receipt.ErrNotFound
	}
	if rec.PayoutID != "" {
		return receipt.ErrAlreadyLinked
	}
	rec.PayoutID = payoutID
	rec.IsProcessed = true
	return nil
}

// ListUnmatched returns successful receipts without a linked payout.
func (r *ReceiptRepository) ListUnmatched(ctx context.Context) ([]*receipt.Receipt, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*receipt.Receipt
	for _, rec := range r.byID {
		if rec.Status == receipt.ReceiptSuccess && rec.PayoutID == "" {
			clone := *rec
			result = append(result, &clone)
		}
	}
	return result, nil
}
