// Package memory provides an in-memory transaction repository for
// tests and local runs without a database.
package memory

import (
	"context"
	"sync"

	transaction "otc-settlement/internal/transaction/domain"
)

// TransactionRepository is an in-memory transaction store.
type TransactionRepository struct {
	mu   sync.RWMutex
	data map[string]*transaction.Transaction
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{data: make(map[string]*transaction.Transaction)}
}

// FindByID returns the transaction by id.
func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.data[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}
	clone := *tx
	return &clone, nil
}

// FindByOrderID returns the transaction for an order id.
func (r *TransactionRepository) FindByOrderID(ctx context.Context, orderID string) (*transaction.Transaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tx := range r.data {
		if tx.OrderID == orderID {
			clone := *tx
			return &clone, nil
		}
	}
	return nil, transaction.ErrNotFound
}

// ListByStatus returns transactions in the given status.
func (r *TransactionRepository) ListByStatus(ctx context.Context, status transaction.Status) ([]*transaction.Transaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*transaction.Transaction
	for _, tx := range r.data {
		if tx.Status == status {
			clone := *tx
			result = append(result, &clone)
		}
	}
	return result, nil
}

// ListReleasable returns release_money transactions with an approval
// timestamp.
func (r *TransactionRepository) ListReleasable(ctx context.Context) ([]*transaction.Transaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*transaction.Transaction
	for _, tx := range r.data {
		if tx.Status == transaction.StatusReleaseMoney && tx.ApprovedAt != nil {
			clone := *tx
			result = append(result, &clone)
		}
	}
	return result, nil
}

// Save upserts the transaction.
func (r *TransactionRepository) Save(ctx context.Context, tx *transaction.Transaction) error {
	_ = ctx
	if tx == nil {
		return transaction.ErrNilTransaction
	}
	clone := *tx
	r.mu.Lock()
	r.data[tx.ID] = &clone
	r.mu.Unlock()
	return nil
}
