// Package memory provides an in-memory payout repository for tests
// and local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	payout "otc-settlement/internal/payout/domain"
)

// PayoutRepository is an in-memory payout store.
type PayoutRepository struct {
	mu   sync.RWMutex
	data map[string]*payout.Payout
}

// NewPayoutRepository constructs a repository.
func NewPayoutRepository() *PayoutRepository {
	return &PayoutRepository{data: make(map[string]*payout.Payout)}
}

// Put inserts or replaces a payout (test seeding helper).
func (r *PayoutRepository) Put(p *payout.Payout) {
	if p == nil {
		return
	}
	clone := *p
	r.mu.Lock()
	r.data[p.ID] = &clone
	r.mu.Unlock()
}

// FindByID returns the payout by id.
func (r *PayoutRepository) FindByID(ctx context.Context, id string) (*payout.Payout, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data[id]
	if !ok {
		return nil, payout.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

// FindByTransactionID returns the payout linked to a transaction.
func (r *PayoutRepository) FindByTransactionID(ctx context.Context, transactionID string) (*payout.Payout, error) {
	_ = ctx
	if transactionID == "" {
		return nil, payout.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.data {
		if p.TransactionID == transactionID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, payout.ErrNotFound
}

// ListAwaitingMatch returns awaiting-match payouts oldest first.
func (r *PayoutRepository) ListAwaitingMatch(ctx context.Context) ([]*payout.Payout, error) {
	_ = ctx
	r.mu.RLock()
	var result []*payout.Payout
	for _, p := range r.data {
		if p.Status == payout.StatusAwaitingMatch {
			clone := *p
			result = append(result, &clone)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateStatus advances the payout lifecycle.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, id string, status int) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return payout.ErrNotFound
	}
	p.Status = status
	return nil
}
