// Package transaction models the trade lifecycle this pipeline drives.
// Upstream states (ad taken, payment sent) are owned by the trading
// layer; this core only moves receipt_received through to a terminal
// state.
package transaction

import (
	"errors"
	"fmt"
	"time"
)

// Status is the transaction lifecycle state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPaymentReceived Status = "payment_received"
	StatusReceiptReceived Status = "receipt_received"
	StatusReleaseMoney    Status = "release_money"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Transaction ties a trading-platform order to a payout and its
// settlement progress.
type Transaction struct {
	ID        string
	OrderID   string
	AccountID string
	Status    Status

	Amount     int64
	Price      float64
	CardNumber string // counterparty card, used by the card matching path

	ApprovedAt        *time.Time
	ReceiptReceivedAt *time.Time
	CompletedAt       *time.Time
	FailureReason     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrNotFound is returned when no transaction matches the lookup.
	ErrNotFound = errors.New("transaction: not found")
	// ErrNilTransaction guards repository calls.
	ErrNilTransaction = errors.New("transaction: nil transaction")
)

// InvalidTransitionError reports a forbidden state change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transaction: invalid transition %s -> %s", e.From, e.To)
}

// MarkReceiptReceived records a committed receipt match.
func (t *Transaction) MarkReceiptReceived(now time.Time) error {
	if t.Status == StatusCompleted || t.Status == StatusFailed {
		return &InvalidTransitionError{From: t.Status, To: StatusReceiptReceived}
	}
	t.Status = StatusReceiptReceived
	t.ReceiptReceivedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkApproved records a successful payout approval; the transaction
// now waits out the grace period before release.
func (t *Transaction) MarkApproved(now time.Time) error {
	if t.Status != StatusReceiptReceived {
		return &InvalidTransitionError{From: t.Status, To: StatusReleaseMoney}
	}
	t.Status = StatusReleaseMoney
	t.ApprovedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkCompleted records a successful (or idempotently repeated) release.
func (t *Transaction) MarkCompleted(now time.Time) error {
	if t.Status != StatusReleaseMoney {
		return &InvalidTransitionError{From: t.Status, To: StatusCompleted}
	}
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkFailed records a release failure; no automatic retry follows.
func (t *Transaction) MarkFailed(now time.Time, reason string) error {
	if t.Status == StatusCompleted {
		return &InvalidTransitionError{From: t.Status, To: StatusFailed}
	}
	t.Status = StatusFailed
	t.FailureReason = reason
	t.UpdatedAt = now
	return nil
}

// ReleaseTrigger returns the timestamp the grace period counts from.
// Approval time is canonical; a transaction without it is not
// releasable.
func (t *Transaction) ReleaseTrigger() (time.Time, bool) {
	if t == nil || t.ApprovedAt == nil {
		return time.Time{}, false
	}
	return *t.ApprovedAt, true
}

// ReleaseDue reports whether the grace period has elapsed.
func (t *Transaction) ReleaseDue(now time.Time, grace time.Duration) bool {
	trigger, ok := t.ReleaseTrigger()
	if !ok {
		return false
	}
	return now.Sub(trigger) >= grace
}
