// Package platform defines the contracts this pipeline consumes from
// the two external trading systems. Authentication, signing and retry
// live in the adapters, not here.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrOrderNotInProgress is raised by ReleaseAssets when the order is
// no longer releasable, typically because a prior attempt (or the
// platform itself) already released it. Callers treat it as success.
var ErrOrderNotInProgress = errors.New("platform: order not in progress")

// PayoutPlatform approves matched payouts.
type PayoutPlatform interface {
	// ApprovePayout confirms the payout against the receipt PDF.
	ApprovePayout(ctx context.Context, payoutID string, proofPDF []byte) error
}

// Order is the remote view of a trading-platform order.
type Order struct {
	OrderID    string
	AccountID  string
	Status     string
	Amount     int64
	Price      float64
	CardNumber string // counterparty card, when the platform exposes it
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TradingPlatform releases assets and carries the non-settlement
// conveniences (chat, ads) the pipeline touches.
type TradingPlatform interface {
	// ReleaseAssets releases the crypto for an order. Returns
	// ErrOrderNotInProgress when the order is already released.
	ReleaseAssets(ctx context.Context, orderID string) error
	// SendChatMessage posts a message into the order chat. Not
	// settlement-critical; failures are logged, never escalated.
	SendChatMessage(ctx context.Context, orderID, text string) error
	// DeleteAdvertisement removes an advertisement.
	DeleteAdvertisement(ctx context.Context, adID string) error
	// ListOrders fetches remote orders in the given statuses for an
	// account.
	ListOrders(ctx context.Context, accountID string, statuses []string) ([]Order, error)
}
