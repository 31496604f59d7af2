// Package payout holds the pending fiat transfer requests this
// pipeline settles against. Payouts are created and mostly advanced by
// the payout platform; the matcher only reads them and the approval
// step moves them forward.
package payout

import (
	"errors"
	"time"
)

// Status codes mirror the payout platform's numeric lifecycle.
const (
	StatusCreated       = 1
	StatusAssigned      = 3
	StatusAwaitingMatch = 5 // pending settlement match; the only status the matcher considers
	StatusApproved      = 6
	StatusCancelled     = 9
)

// RUB is the numeric currency code keying AmountTrader for rubles.
const RUB = "643"

// Payout is a pending fiat transfer awaiting confirmation of funds.
type Payout struct {
	ID            string
	Status        int
	Wallet        string // phone-number identity for by-phone transfers
	RecipientCard string // card identity for card transfers
	HolderName    string // cardholder name, when the platform provides it
	AmountTrader  map[string]int64
	Amount        int64
	CreatedAt     time.Time
	TransactionID string
}

// AmountFor returns the payout amount in the given currency, falling
// back to the flat Amount when no per-currency map is present.
func (p *Payout) AmountFor(currency string) int64 {
	if p == nil {
		return 0
	}
	if p.AmountTrader != nil {
		if amount, ok := p.AmountTrader[currency]; ok {
			return amount
		}
	}
	return p.Amount
}

var (
	// ErrNotFound is returned when no payout matches the lookup.
	ErrNotFound = errors.New("payout: not found")
	// ErrNilPayout guards repository calls.
	ErrNilPayout = errors.New("payout: nil payout")
)
