// Package matching links parsed receipts to pending payouts. The
// engine commits at most one match per receipt; candidate order is
// oldest payout first.
package matching

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"otc-settlement/internal/observability/metrics"
	payout "otc-settlement/internal/payout/domain"
	receipt "otc-settlement/internal/receipt/domain"
	transaction "otc-settlement/internal/transaction/domain"
)

// DefaultTolerance is the maximum amount discrepancy, in minor-unit-
// free rubles, between receipt and payout for a match to hold.
const DefaultTolerance int64 = 100

// nameSimilarityFloor is where holder-name similarity of a committed
// match is considered suspicious and logged for operator review.
const nameSimilarityFloor = 0.5

// Result reports the outcome of a match attempt.
type Result struct {
	Matched       bool
	PayoutID      string
	TransactionID string
}

// Engine scans awaiting-match payouts for a receipt's counterpart.
type Engine struct {
	receipts     receipt.Repository
	payouts      payout.Repository
	transactions transaction.Repository
	tolerance    int64
	currency     string
	logger       *log.Logger
	clock        func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithTolerance overrides the amount tolerance.
func WithTolerance(tolerance int64) Option {
	return func(e *Engine) {
		if tolerance >= 0 {
			e.tolerance = tolerance
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine constructs a matching engine.
func NewEngine(receipts receipt.Repository, payouts payout.Repository, transactions transaction.Repository, currency string, logger *log.Logger, opts ...Option) (*Engine, error) {
	if receipts == nil || payouts == nil || transactions == nil {
		return nil, errors.New("matching: nil repository")
	}
	if currency == "" {
		currency = payout.RUB
	}
	engine := &Engine{
		receipts:     receipts,
		payouts:      payouts,
		transactions: transactions,
		tolerance:    DefaultTolerance,
		currency:     currency,
		logger:       logger,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// TryMatch scans candidates for the receipt and commits the first one
// surviving all filters. No match is not an error; most cycles end
// unmatched.
func (e *Engine) TryMatch(ctx context.Context, rec *receipt.Receipt) (Result, error) {
	if rec == nil {
		return Result{}, receipt.ErrNilReceipt
	}
	if !rec.Matchable() {
		return Result{}, nil
	}

	candidates, err := e.payouts.ListAwaitingMatch(ctx)
	if err != nil {
		return Result{}, err
	}

	for _, candidate := range candidates {
		tx, err := e.transactionFor(ctx, candidate)
		if err != nil {
			return Result{}, err
		}
		if tx != nil && tx.ReceiptReceivedAt != nil {
			continue // already settled by a previous pass
		}
		if absDiff(candidate.AmountFor(e.currency), rec.Amount) > e.tolerance {
			continue
		}
		if !identityMatches(rec, candidate, tx) {
			continue
		}
		if rec.TransactionDate.Before(candidate.CreatedAt) {
			continue // receipt predates the payout request
		}

		if err := e.commit(ctx, rec, candidate, tx); err != nil {
			if errors.Is(err, receipt.ErrAlreadyLinked) {
				// Lost a race against another pass; the receipt is
				// spoken for, so stop scanning.
				return Result{}, nil
			}
			return Result{}, err
		}
		metrics.IncMatchAttempt("matched")
		return Result{Matched: true, PayoutID: candidate.ID, TransactionID: candidate.TransactionID}, nil
	}

	metrics.IncMatchAttempt("unmatched")
	return Result{}, nil
}

func (e *Engine) transactionFor(ctx context.Context, candidate *payout.Payout) (*transaction.Transaction, error) {
	if candidate.TransactionID == "" {
		return nil, nil
	}
	tx, err := e.transactions.FindByID(ctx, candidate.TransactionID)
	if err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return tx, nil
}

func (e *Engine) commit(ctx context.Context, rec *receipt.Receipt, candidate *payout.Payout, tx *transaction.Transaction) error {
	if err := e.receipts.LinkPayout(ctx, rec.ID, candidate.ID); err != nil {
		return err
	}
	rec.PayoutID = candidate.ID
	rec.IsProcessed = true

	if tx != nil {
		if err := tx.MarkReceiptReceived(e.clock()); err != nil {
			return err
		}
		if err := e.transactions.Save(ctx, tx); err != nil {
			return err
		}
	}

	if sim, ok := holderSimilarity(rec, candidate); ok && sim < nameSimilarityFloor && e.logger != nil {
		e.logger.Printf("match committed with low holder-name similarity: receipt=%s payout=%s similarity=%.2f", rec.ID, candidate.ID, sim)
	}
	return nil
}

// identityMatches applies the phone or card identity rule.
func identityMatches(rec *receipt.Receipt, candidate *payout.Payout, tx *transaction.Transaction) bool {
	if rec.TransferKind == receipt.TransferByPhone {
		return phonesMatch(rec.RecipientPhone, candidate.Wallet)
	}
	last4 := rec.RecipientCardLast4
	if last4 == "" {
		return false
	}
	if cardLast4(candidate.RecipientCard) == last4 {
		return true
	}
	return tx != nil && cardLast4(tx.CardNumber) == last4
}

// phonesMatch compares digit-only forms and accepts containment either
// way, tolerating leading country-code variance (8 vs +7).
func phonesMatch(receiptPhone, wallet string) bool {
	a := digitsOnly(receiptPhone)
	b := digitsOnly(wallet)
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	// 8XXXXXXXXXX and 7XXXXXXXXXX are the same number; compare the
	// ten-digit national tails.
	return len(a) >= 10 && len(b) >= 10 && a[len(a)-10:] == b[len(b)-10:]
}

func digitsOnly(value string) string {
	var builder strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

func cardLast4(card string) string {
	digits := digitsOnly(card)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}

// holderSimilarity scores how alike the receipt's recipient name and
// the payout's cardholder name are. Diagnostic only: the identity
// rules above decide the match.
func holderSimilarity(rec *receipt.Receipt, candidate *payout.Payout) (float64, bool) {
	if rec.RecipientName == "" || candidate.HolderName == "" {
		return 0, false
	}
	a := []rune(strings.ToLower(rec.RecipientName))
	b := []rune(strings.ToLower(candidate.HolderName))
	return levenshtein.RatioForStrings(a, b, levenshtein.DefaultOptions), true
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
