// Package settlement closes the loop after a receipt matches: it
// approves the payout with the stored PDF as proof and, once the grace
// period has passed, releases the crypto asset on the trading
// platform.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"otc-settlement/internal/blobstore"
	"otc-settlement/internal/observability/metrics"
	payout "otc-settlement/internal/payout/domain"
	"otc-settlement/internal/platform"
	receipt "otc-settlement/internal/receipt/domain"
	transaction "otc-settlement/internal/transaction/domain"
)

const (
	// DefaultGracePeriod is the mandatory delay between approval and
	// asset release.
	DefaultGracePeriod = 2 * time.Minute
	// DefaultCallTimeout bounds every external platform call. The
	// upstream APIs have no deadline of their own; without this a hung
	// call would stall the loop indefinitely.
	DefaultCallTimeout = 15 * time.Second
)

// Orchestrator drives approval and timed release.
type Orchestrator struct {
	receipts     receipt.Repository
	payouts      payout.Repository
	transactions transaction.Repository
	payoutAPI    platform.PayoutPlatform
	trading      platform.TradingPlatform
	blobs        blobstore.Store

	grace       time.Duration
	callTimeout time.Duration
	chatText    string

	inflight *inflightSet
	logger   *log.Logger
	clock    func() time.Time
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithGracePeriod overrides the release grace period.
func WithGracePeriod(grace time.Duration) Option {
	return func(o *Orchestrator) {
		if grace > 0 {
			o.grace = grace
		}
	}
}

// WithCallTimeout overrides the per-call deadline for platform calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.callTimeout = timeout
		}
	}
}

// WithChatText sets the post-match message sent into the order chat.
func WithChatText(text string) Option {
	return func(o *Orchestrator) {
		o.chatText = text
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewOrchestrator constructs the settlement orchestrator.
func NewOrchestrator(
	receipts receipt.Repository,
	payouts payout.Repository,
	transactions transaction.Repository,
	payoutAPI platform.PayoutPlatform,
	trading platform.TradingPlatform,
	blobs blobstore.Store,
	logger *log.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if receipts == nil || payouts == nil || transactions == nil {
		return nil, errors.New("settlement: nil repository")
	}
	if payoutAPI == nil || trading == nil {
		return nil, errors.New("settlement: nil platform client")
	}
	if blobs == nil {
		return nil, errors.New("settlement: nil blob store")
	}
	orch := &Orchestrator{
		receipts:     receipts,
		payouts:      payouts,
		transactions: transactions,
		payoutAPI:    payoutAPI,
		trading:      trading,
		blobs:        blobs,
		grace:        DefaultGracePeriod,
		callTimeout:  DefaultCallTimeout,
		inflight:     newInflightSet(),
		logger:       logger,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch, nil
}

// HandleMatch runs right after a match commit: approve the payout with
// the stored PDF as proof and queue the transaction for timed release.
// Approval failure leaves the transaction in receipt_received for a
// later retry; it is never escalated to failed.
func (o *Orchestrator) HandleMatch(ctx context.Context, receiptID, payoutID string) error {
	rec, err := o.receipts.FindByID(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("settlement: load receipt: %w", err)
	}
	proof, err := o.blobs.Get(ctx, rec.FileHash)
	if err != nil {
		return fmt.Errorf("settlement: load proof pdf: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	err = o.payoutAPI.ApprovePayout(callCtx, payoutID, proof)
	cancel()
	if err != nil {
		metrics.IncApproval(metrics.ResultError)
		o.logf("payout approval failed: payout=%s err=%v", payoutID, err)
		return nil
	}
	metrics.IncApproval(metrics.ResultSuccess)

	if err := o.payouts.UpdateStatus(ctx, payoutID, payout.StatusApproved); err != nil {
		o.logf("payout status update failed: payout=%s err=%v", payoutID, err)
	}

	p, err := o.payouts.FindByID(ctx, payoutID)
	if err != nil {
		return fmt.Errorf("settlement: load payout: %w", err)
	}
	if p.TransactionID == "" {
		return nil
	}
	tx, err := o.transactions.FindByID(ctx, p.TransactionID)
	if err != nil {
		return fmt.Errorf("settlement: load transaction: %w", err)
	}
	if err := tx.MarkApproved(o.clock()); err != nil {
		return err
	}
	if err := o.transactions.Save(ctx, tx); err != nil {
		return err
	}

	o.notifyChat(ctx, tx.OrderID)
	return nil
}

// RetryApprovals re-runs the approval step for matched transactions
// still in receipt_received, the state a failed approval leaves
// behind. Transactions without a linked payout or receipt are someone
// else's problem (the monitor has not seen a match yet) and are left
// alone.
func (o *Orchestrator) RetryApprovals(ctx context.Context) error {
	pending, err := o.transactions.ListByStatus(ctx, transaction.StatusReceiptReceived)
	if err != nil {
		return err
	}
	for _, tx := range pending {
		if !o.inflight.tryAcquire(tx.ID) {
			continue
		}
		o.retryApproval(ctx, tx)
		o.inflight.release(tx.ID)
	}
	return nil
}

func (o *Orchestrator) retryApproval(ctx context.Context, tx *transaction.Transaction) {
	p, err := o.payouts.FindByTransactionID(ctx, tx.ID)
	if err != nil {
		if !errors.Is(err, payout.ErrNotFound) {
			o.logf("approval retry: payout lookup failed: tx=%s err=%v", tx.ID, err)
		}
		return
	}
	rec, err := o.receipts.FindByPayoutID(ctx, p.ID)
	if err != nil {
		if !errors.Is(err, receipt.ErrNotFound) {
			o.logf("approval retry: receipt lookup failed: payout=%s err=%v", p.ID, err)
		}
		return
	}
	if err := o.HandleMatch(ctx, rec.ID, p.ID); err != nil {
		o.logf("approval retry failed: tx=%s err=%v", tx.ID, err)
	}
}

// notifyChat posts the courtesy message after a match. Best effort.
func (o *Orchestrator) notifyChat(ctx context.Context, orderID string) {
	if o.chatText == "" || orderID == "" {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	if err := o.trading.SendChatMessage(callCtx, orderID, o.chatText); err != nil {
		o.logf("chat message failed: order=%s err=%v", orderID, err)
	}
}

// ReleaseDue scans release_money transactions and releases those whose
// grace period has elapsed.
func (o *Orchestrator) ReleaseDue(ctx context.Context) error {
	due, err := o.transactions.ListReleasable(ctx)
	if err != nil {
		return err
	}
	for _, tx := range due {
		o.processRelease(ctx, tx)
	}
	return nil
}

// processRelease attempts one release. The single-flight claim is held
// for the whole attempt and freed regardless of outcome.
func (o *Orchestrator) processRelease(ctx context.Context, tx *transaction.Transaction) {
	if !o.inflight.tryAcquire(tx.ID) {
		return
	}
	defer o.inflight.release(tx.ID)

	now := o.clock()
	if !tx.ReleaseDue(now, o.grace) {
		metrics.ObserveRelease(metrics.ReleaseSkipped, 0)
		return
	}

	start := now
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	err := o.trading.ReleaseAssets(callCtx, tx.OrderID)
	cancel()
	elapsed := o.clock().Sub(start)

	switch {
	case err == nil:
		o.complete(ctx, tx, metrics.ReleaseReleased, elapsed)
	case errors.Is(err, platform.ErrOrderNotInProgress):
		// already released by a prior attempt or externally
		o.complete(ctx, tx, metrics.ReleaseAlready, elapsed)
	default:
		metrics.ObserveRelease(metrics.ReleaseFailed, elapsed)
		o.fail(ctx, tx, err)
	}
}

func (o *Orchestrator) complete(ctx context.Context, tx *transaction.Transaction, result string, elapsed time.Duration) {
	metrics.ObserveRelease(result, elapsed)
	if err := tx.MarkCompleted(o.clock()); err != nil {
		o.logf("complete transition failed: tx=%s err=%v", tx.ID, err)
		return
	}
	if err := o.transactions.Save(ctx, tx); err != nil {
		o.logf("complete save failed: tx=%s err=%v", tx.ID, err)
		return
	}
	o.logf("assets released: tx=%s order=%s result=%s", tx.ID, tx.OrderID, result)
}

// fail records the terminal failure. No automatic retry: an operator
// has to look at it.
func (o *Orchestrator) fail(ctx context.Context, tx *transaction.Transaction, cause error) {
	if err := tx.MarkFailed(o.clock(), cause.Error()); err != nil {
		o.logf("fail transition failed: tx=%s err=%v", tx.ID, err)
		return
	}
	if err := o.transactions.Save(ctx, tx); err != nil {
		o.logf("fail save failed: tx=%s err=%v", tx.ID, err)
		return
	}
	o.logf("release failed: tx=%s order=%s err=%v", tx.ID, tx.OrderID, cause)
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
