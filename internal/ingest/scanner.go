// Package ingest polls mailboxes for bank-notification emails, stores
// their PDF attachments, parses them into receipts and hands new
// receipts to the matcher.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"otc-settlement/internal/blobstore"
	"otc-settlement/internal/mailbox"
	"otc-settlement/internal/matching"
	"otc-settlement/internal/observability/metrics"
	receipt "otc-settlement/internal/receipt/domain"
	"otc-settlement/internal/receipt/parser"
)

// DefaultLookback bounds the mailbox search window. Anything older has
// either been ingested already or is operationally stale.
const DefaultLookback = 24 * time.Hour

// DefaultMaxPerCycle caps how many messages one account contributes to
// a single cycle; a backlog drains over several cycles instead of
// flooding one.
const DefaultMaxPerCycle = 50

// Matcher attempts to link a receipt to a payout.
type Matcher interface {
	TryMatch(ctx context.Context, rec *receipt.Receipt) (matching.Result, error)
}

// MatchNotifier is told about every committed match so settlement can
// proceed.
type MatchNotifier interface {
	HandleMatch(ctx context.Context, receiptID, payoutID string) error
}

// ScanSummary reports one scan cycle.
type ScanSummary struct {
	MessagesSeen  int
	NewReceipts   int
	ParseFailures int
	Matched       int
	Rematched     int
	Skipped       int
	Errors        int
	// AlreadyRunning is set when the cycle was dropped because a
	// previous scan still holds the flag.
	AlreadyRunning bool
}

// Scanner drives one ingestion cycle across all configured accounts.
type Scanner struct {
	mail        mailbox.Mailbox
	accounts    []string
	sender      string
	lookback    time.Duration
	maxPerCycle int
	receipts    receipt.Repository
	blobs       blobstore.Store
	extractor   TextExtractor
	parser      *parser.Parser
	matcher     Matcher
	notifier    MatchNotifier
	logger      *log.Logger
	clock       func() time.Time
	newID       func() string

	scanning atomic.Bool
}

// ScannerOption configures the scanner.
type ScannerOption func(*Scanner)

// WithLookback overrides the mailbox search window.
func WithLookback(window time.Duration) ScannerOption {
	return func(s *Scanner) {
		if window > 0 {
			s.lookback = window
		}
	}
}

// WithMaxPerCycle overrides the per-account message cap per cycle.
func WithMaxPerCycle(limit int) ScannerOption {
	return func(s *Scanner) {
		if limit > 0 {
			s.maxPerCycle = limit
		}
	}
}

// WithScannerClock overrides the time source.
func WithScannerClock(clock func() time.Time) ScannerOption {
	return func(s *Scanner) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides receipt id generation.
func WithIDGenerator(newID func() string) ScannerOption {
	return func(s *Scanner) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewScanner constructs an ingestion scanner.
func NewScanner(
	mail mailbox.Mailbox,
	accounts []string,
	sender string,
	receipts receipt.Repository,
	blobs blobstore.Store,
	extractor TextExtractor,
	p *parser.Parser,
	matcher Matcher,
	notifier MatchNotifier,
	logger *log.Logger,
	opts ...ScannerOption,
) (*Scanner, error) {
	if mail == nil {
		return nil, errors.New("ingest: nil mailbox")
	}
	if len(accounts) == 0 {
		return nil, errors.New("ingest: no accounts configured")
	}
	if receipts == nil || blobs == nil || extractor == nil || p == nil {
		return nil, errors.New("ingest: nil dependency")
	}
	if matcher == nil {
		return nil, errors.New("ingest: nil matcher")
	}
	scanner := &Scanner{
		mail:        mail,
		accounts:    accounts,
		sender:      sender,
		lookback:    DefaultLookback,
		maxPerCycle: DefaultMaxPerCycle,
		receipts:    receipts,
		blobs:       blobs,
		extractor:   extractor,
		parser:      p,
		matcher:     matcher,
		notifier:    notifier,
		logger:      logger,
		clock:       time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(scanner)
	}
	return scanner, nil
}

// Scan runs one cycle. At most one scan runs at a time; an overlapping
// call returns immediately with AlreadyRunning set. A failing message
// never aborts the cycle.
func (s *Scanner) Scan(ctx context.Context) (ScanSummary, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return ScanSummary{AlreadyRunning: true}, nil
	}
	defer s.scanning.Store(false)

	start := s.clock()
	var summary ScanSummary

	query := mailbox.Query{
		From:          s.sender,
		After:         start.Add(-s.lookback),
		HasAttachment: true,
		MaxResults:    s.maxPerCycle,
	}
	for _, account := range s.accounts {
		refs, err := s.mail.SearchMessages(ctx, account, query)
		if err != nil {
			summary.Errors++
			s.logf("mailbox search failed: account=%s err=%v", account, err)
			continue
		}
		for _, ref := range refs {
			summary.MessagesSeen++
			if err := s.processMessage(ctx, account, ref.ID, &summary); err != nil {
				summary.Errors++
				s.logf("message processing failed: account=%s message=%s err=%v", account, ref.ID, err)
			}
		}
	}

	result := metrics.ResultSuccess
	if summary.Errors > 0 {
		result = metrics.ResultError
	}
	metrics.ObserveScan(result, s.clock().Sub(start))
	return summary, nil
}

// processMessage handles one email end to end. The email id is the
// idempotency key: a known email is never re-ingested, but a known
// unmatched receipt gets another match attempt against the current
// payout queue.
func (s *Scanner) processMessage(ctx context.Context, account, messageID string, summary *ScanSummary) error {
	existing, err := s.receipts.FindByEmailID(ctx, messageID)
	switch {
	case err == nil:
		if existing.Matchable() {
			matched, err := s.match(ctx, existing)
			if err != nil {
				return err
			}
			if matched {
				summary.Rematched++
			}
		} else {
			summary.Skipped++
		}
		return nil
	case errors.Is(err, receipt.ErrNotFound):
		// new email, fall through
	default:
		return fmt.Errorf("ingest: lookup email: %w", err)
	}

	pdf, ok, err := s.firstPDF(ctx, account, messageID)
	if err != nil {
		return err
	}
	if !ok {
		summary.Skipped++
		s.logf("no pdf attachment: account=%s message=%s", account, messageID)
		return nil
	}

	hash, path, err := s.blobs.Put(ctx, pdf)
	if err != nil {
		return fmt.Errorf("ingest: store blob: %w", err)
	}

	rec, parseReason := s.buildReceipt(ctx, messageID, hash, path, pdf)
	if err := s.receipts.Create(ctx, rec); err != nil {
		if errors.Is(err, receipt.ErrDuplicateEmail) {
			// raced with a concurrent instance; the email is recorded
			summary.Skipped++
			return nil
		}
		return fmt.Errorf("ingest: persist receipt: %w", err)
	}
	summary.NewReceipts++
	metrics.IncReceiptIngested(string(rec.Status))
	if parseReason != "" {
		summary.ParseFailures++
		metrics.IncParseFailure(parseReason)
		return nil
	}

	matched, err := s.match(ctx, rec)
	if err != nil {
		return err
	}
	if matched {
		summary.Matched++
	}
	return nil
}

// firstPDF returns the first PDF attachment of the message.
func (s *Scanner) firstPDF(ctx context.Context, account, messageID string) ([]byte, bool, error) {
	attachments, err := s.mail.GetAttachments(ctx, account, messageID)
	if err != nil {
		return nil, false, fmt.Errorf("ingest: fetch attachments: %w", err)
	}
	for _, att := range attachments {
		if att.IsPDF() && len(att.Data) > 0 {
			return att.Data, true, nil
		}
	}
	return nil, false, nil
}

// buildReceipt extracts, parses and projects the attachment. Failures
// still yield a persistable FAILED record; the returned reason is empty
// on success.
func (s *Scanner) buildReceipt(ctx context.Context, emailID, hash, path string, pdf []byte) (*receipt.Receipt, string) {
	id := s.newID()
	now := s.clock()

	text, err := s.extractor.Extract(ctx, pdf)
	if err != nil {
		s.logf("text extraction failed: email=%s err=%v", emailID, err)
		failure := receipt.NewParseError(receipt.ReasonExtractionFailed)
		return receipt.FromFailedParse(id, emailID, hash, path, failure, now), string(failure.Reason)
	}

	parsed, err := s.parser.Parse(text)
	if err != nil {
		parseErr, ok := receipt.AsParseError(err)
		if !ok {
			parseErr = receipt.NewParseError(receipt.ReasonUnknownTransferType)
		}
		return receipt.FromFailedParse(id, emailID, hash, path, parseErr, now), string(parseErr.Reason)
	}
	return receipt.FromParsed(id, emailID, hash, path, parsed, now), ""
}

// match runs one match attempt and, on success, notifies settlement.
func (s *Scanner) match(ctx context.Context, rec *receipt.Receipt) (bool, error) {
	result, err := s.matcher.TryMatch(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("ingest: match: %w", err)
	}
	if !result.Matched {
		return false, nil
	}
	if s.notifier != nil {
		if err := s.notifier.HandleMatch(ctx, rec.ID, result.PayoutID); err != nil {
			s.logf("settlement handoff failed: receipt=%s payout=%s err=%v", rec.ID, result.PayoutID, err)
		}
	}
	return true, nil
}

func (s *Scanner) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
