// Package postgres implements the receipt repository over
// database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	receipt "otc-settlement/internal/receipt/domain"
)

// ReceiptRepository is a Postgres implementation of receipt.Repository.
type ReceiptRepository struct {
	db *sql.DB
}

// NewReceiptRepository constructs a repository.
func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

const receiptColumns = `
id, email_id, file_hash, file_path, amount, status, transfer_kind,
sender, recipient_phone, recipient_name, recipient_bank,
recipient_card_last4, recipient_card_masked, commission,
parse_fail_reason, transaction_date, payout_id, is_processed, created_at`

// Create inserts a new receipt. A unique violation on email_id maps to
// ErrDuplicateEmail.
func (r *ReceiptRepository) Create(ctx context.Context, rec *receipt.Receipt) error {
	if r == nil || r.db == nil {
		return errors.New("receipt repo: nil db")
	}
	if rec == nil {
		return receipt.ErrNilReceipt
	}

	query := `
INSERT INTO receipts (` + receiptColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''),
	NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
	NULLIF($13, ''), $14, NULLIF($15, ''), $16, NULLIF($17, ''), $18, $19)`

	var transactionDate any
	if !rec.TransactionDate.IsZero() {
		transactionDate = rec.TransactionDate.UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.EmailID, rec.FileHash, rec.FilePath, rec.Amount,
		string(rec.Status), string(rec.TransferKind), rec.Sender,
		rec.RecipientPhone, rec.RecipientName, rec.RecipientBank,
		rec.RecipientCardLast4, rec.RecipientCardMasked,
		nullableInt(rec.Commission), rec.ParseFailReason,
		transactionDate, rec.PayoutID, rec.IsProcessed,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return receipt.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// FindByEmailID returns the receipt for an email id.
func (r *ReceiptRepository) FindByEmailID(ctx context.Context, emailID string) (*receipt.Receipt, error) {
	return r.findOne(ctx, "email_id = $1", emailID)
}

// FindByID returns the receipt by primary id.
func (r *ReceiptRepository) FindByID(ctx context.Context, id string) (*receipt.Receipt, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByPayoutID returns the receipt linked to a payout.
func (r *ReceiptRepository) FindByPayoutID(ctx context.Context, payoutID string) (*receipt.Receipt, error) {
	return r.findOne(ctx, "payout_id = $1", payoutID)
}

func (r *ReceiptRepository) findOne(ctx context.Context, where string, arg any) (*receipt.Receipt, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("receipt repo: nil db")
	}
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE ` + where + ` LIMIT 1`
	rec, err := scanReceipt(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, receipt.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// LinkPayout sets payout_id once. The update is conditional on no
// payout being linked yet, which is the storage-level claim that keeps
// a receipt from ever matching twice.
func (r *ReceiptRepository) LinkPayout(ctx context.Context, receiptID, payoutID string) error {
	if r == nil || r.db == nil {
		return errors.New("receipt repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE receipts
SET payout_id = $2, is_processed = TRUE
WHERE id = $1 AND payout_id IS NULL`, receiptID, payoutID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, findErr := r.FindByID(ctx, receiptID); findErr != nil {
			return findErr
		}
		return receipt.ErrAlreadyLinked
	}
	return nil
}

// ListUnmatched returns successful receipts without a linked payout,
// oldest first.
func (r *ReceiptRepository) ListUnmatched(ctx context.Context) ([]*receipt.Receipt, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("receipt repo: nil db")
	}
	query := `SELECT ` + receiptColumns + `
FROM receipts
WHERE status = 'SUCCESS' AND payout_id IS NULL
ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*receipt.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*receipt.Receipt, error) {
	var (
		rec             receipt.Receipt
		status          string
		transferKind    sql.NullString
		sender          sql.NullString
		phone           sql.NullString
		name            sql.NullString
		bank            sql.NullString
		cardLast4       sql.NullString
		cardMasked      sql.NullString
		commission      sql.NullInt64
		parseFailReason sql.NullString
		transactionDate sql.NullTime
		payoutID        sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.EmailID, &rec.FileHash, &rec.FilePath, &rec.Amount,
		&status, &transferKind, &sender, &phone, &name, &bank,
		&cardLast4, &cardMasked, &commission, &parseFailReason,
		&transactionDate, &payoutID, &rec.IsProcessed, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = receipt.Status(status)
	rec.TransferKind = receipt.TransferKind(transferKind.String)
	rec.Sender = sender.String
	rec.RecipientPhone = phone.String
	rec.RecipientName = name.String
	rec.RecipientBank = bank.String
	rec.RecipientCardLast4 = cardLast4.String
	rec.RecipientCardMasked = cardMasked.String
	if commission.Valid {
		value := commission.Int64
		rec.Commission = &value
	}
	rec.ParseFailReason = parseFailReason.String
	if transactionDate.Valid {
		rec.TransactionDate = transactionDate.Time
	}
	rec.PayoutID = payoutID.String
	return &rec, nil
}

func nullableInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func isUniqueViolation(err error) bool {
	// pgx surfaces SQLSTATE 23505 in the error text through the stdlib
	// driver; matching on it avoids importing pgconn here.
	return err != nil && strings.Contains(err.Error(), "23505")
}

var _ receipt.Repository = (*ReceiptRepository)(nil)
