// Package postgres implements the transaction repository over
// database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	transaction "otc-settlement/internal/transaction/domain"
)

// TransactionRepository is a Postgres implementation of
// transaction.Repository.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
id, order_id, account_id, status, amount, price, card_number,
approved_at, receipt_received_at, completed_at, failure_reason,
created_at, updated_at`

// FindByID returns the transaction by id.
func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByOrderID returns the transaction for a trading-platform order.
func (r *TransactionRepository) FindByOrderID(ctx context.Context, orderID string) (*transaction.Transaction, error) {
	return r.findOne(ctx, "order_id = $1", orderID)
}

func (r *TransactionRepository) findOne(ctx context.Context, where string, arg any) (*transaction.Transaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + where + ` LIMIT 1`
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListByStatus returns transactions in the given status, oldest first.
func (r *TransactionRepository) ListByStatus(ctx context.Context, status transaction.Status) ([]*transaction.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+`
FROM transactions
WHERE status = $1
ORDER BY created_at`, string(status))
}

// ListReleasable returns release_money transactions that have an
// approval timestamp.
func (r *TransactionRepository) ListReleasable(ctx context.Context) ([]*transaction.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+`
FROM transactions
WHERE status = $1 AND approved_at IS NOT NULL
ORDER BY approved_at`, string(transaction.StatusReleaseMoney))
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// Save upserts the transaction by id.
func (r *TransactionRepository) Save(ctx context.Context, tx *transaction.Transaction) error {
	if r == nil || r.db == nil {
		return errors.New("transaction repo: nil db")
	}
	if tx == nil {
		return transaction.ErrNilTransaction
	}
	query := `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''),
	$8, $9, $10, NULLIF($11, ''), $12, $13)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	amount = EXCLUDED.amount,
	price = EXCLUDED.price,
	card_number = EXCLUDED.card_number,
	approved_at = EXCLUDED.approved_at,
	receipt_received_at = EXCLUDED.receipt_received_at,
	completed_at = EXCLUDED.completed_at,
	failure_reason = EXCLUDED.failure_reason,
	updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.OrderID, tx.AccountID, string(tx.Status), tx.Amount,
		tx.Price, tx.CardNumber, nullableTime(tx.ApprovedAt),
		nullableTime(tx.ReceiptReceivedAt), nullableTime(tx.CompletedAt),
		tx.FailureReason, tx.CreatedAt.UTC(), tx.UpdatedAt.UTC(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var (
		tx                transaction.Transaction
		accountID         sql.NullString
		status            string
		cardNumber        sql.NullString
		approvedAt        sql.NullTime
		receiptReceivedAt sql.NullTime
		completedAt       sql.NullTime
		failureReason     sql.NullString
	)
	err := row.Scan(
		&tx.ID, &tx.OrderID, &accountID, &status, &tx.Amount, &tx.Price,
		&cardNumber, &approvedAt, &receiptReceivedAt, &completedAt,
		&failureReason, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.AccountID = accountID.String
	tx.Status = transaction.Status(status)
	tx.CardNumber = cardNumber.String
	tx.ApprovedAt = timePtr(approvedAt)
	tx.ReceiptReceivedAt = timePtr(receiptReceivedAt)
	tx.CompletedAt = timePtr(completedAt)
	tx.FailureReason = failureReason.String
	return &tx, nil
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC()
}

var _ transaction.Repository = (*TransactionRepository)(nil)
