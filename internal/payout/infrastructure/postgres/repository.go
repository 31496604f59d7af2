// Package postgres implements the payout repository over
// database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	payout "otc-settlement/internal/payout/domain"
)

// PayoutRepository is a Postgres implementation of payout.Repository.
type PayoutRepository struct {
	db *sql.DB
}

// NewPayoutRepository constructs a repository.
func NewPayoutRepository(db *sql.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

const payoutColumns = `
id, status, wallet, recipient_card, holder_name, amount_trader, amount,
created_at, transaction_id`

// FindByID returns the payout by id.
func (r *PayoutRepository) FindByID(ctx context.Context, id string) (*payout.Payout, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payout repo: nil db")
	}
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1 LIMIT 1`
	p, err := scanPayout(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payout.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// FindByTransactionID returns the payout linked to a transaction.
func (r *PayoutRepository) FindByTransactionID(ctx context.Context, transactionID string) (*payout.Payout, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payout repo: nil db")
	}
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE transaction_id = $1 LIMIT 1`
	p, err := scanPayout(r.db.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payout.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListAwaitingMatch returns awaiting-match payouts oldest first. The
// explicit ordering is the matcher's tie-break when several candidates
// survive the filters.
func (r *PayoutRepository) ListAwaitingMatch(ctx context.Context) ([]*payout.Payout, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payout repo: nil db")
	}
	query := `SELECT ` + payoutColumns + `
FROM payouts
WHERE status = $1
ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, payout.StatusAwaitingMatch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*payout.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// UpdateStatus advances the payout lifecycle.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, id string, status int) error {
	if r == nil || r.db == nil {
		return errors.New("payout repo: nil db")
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE payouts SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return payout.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayout(row rowScanner) (*payout.Payout, error) {
	var (
		p             payout.Payout
		wallet        sql.NullString
		recipientCard sql.NullString
		holderName    sql.NullString
		amountTrader  []byte
		transactionID sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Status, &wallet, &recipientCard, &holderName,
		&amountTrader, &p.Amount, &p.CreatedAt, &transactionID,
	)
	if err != nil {
		return nil, err
	}
	p.Wallet = wallet.String
	p.RecipientCard = recipientCard.String
	p.HolderName = holderName.String
	p.TransactionID = transactionID.String
	if len(amountTrader) > 0 {
		if err := json.Unmarshal(amountTrader, &p.AmountTrader); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

var _ payout.Repository = (*PayoutRepository)(nil)
