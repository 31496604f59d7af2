// Package apihttp exposes the read-only operator API: receipt and
// transaction listings plus settlement report downloads.
package apihttp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"otc-settlement/internal/export"
	receipt "otc-settlement/internal/receipt/domain"
	transaction "otc-settlement/internal/transaction/domain"
)

const timeLayout = time.RFC3339

// ReceiptsHandler serves receipt listings.
type ReceiptsHandler struct {
	db *sql.DB
}

// NewReceiptsHandler constructs a ReceiptsHandler.
func NewReceiptsHandler(db *sql.DB) *ReceiptsHandler {
	return &ReceiptsHandler{db: db}
}

// ServeHTTP handles GET /api/v1/receipts.
func (h *ReceiptsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := r.URL.Query().Get("status")
	rows, err := queryReceipts(r.Context(), h.db, from, to, status)
	if err != nil {
		http.Error(w, "query receipts error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// TransactionsHandler serves transaction listings.
type TransactionsHandler struct {
	db *sql.DB
}

// NewTransactionsHandler constructs a TransactionsHandler.
func NewTransactionsHandler(db *sql.DB) *TransactionsHandler {
	return &TransactionsHandler{db: db}
}

// ServeHTTP handles GET /api/v1/transactions.
func (h *TransactionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := r.URL.Query().Get("status")
	rows, err := queryTransactions(r.Context(), h.db, from, to, status)
	if err != nil {
		http.Error(w, "query transactions error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ReportHandler serves settlement report downloads
// (/api/v1/reports/settlement.pdf and .xlsx).
type ReportHandler struct {
	db *sql.DB
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(db *sql.DB) *ReportHandler {
	return &ReportHandler{db: db}
}

// ServeHTTP handles GET /api/v1/reports/settlement.{pdf,xlsx}.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	format := ""
	switch {
	case strings.HasSuffix(r.URL.Path, "settlement.pdf"):
		format = "pdf"
	case strings.HasSuffix(r.URL.Path, "settlement.xlsx"):
		format = "xlsx"
	default:
		http.NotFound(w, r)
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipts, err := loadReceipts(r.Context(), h.db, from, to)
	if err != nil {
		http.Error(w, "query receipts error", http.StatusInternalServerError)
		return
	}
	transactions, err := loadTransactionsByPayout(r.Context(), h.db, receipts)
	if err != nil {
		http.Error(w, "query transactions error", http.StatusInternalServerError)
		return
	}

	report := export.Build(from, to, receipts, transactions)
	var data []byte
	switch format {
	case "pdf":
		data, err = export.BuildPDF(report)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="settlement.pdf"`)
	case "xlsx":
		data, err = export.BuildXLSX(report)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="settlement.xlsx"`)
	}
	if err != nil {
		http.Error(w, "render report error", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}

type receiptRow struct {
	ID              string     `json:"id"`
	EmailID         string     `json:"email_id"`
	Amount          int64      `json:"amount"`
	Status          string     `json:"status"`
	TransferKind    string     `json:"transfer_kind,omitempty"`
	ParseFailReason string     `json:"parse_fail_reason,omitempty"`
	PayoutID        string     `json:"payout_id,omitempty"`
	TransactionDate *time.Time `json:"transaction_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type transactionRow struct {
	ID                string     `json:"id"`
	OrderID           string     `json:"order_id"`
	AccountID         string     `json:"account_id,omitempty"`
	Status            string     `json:"status"`
	Amount            int64      `json:"amount"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	ReceiptReceivedAt *time.Time `json:"receipt_received_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func queryReceipts(ctx context.Context, db *sql.DB, from, to time.Time, status string) ([]receiptRow, error) {
	query := `
SELECT id, email_id, amount, status, COALESCE(transfer_kind, ''),
	COALESCE(parse_fail_reason, ''), COALESCE(payout_id, ''),
	transaction_date, created_at
FROM receipts
WHERE created_at >= $1 AND created_at < $2`
	args := []any{from.UTC(), to.UTC()}
	if status != "" {
		query += " AND status = $3"
		args = append(args, status)
	}
	query += " ORDER BY created_at"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []receiptRow
	for rows.Next() {
		var row receiptRow
		var transactionDate sql.NullTime
		if err := rows.Scan(
			&row.ID, &row.EmailID, &row.Amount, &row.Status,
			&row.TransferKind, &row.ParseFailReason, &row.PayoutID,
			&transactionDate, &row.CreatedAt,
		); err != nil {
			return nil, err
		}
		row.CreatedAt = row.CreatedAt.UTC()
		if transactionDate.Valid {
			t := transactionDate.Time.UTC()
			row.TransactionDate = &t
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func queryTransactions(ctx context.Context, db *sql.DB, from, to time.Time, status string) ([]transactionRow, error) {
	query := `
SELECT id, order_id, COALESCE(account_id, ''), status, amount,
	approved_at, receipt_received_at, completed_at,
	COALESCE(failure_reason, ''), created_at, updated_at
FROM transactions
WHERE created_at >= $1 AND created_at < $2`
	args := []any{from.UTC(), to.UTC()}
	if status != "" {
		query += " AND status = $3"
		args = append(args, status)
	}
	query += " ORDER BY created_at"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []transactionRow
	for rows.Next() {
		var row transactionRow
		var approvedAt, receivedAt, completedAt sql.NullTime
		if err := rows.Scan(
			&row.ID, &row.OrderID, &row.AccountID, &row.Status, &row.Amount,
			&approvedAt, &receivedAt, &completedAt, &row.FailureReason,
			&row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		row.CreatedAt = row.CreatedAt.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		row.ApprovedAt = nullTimePtr(approvedAt)
		row.ReceiptReceivedAt = nullTimePtr(receivedAt)
		row.CompletedAt = nullTimePtr(completedAt)
		result = append(result, row)
	}
	return result, rows.Err()
}

// loadReceipts fetches domain receipts for the report builder.
func loadReceipts(ctx context.Context, db *sql.DB, from, to time.Time) ([]*receipt.Receipt, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, email_id, amount, status, COALESCE(payout_id, ''),
	is_processed, created_at
FROM receipts
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*receipt.Receipt
	for rows.Next() {
		var rec receipt.Receipt
		var status string
		if err := rows.Scan(&rec.ID, &rec.EmailID, &rec.Amount, &status,
			&rec.PayoutID, &rec.IsProcessed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = receipt.Status(status)
		result = append(result, &rec)
	}
	return result, rows.Err()
}

// loadTransactionsByPayout maps payout ids of matched receipts to their
// transactions for the report join.
func loadTransactionsByPayout(ctx context.Context, db *sql.DB, receipts []*receipt.Receipt) (map[string]*transaction.Transaction, error) {
	result := make(map[string]*transaction.Transaction)
	for _, rec := range receipts {
		if rec.PayoutID == "" {
			continue
		}
		row := db.QueryRowContext(ctx, `
SELECT t.id, t.order_id, t.status
FROM transactions t
JOIN payouts p ON p.transaction_id = t.id
WHERE p.id = $1`, rec.PayoutID)
		var tx transaction.Transaction
		var status string
		if err := row.Scan(&tx.ID, &tx.OrderID, &status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		tx.Status = transaction.Status(status)
		result[rec.PayoutID] = &tx
	}
	return result, nil
}

func parsePeriod(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
