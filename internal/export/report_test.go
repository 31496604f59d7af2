package export

import (
	"bytes"
	"testing"
	"time"

	receipt "otc-settlement/internal/receipt/domain"
	transaction "otc-settlement/internal/transaction/domain"
)

var (
	from = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)
)

func sampleData() ([]*receipt.Receipt, map[string]*transaction.Transaction) {
	receipts := []*receipt.Receipt{
		{
			ID: "r1", EmailID: "e1", Amount: 5000,
			Status: receipt.ReceiptSuccess, PayoutID: "p1", IsProcessed: true,
			CreatedAt: time.Date(2024, time.March, 12, 14, 0, 0, 0, time.UTC),
		},
		{
			ID: "r2", EmailID: "e2", Amount: 7000,
			Status:    receipt.ReceiptSuccess,
			CreatedAt: time.Date(2024, time.March, 13, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: "r3", EmailID: "e3",
			Status: receipt.ReceiptFailed, ParseFailReason: "amount_not_found",
			CreatedAt: time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC),
		},
		{
			// outside the period
			ID: "r4", EmailID: "e4", Amount: 100,
			Status:    receipt.ReceiptSuccess,
			CreatedAt: time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	transactions := map[string]*transaction.Transaction{
		"p1": {ID: "tx1", OrderID: "order-1", Status: transaction.StatusCompleted},
	}
	return receipts, transactions
}

func TestBuild(t *testing.T) {
	receipts, transactions := sampleData()
	report := Build(from, to, receipts, transactions)

	if report.TotalReceipts != 3 {
		t.Fatalf("expected 3 receipts in period, got %d", report.TotalReceipts)
	}
	if report.MatchedReceipts != 1 || report.FailedReceipts != 1 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if report.TotalAmount != 5000 {
		t.Fatalf("expected matched amount 5000, got %d", report.TotalAmount)
	}
	if report.ReleasedAmount != 5000 {
		t.Fatalf("expected released amount 5000, got %d", report.ReleasedAmount)
	}
	if len(report.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(report.Rows))
	}
	if report.Rows[0].OrderID != "order-1" || report.Rows[0].TxStatus != "completed" {
		t.Fatalf("expected transaction join on first row, got %+v", report.Rows[0])
	}
}

func TestBuildPDF(t *testing.T) {
	receipts, transactions := sampleData()
	report := Build(from, to, receipts, transactions)

	data, err := BuildPDF(report)
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("expected a PDF document")
	}
}

func TestBuildXLSX(t *testing.T) {
	receipts, transactions := sampleData()
	report := Build(from, to, receipts, transactions)

	data, err := BuildXLSX(report)
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	// xlsx is a zip archive
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("expected an XLSX workbook")
	}
}
