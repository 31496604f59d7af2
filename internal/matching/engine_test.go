package matching

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	payout "otc-settlement/internal/payout/domain"
	payoutmem "otc-settlement/internal/payout/infrastructure/memory"
	receipt "otc-settlement/internal/receipt/domain"
	receiptmem "otc-settlement/internal/receipt/infrastructure/memory"
	transaction "otc-settlement/internal/transaction/domain"
	txmem "otc-settlement/internal/transaction/infrastructure/memory"
)

var testTime = time.Date(2024, time.March, 12, 14, 0, 0, 0, time.UTC)

type fixture struct {
	engine       *Engine
	receipts     *receiptmem.ReceiptRepository
	payouts      *payoutmem.PayoutRepository
	transactions *txmem.TransactionRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	receipts := receiptmem.NewReceiptRepository()
	payouts := payoutmem.NewPayoutRepository()
	transactions := txmem.NewTransactionRepository()
	logger := log.New(io.Discard, "", 0)
	engine, err := NewEngine(receipts, payouts, transactions, payout.RUB, logger,
		WithClock(func() time.Time { return testTime }))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &fixture{engine: engine, receipts: receipts, payouts: payouts, transactions: transactions}
}

func (f *fixture) seedReceipt(t *testing.T, rec *receipt.Receipt) *receipt.Receipt {
	t.Helper()
	if err := f.receipts.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}
	return rec
}

func (f *fixture) seedTransaction(t *testing.T, tx *transaction.Transaction) {
	t.Helper()
	if err := f.transactions.Save(context.Background(), tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

func phoneReceipt(id string, amount int64, date time.Time) *receipt.Receipt {
	return &receipt.Receipt{
		ID:              id,
		EmailID:         "email-" + id,
		Amount:          amount,
		Status:          receipt.ReceiptSuccess,
		TransferKind:    receipt.TransferByPhone,
		RecipientPhone:  "+7 (912) 345-67-89",
		TransactionDate: date,
		CreatedAt:       date,
	}
}

func phonePayout(id string, amount int64, createdAt time.Time) *payout.Payout {
	return &payout.Payout{
		ID:            id,
		Status:        payout.StatusAwaitingMatch,
		Wallet:        "89123456789",
		AmountTrader:  map[string]int64{payout.RUB: amount},
		CreatedAt:     createdAt,
		TransactionID: "tx-" + id,
	}
}

func TestTryMatch_PhonePath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.seedReceipt(t, phoneReceipt("r1", 5000, testTime))
	f.payouts.Put(phonePayout("p1", 5000, testTime.Add(-time.Minute)))
	f.seedTransaction(t, &transaction.Transaction{ID: "tx-p1", OrderID: "order-1", Status: transaction.StatusPaymentReceived})

	result, err := f.engine.TryMatch(ctx, rec)
	if err != nil {
		t.Fatalf("try match: %v", err)
	}
	if !result.Matched || result.PayoutID != "p1" {
		t.Fatalf("expected match with p1, got %+v", result)
	}

	stored, err := f.receipts.FindByID(ctx, "r1")
	if err != nil {
		t.Fatalf("find receipt: %v", err)
	}
	if stored.PayoutID != "p1" || !stored.IsProcessed {
		t.Fatalf("expected committed receipt, got %+v", stored)
	}

	tx, err := f.transactions.FindByID(ctx, "tx-p1")
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if tx.Status != transaction.StatusReceiptReceived {
		t.Fatalf("expected receipt_received, got %s", tx.Status)
	}
	if tx.ReceiptReceivedAt == nil || !tx.ReceiptReceivedAt.Equal(testTime) {
		t.Fatalf("expected receipt timestamp %v, got %v", testTime, tx.ReceiptReceivedAt)
	}
}

func TestTryMatch_ToleranceBoundary(t *testing.T) {
	cases := []struct {
		name    string
		amount  int64
		matched bool
	}{
		{"exactly at tolerance", 5100, true},
		{"one over tolerance", 5101, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.seedReceipt(t, phoneReceipt("r1", 5000, testTime))
			f.payouts.Put(phonePayout("p1", tc.amount, testTime.Add(-time.Minute)))

			result, err := f.engine.TryMatch(context.Background(), rec)
			if err != nil {
				t.Fatalf("try match: %v", err)
			}
			if result.Matched != tc.matched {
				t.Fatalf("expected matched=%v, got %+v", tc.matched, result)
			}
		})
	}
}

func TestTryMatch_PhoneNormalization(t *testing.T) {
	f := newFixture(t)
	rec := f.seedReceipt(t, phoneReceipt("r1", 5000, testTime))
	p := phonePayout("p1", 5000, testTime.Add(-time.Minute))
	p.Wallet = "89123456789" // 8-prefixed national form of +7 (912) 345-67-89
	f.payouts.Put(p)

	result, err := f.engine.TryMatch(context.Background(), rec)
	if err != nil {
		t.Fatalf("try match: %v", err)
	}
	if !result.Matched {
		t.Fatal("expected 8-prefixed wallet to match +7 receipt phone")
	}
}

func TestTryMatch_PhoneLastDigitDiffers(t *testing.T) {
	f := newFixture(t)
	rec := f.seedReceipt(t, phoneReceipt("r1", 5000, testTime))
	p := phonePayout("p1", 5000, testTime.Add(-time.Minute))
	p.Wallet = "89123456780"
	f.payouts.Put(p)

	result, err := f.engine.TryMatch(context.Background(), rec)
	if err != nil {
		t.Fatalf("try match: %v", err)
	}
	if result.Matched {
		t.Fatal("expected differing last digit to reject the match")
	}
}

func TestTryMatch_TemporalOrdering(t *testing.T) {
	f := newFixture(t)
	// receipt predates the payout request; amount and identity match
	rec := f.seedReceipt(t, phoneReceipt("r1", 5000, testTime.Add(-time.Hour)))
	f.payouts.Put(phonePayout("p1", 5000, testTime))

	result, err := f.engine.TryMatch(context.Background(), rec)
	if err != nil {
		t.Fatalf("try match: %v", err)
	}
	if result.Matched {
		t.Fatal("receipt older than payout must never match")
	}
}

func TestTryMatch_OldestPayoutWins(t *testing.T) {
	f := newFixture(t)
	rec := f.seedReceipt(t, phoneReceipt("r1", 5000, testTime))
	f.payouts.Put(phonePayout("newer", 5000, testTime.Add(-time.Minute)))
	f.payouts.Put(phonePayout("older", 5000, testTime.Add(-time.Hour)))

	result, err := f.engine.TryMatch(context.Background(), rec)
	if err != nil {
		t.Fatalf("try match: %v", err)
	}
	if result.PayoutID != "older" {
		t.Fatalf("expected oldest payout to win, got %q", result.PayoutID)
	}
}

func TestTryMatch_CardPath(t *testing.T) {
	f := newFixture(t)
	rec := f.seedReceipt(t, &receipt.Receipt{
		ID:                 "r1",
		EmailID:            "email-r1",
		Amount:             5000,
		Status:             receipt.ReceiptSuccess,
		TransferKind:       receipt.TransferToCard,
		RecipientCardLast4: "1234",
		TransactionDate:    testTime,
	})
	f.payouts.Put(&payout.Payout{
		ID:            "p1",
		Status:        payout.StatusAwaitingMatch,
		RecipientCard: "220220******1234",
		Amount:        5000,
		CreatedAt:     testTime.Add(-time.Minute),
	})

	result, err := f.engine.TryMatch(context.Background(), rec)
	if err != nil {
		t.Fatalf("try match: %v", err)
	}
	if !result.Matched || result.PayoutID != "p1" {
		t.Fatalf("expected card match, got %+v", result)
	}
}

func TestTryMatch_SkipsSettledTransaction(t *testing.T) {
	f := newFixture(t)
	rec := f.seedReceipt(t, phoneReceipt("r1", 5000, testTime))
	f.payouts.Put(phonePayout("p1", 5000, testTime.Add(-time.Minute)))
	settled := testTime.Add(-time.Minute)
	f.seedTransaction(t, &transaction.Transaction{
		ID:                "tx-p1",
		Status:            transaction.StatusReceiptReceived,
		ReceiptReceivedAt: &settled,
	})

	result, err := f.engine.TryMatch(context.Background(), rec)
	if err != nil {
		t.Fatalf("try match: %v", err)
	}
	if result.Matched {
		t.Fatal("payout with a settled transaction must be skipped")
	}
}

func TestTryMatch_AtMostOnce(t *testing.T) {
	f := newFixture(t)
	first := f.seedReceipt(t, phoneReceipt("r1", 5000, testTime))
	f.payouts.Put(phonePayout("p1", 5000, testTime.Add(-time.Minute)))
	f.seedTransaction(t, &transaction.Transaction{ID: "tx-p1", OrderID: "order-1", Status: transaction.StatusPaymentReceived})

	if _, err := f.engine.TryMatch(context.Background(), first); err != nil {
		t.Fatalf("first match: %v", err)
	}

	// the same payout must not be claimed again by a second receipt
	second := f.seedReceipt(t, phoneReceipt("r2", 5000, testTime))
	result, err := f.engine.TryMatch(context.Background(), second)
	if err != nil {
		t.Fatalf("second match: %v", err)
	}
	if result.Matched {
		t.Fatal("payout already settled must not match twice")
	}
}

func TestTryMatch_FailedReceiptIgnored(t *testing.T) {
	f := newFixture(t)
	rec := f.seedReceipt(t, &receipt.Receipt{
		ID:      "r1",
		EmailID: "email-r1",
		Status:  receipt.ReceiptFailed,
	})
	f.payouts.Put(phonePayout("p1", 5000, testTime.Add(-time.Minute)))

	result, err := f.engine.TryMatch(context.Background(), rec)
	if err != nil {
		t.Fatalf("try match: %v", err)
	}
	if result.Matched {
		t.Fatal("failed receipt must never match")
	}
}

func TestPhonesMatch(t *testing.T) {
	cases := []struct {
		phone  string
		wallet string
		want   bool
	}{
		{"+7 (912) 345-67-89", "9123456789", true},
		{"+7 (912) 345-67-89", "89123456789", true},
		{"+7 (912) 345-67-89", "79123456789", true},
		{"+7 (912) 345-67-89", "89123456780", false},
		{"", "9123456789", false},
	}
	for _, tc := range cases {
		if got := phonesMatch(tc.phone, tc.wallet); got != tc.want {
			t.Fatalf("phonesMatch(%q, %q) = %v, want %v", tc.phone, tc.wallet, got, tc.want)
		}
	}
}
