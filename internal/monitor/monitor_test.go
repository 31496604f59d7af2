package monitor

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"otc-settlement/internal/platform"
	transaction "otc-settlement/internal/transaction/domain"
	txmem "otc-settlement/internal/transaction/infrastructure/memory"
)

var testTime = time.Date(2024, time.March, 12, 14, 0, 0, 0, time.UTC)

type fakeTrading struct {
	orders map[string][]platform.Order
}

func (f *fakeTrading) ListOrders(_ context.Context, account string, _ []string) ([]platform.Order, error) {
	return f.orders[account], nil
}

func (f *fakeTrading) ReleaseAssets(context.Context, string) error        { return nil }
func (f *fakeTrading) SendChatMessage(context.Context, string, string) error { return nil }
func (f *fakeTrading) DeleteAdvertisement(context.Context, string) error  { return nil }

type recordingChannel struct {
	contents []string
}

func (r *recordingChannel) Send(_ context.Context, content string) error {
	r.contents = append(r.contents, content)
	return nil
}

func newMonitor(t *testing.T, trading *fakeTrading, transactions *txmem.TransactionRepository, channel *recordingChannel) *StatusMonitor {
	t.Helper()
	var seq int
	m, err := NewStatusMonitor(trading, transactions, []string{"acc-1"},
		log.New(io.Discard, "", 0),
		WithChannel(channel),
		WithClock(func() time.Time { return testTime }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("tx-%d", seq)
		}),
	)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return m
}

func TestPoll_InsertsNewOrders(t *testing.T) {
	trading := &fakeTrading{orders: map[string][]platform.Order{
		"acc-1": {{OrderID: "order-1", Status: "paid", Amount: 5000, Price: 92.5}},
	}}
	transactions := txmem.NewTransactionRepository()
	channel := &recordingChannel{}

	m := newMonitor(t, trading, transactions, channel)
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	tx, err := transactions.FindByOrderID(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if tx.Status != transaction.StatusPaymentReceived {
		t.Fatalf("expected payment_received, got %s", tx.Status)
	}
	if tx.AccountID != "acc-1" || tx.Amount != 5000 {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if len(channel.contents) != 1 || !strings.Contains(channel.contents[0], "order-1: new") {
		t.Fatalf("expected change notification, got %v", channel.contents)
	}
}

func TestPoll_UpdatesRemoteStatus(t *testing.T) {
	trading := &fakeTrading{orders: map[string][]platform.Order{
		"acc-1": {{OrderID: "order-1", Status: "pending"}},
	}}
	transactions := txmem.NewTransactionRepository()
	channel := &recordingChannel{}
	m := newMonitor(t, trading, transactions, channel)

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	trading.orders["acc-1"][0].Status = "paid"
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("second poll: %v", err)
	}

	tx, err := transactions.FindByOrderID(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if tx.Status != transaction.StatusPaymentReceived {
		t.Fatalf("expected payment_received, got %s", tx.Status)
	}
}

func TestPoll_UpdatesTrackedFieldsUnderUnchangedStatus(t *testing.T) {
	trading := &fakeTrading{orders: map[string][]platform.Order{
		"acc-1": {{OrderID: "order-1", Status: "pending", Amount: 5000, Price: 92.5}},
	}}
	transactions := txmem.NewTransactionRepository()
	channel := &recordingChannel{}
	m := newMonitor(t, trading, transactions, channel)

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	trading.orders["acc-1"][0].Amount = 7777
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("second poll: %v", err)
	}

	tx, err := transactions.FindByOrderID(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if tx.Amount != 7777 {
		t.Fatalf("remote amount change not mirrored, got %d", tx.Amount)
	}
	if len(channel.contents) != 2 || !strings.Contains(channel.contents[1], "order-1: updated") {
		t.Fatalf("expected an update notification, got %v", channel.contents)
	}
}

func TestPoll_StoresCounterpartyCard(t *testing.T) {
	trading := &fakeTrading{orders: map[string][]platform.Order{
		"acc-1": {{OrderID: "order-1", Status: "paid", Amount: 5000, CardNumber: "2200700000001234"}},
	}}
	transactions := txmem.NewTransactionRepository()
	m := newMonitor(t, trading, transactions, &recordingChannel{})

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	tx, err := transactions.FindByOrderID(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if tx.CardNumber != "2200700000001234" {
		t.Fatalf("counterparty card not stored, got %q", tx.CardNumber)
	}
}

func TestPoll_NeverRegressesPipelineStates(t *testing.T) {
	trading := &fakeTrading{orders: map[string][]platform.Order{
		"acc-1": {{OrderID: "order-1", Status: "paid"}},
	}}
	transactions := txmem.NewTransactionRepository()
	received := testTime
	if err := transactions.Save(context.Background(), &transaction.Transaction{
		ID:                "tx-local",
		OrderID:           "order-1",
		Status:            transaction.StatusReceiptReceived,
		ReceiptReceivedAt: &received,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	m := newMonitor(t, trading, transactions, &recordingChannel{})
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	tx, err := transactions.FindByOrderID(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if tx.Status != transaction.StatusReceiptReceived {
		t.Fatalf("remote data must not regress receipt_received, got %s", tx.Status)
	}
}

func TestPoll_NoChangesNoNotification(t *testing.T) {
	trading := &fakeTrading{orders: map[string][]platform.Order{
		"acc-1": {{OrderID: "order-1", Status: "paid"}},
	}}
	transactions := txmem.NewTransactionRepository()
	channel := &recordingChannel{}
	m := newMonitor(t, trading, transactions, channel)

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if len(channel.contents) != 1 {
		t.Fatalf("expected a single notification for the insert, got %v", channel.contents)
	}
}

func TestPoll_UnknownRemoteStatusIgnored(t *testing.T) {
	trading := &fakeTrading{orders: map[string][]platform.Order{
		"acc-1": {{OrderID: "order-1", Status: "appeal"}},
	}}
	transactions := txmem.NewTransactionRepository()
	m := newMonitor(t, trading, transactions, &recordingChannel{})

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if _, err := transactions.FindByOrderID(context.Background(), "order-1"); err == nil {
		t.Fatal("unmapped remote status must not create a transaction")
	}
}
