// Package monitor mirrors trading-platform orders into local
// transactions. The matcher and the release loop only see transactions
// this poller has brought in.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"otc-settlement/internal/notify"
	"otc-settlement/internal/observability/metrics"
	"otc-settlement/internal/platform"
	transaction "otc-settlement/internal/transaction/domain"
)

// DefaultPollInterval is how often remote orders are re-read.
const DefaultPollInterval = time.Minute

// defaultWatchStatuses are the remote order states worth mirroring:
// everything between ad taken and settlement.
var defaultWatchStatuses = []string{"pending", "paid"}

// pipelineStates are locally owned; the monitor never regresses them
// from remote data.
var pipelineStates = map[transaction.Status]bool{
	transaction.StatusReceiptReceived: true,
	transaction.StatusReleaseMoney:    true,
	transaction.StatusCompleted:       true,
	transaction.StatusFailed:          true,
}

// StatusMonitor polls remote orders and upserts transactions.
type StatusMonitor struct {
	trading      platform.TradingPlatform
	transactions transaction.Repository
	accounts     []string
	watch        []string
	statusMap    map[string]transaction.Status
	channel      notify.Channel
	logger       *log.Logger
	clock        func() time.Time
	newID        func() string
}

// Option configures the monitor.
type Option func(*StatusMonitor)

// WithWatchStatuses overrides the remote statuses polled.
func WithWatchStatuses(statuses []string) Option {
	return func(m *StatusMonitor) {
		if len(statuses) > 0 {
			m.watch = statuses
		}
	}
}

// WithChannel sets the notification channel for change summaries.
func WithChannel(channel notify.Channel) Option {
	return func(m *StatusMonitor) {
		m.channel = channel
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *StatusMonitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(newID func() string) Option {
	return func(m *StatusMonitor) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// NewStatusMonitor constructs the monitor.
func NewStatusMonitor(trading platform.TradingPlatform, transactions transaction.Repository, accounts []string, logger *log.Logger, opts ...Option) (*StatusMonitor, error) {
	if trading == nil {
		return nil, errors.New("monitor: nil trading platform")
	}
	if transactions == nil {
		return nil, errors.New("monitor: nil transaction repository")
	}
	if len(accounts) == 0 {
		return nil, errors.New("monitor: no accounts configured")
	}
	m := &StatusMonitor{
		trading:      trading,
		transactions: transactions,
		accounts:     accounts,
		watch:        defaultWatchStatuses,
		statusMap: map[string]transaction.Status{
			"pending": transaction.StatusPending,
			"paid":    transaction.StatusPaymentReceived,
		},
		logger: logger,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Poll runs one cycle: fetch remote orders, upsert local transactions,
// report changes. One failing account never aborts the cycle.
func (m *StatusMonitor) Poll(ctx context.Context) error {
	var changes []string
	for _, account := range m.accounts {
		orders, err := m.trading.ListOrders(ctx, account, m.watch)
		if err != nil {
			m.logf("order listing failed: account=%s err=%v", account, err)
			continue
		}
		for _, order := range orders {
			change, err := m.applyOrder(ctx, account, order)
			if err != nil {
				m.logf("order sync failed: order=%s err=%v", order.OrderID, err)
				continue
			}
			if change != "" {
				changes = append(changes, change)
			}
		}
	}

	if len(changes) > 0 && m.channel != nil {
		summary := "Order changes:\n" + strings.Join(changes, "\n")
		if err := m.channel.Send(ctx, summary); err != nil {
			m.logf("change notification failed: %v", err)
		}
	}
	return nil
}

// applyOrder upserts one remote order. Returns a human-readable change
// line, empty when nothing changed.
func (m *StatusMonitor) applyOrder(ctx context.Context, account string, order platform.Order) (string, error) {
	status, ok := m.statusMap[order.Status]
	if !ok {
		return "", nil
	}

	existing, err := m.transactions.FindByOrderID(ctx, order.OrderID)
	switch {
	case errors.Is(err, transaction.ErrNotFound):
		now := m.clock()
		tx := &transaction.Transaction{
			ID:         m.newID(),
			OrderID:    order.OrderID,
			AccountID:  account,
			Status:     status,
			Amount:     order.Amount,
			Price:      order.Price,
			CardNumber: order.CardNumber,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := m.transactions.Save(ctx, tx); err != nil {
			return "", err
		}
		metrics.IncMonitorChange("new")
		return fmt.Sprintf("order %s: new (%s)", order.OrderID, status), nil
	case err != nil:
		return "", err
	}

	// locally driven states outrank anything the remote still reports
	if pipelineStates[existing.Status] {
		return "", nil
	}
	// tracked field set: status, amount, price, counterparty card
	changed := existing.Status != status ||
		existing.Amount != order.Amount ||
		existing.Price != order.Price ||
		(order.CardNumber != "" && existing.CardNumber != order.CardNumber)
	if !changed {
		return "", nil
	}
	previous := existing.Status
	existing.Status = status
	existing.Amount = order.Amount
	existing.Price = order.Price
	if order.CardNumber != "" {
		existing.CardNumber = order.CardNumber
	}
	existing.UpdatedAt = m.clock()
	if err := m.transactions.Save(ctx, existing); err != nil {
		return "", err
	}
	metrics.IncMonitorChange("updated")
	if previous != status {
		return fmt.Sprintf("order %s: %s -> %s", order.OrderID, previous, status), nil
	}
	return fmt.Sprintf("order %s: updated (%s)", order.OrderID, status), nil
}

// Run polls on a fixed interval until ctx is cancelled.
func (m *StatusMonitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Poll(ctx); err != nil {
				m.logf("poll cycle failed: %v", err)
			}
		}
	}
}

func (m *StatusMonitor) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
