package ingest

import (
	"context"
	"log"
	"time"
)

// DefaultScanInterval is how often the mailbox is polled.
const DefaultScanInterval = 10 * time.Second

// Scheduler runs the scanner on a fixed interval.
type Scheduler struct {
	scanner  *Scanner
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler builds the scan scheduler.
func NewScheduler(scanner *Scanner, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &Scheduler{scanner: scanner, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. The scanner's own flag drops
// overlapping cycles, so a slow scan simply skips ticks.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := s.scanner.Scan(ctx)
			if err != nil {
				if s.logger != nil {
					s.logger.Printf("scan cycle failed: %v", err)
				}
				continue
			}
			if s.logger != nil && !summary.AlreadyRunning {
				s.logger.Printf("scan cycle: seen=%d new=%d matched=%d rematched=%d parse_failures=%d skipped=%d errors=%d",
					summary.MessagesSeen, summary.NewReceipts, summary.Matched, summary.Rematched,
					summary.ParseFailures, summary.Skipped, summary.Errors)
			}
		}
	}
}
