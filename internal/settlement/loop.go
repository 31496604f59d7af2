package settlement

import (
	"context"
	"log"
	"time"
)

// DefaultReleaseInterval is how often the release loop rescans.
const DefaultReleaseInterval = 2 * time.Second

// DefaultApprovalRetryInterval is how often failed approvals are
// retried. Much slower than the release tick: a failing payout API
// does not need to be hammered every two seconds.
const DefaultApprovalRetryInterval = time.Minute

// Loop periodically invokes ReleaseDue, and at a slower cadence
// RetryApprovals, until the context is done.
type Loop struct {
	orchestrator  *Orchestrator
	interval      time.Duration
	retryInterval time.Duration
	logger        *log.Logger
}

// NewLoop builds the release scheduler.
func NewLoop(orchestrator *Orchestrator, interval time.Duration, logger *log.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultReleaseInterval
	}
	return &Loop{
		orchestrator:  orchestrator,
		interval:      interval,
		retryInterval: DefaultApprovalRetryInterval,
		logger:        logger,
	}
}

// Run blocks until ctx is cancelled. One scan failure never stops the
// loop; the next tick retries.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	retryTicker := time.NewTicker(l.retryInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.orchestrator.ReleaseDue(ctx); err != nil {
				l.logf("release scan failed: %v", err)
			}
		case <-retryTicker.C:
			if err := l.orchestrator.RetryApprovals(ctx); err != nil {
				l.logf("approval retry scan failed: %v", err)
			}
		}
	}
}

func (l *Loop) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}
