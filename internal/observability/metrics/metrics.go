// Package metrics registers the pipeline's Prometheus metrics.
package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "otc_"

	// ResultSuccess and ResultError label observed operations.
	ResultSuccess = "success"
	ResultError   = "error"

	// Release result labels.
	ReleaseReleased = "released"
	ReleaseAlready  = "already_released"
	ReleaseFailed   = "failed"
	ReleaseSkipped  = "grace_pending"
)

var (
	registerOnce sync.Once

	scanCycles  *prometheus.CounterVec
	scanLatency *prometheus.HistogramVec

	receiptsIngested *prometheus.CounterVec
	parseFailures    *prometheus.CounterVec

	matchAttempts *prometheus.CounterVec

	approvals *prometheus.CounterVec

	releases       *prometheus.CounterVec
	releaseLatency *prometheus.HistogramVec

	monitorChanges *prometheus.CounterVec
)

// Init registers pipeline metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		scanCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mailbox_scan_cycles_total",
				Help: "Total mailbox scan cycles by result",
			},
			[]string{"result"},
		)
		scanLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "mailbox_scan_latency_seconds",
				Help:    "Mailbox scan cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		receiptsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "receipts_ingested_total",
				Help: "Total receipts persisted by parse status",
			},
			[]string{"status"},
		)
		parseFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "receipt_parse_failures_total",
				Help: "Total receipt parse failures by reason",
			},
			[]string{"reason"},
		)

		matchAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "match_attempts_total",
				Help: "Total payout match attempts by outcome",
			},
			[]string{"outcome"},
		)

		approvals = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payout_approvals_total",
				Help: "Total payout approval calls by result",
			},
			[]string{"result"},
		)

		releases = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "asset_releases_total",
				Help: "Total asset release attempts by result",
			},
			[]string{"result"},
		)
		releaseLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "asset_release_latency_seconds",
				Help:    "Asset release call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		monitorChanges = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "monitor_changes_total",
				Help: "Total transaction changes observed by the status monitor",
			},
			[]string{"kind"},
		)

		prometheus.MustRegister(
			scanCycles,
			scanLatency,
			receiptsIngested,
			parseFailures,
			matchAttempts,
			approvals,
			releases,
			releaseLatency,
			monitorChanges,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveScan records one mailbox scan cycle.
func ObserveScan(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if scanCycles != nil {
		scanCycles.WithLabelValues(result).Inc()
	}
	if scanLatency != nil {
		scanLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncReceiptIngested counts a persisted receipt by parse status.
func IncReceiptIngested(status string) {
	if receiptsIngested != nil {
		receiptsIngested.WithLabelValues(status).Inc()
	}
}

// IncParseFailure counts a parse failure by reason.
func IncParseFailure(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if parseFailures != nil {
		parseFailures.WithLabelValues(reason).Inc()
	}
}

// IncMatchAttempt counts a match attempt outcome (matched/unmatched).
func IncMatchAttempt(outcome string) {
	if matchAttempts != nil {
		matchAttempts.WithLabelValues(outcome).Inc()
	}
}

// IncApproval counts an approval call result.
func IncApproval(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if approvals != nil {
		approvals.WithLabelValues(result).Inc()
	}
}

// ObserveRelease records an asset release attempt.
func ObserveRelease(result string, duration time.Duration) {
	if releases != nil {
		releases.WithLabelValues(result).Inc()
	}
	if releaseLatency != nil {
		releaseLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncMonitorChange counts a change seen by the status monitor
// (kind: new or updated).
func IncMonitorChange(kind string) {
	if monitorChanges != nil {
		monitorChanges.WithLabelValues(kind).Inc()
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "receipts_unmatched",
			Help: "Successful receipts not yet linked to a payout",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM receipts WHERE status = 'SUCCESS' AND payout_id IS NULL")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "transactions_pending_release",
			Help: "Transactions waiting in release_money",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM transactions WHERE status = 'release_money'")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
