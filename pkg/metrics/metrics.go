package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccountSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_account_sync_duration_seconds",
			Help:    "Duration of a full per-account mailbox sync in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
		},
		[]string{"status"},
	)

	MessagesProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_messages_processed_count",
			Help: "Total number of fetched messages handled by the normalizer",
		},
		[]string{"result"}, // result: new, duplicate, failed
	)

	AccountSyncCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_account_sync_count",
			Help: "Total number of per-account sync runs",
		},
		[]string{"status"}, // status: success, error, skipped
	)

	IMAPConnectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_imap_connect_failures_count",
			Help: "Total number of failed IMAP connection attempts",
		},
		[]string{"kind"}, // kind: connection, auth, timeout
	)

	FolderSyncErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mail_folder_sync_errors_count",
			Help: "Total number of non-fatal per-folder sync errors",
		},
	)

	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mail_db_slow_query_count",
			Help: "Total number of database queries exceeding the slow threshold",
		},
	)
)

// RecordAccountSync records one per-account sync run.
func RecordAccountSync(status string, duration time.Duration) {
	AccountSyncCount.WithLabelValues(status).Inc()
	AccountSyncDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncrementMessagesProcessed counts one normalized message by result.
func IncrementMessagesProcessed(result string) {
	MessagesProcessedCount.WithLabelValues(result).Inc()
}

// IncrementConnectFailure counts one failed IMAP connect by error kind.
func IncrementConnectFailure(kind string) {
	IMAPConnectFailures.WithLabelValues(kind).Inc()
}

// IncrementFolderError counts one non-fatal folder error.
func IncrementFolderError() {
	FolderSyncErrors.Inc()
}

// IncrementSlowQuery counts one query over the slow threshold.
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
