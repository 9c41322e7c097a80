package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "encarne_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "encarne_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"result"}, // "commit" or "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encarne_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Registry metrics
var (
	RegistryResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_registry_resolutions_total",
			Help: "Movie identity resolutions by result",
		},
		[]string{"result"}, // "location", "renamed", "created", "vanished"
	)

	RegistryDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encarne_registry_duplicates_total",
			Help: "Records found sharing a content hash with an older record",
		},
	)

	RegistryHashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "encarne_registry_hash_duration_seconds",
			Help:    "Time spent computing content hashes",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	RegistryPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_registry_purged_total",
			Help: "Records handled by the missing-file purge by result",
		},
		[]string{"result"}, // "followed", "deleted"
	)

	MoviesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "encarne_movies",
			Help: "Number of tracked movies by state",
		},
		[]string{"state"}, // "encoded", "failed", "pending"
	)

	SavedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encarne_saved_bytes",
			Help: "Bytes saved by re-encoding across all tracked movies",
		},
	)
)

// Scanner metrics
var (
	ScannerFilesFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encarne_scanner_files_found",
			Help: "Video files discovered in the last scan",
		},
	)

	FilterDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_filter_decisions_total",
			Help: "Filter decisions by outcome",
		},
		[]string{"decision"}, // "task", "done", "already_encoded", "too_small", "vanished", "error"
	)

	ProbeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encarne_probe_failures_total",
			Help: "Media probes that could not determine codec or duration",
		},
	)
)

// Queue and reconciler metrics
var (
	QueueRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_queue_requests_total",
			Help: "Requests sent to the task queue",
		},
		[]string{"backend", "operation", "status"},
	)

	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_jobs_submitted_total",
			Help: "Encode jobs handed to the queue, or skipped because already present",
		},
		[]string{"result"}, // "submitted", "existing", "stale"
	)

	JobPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encarne_job_polls_total",
			Help: "Status polls issued while waiting for encode jobs",
		},
	)

	JobOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_job_outcomes_total",
			Help: "Terminal job states observed",
		},
		[]string{"state"}, // "done", "failed", "vanished"
	)

	JobWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "encarne_job_wait_duration_seconds",
			Help:    "Time spent waiting for an encode job to finish",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800, 57600},
		},
	)

	ValidationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_validation_verdicts_total",
			Help: "Post-encode validation verdicts",
		},
		[]string{"verdict"}, // "accepted", "rejected", "inconclusive"
	)

	BytesReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encarne_bytes_reclaimed_total",
			Help: "Bytes freed by committed encodes",
		},
	)
)

// Run metrics
var (
	RunLastTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encarne_run_last_timestamp",
			Help: "Unix timestamp of the last completed run",
		},
	)

	RunLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encarne_run_last_duration_seconds",
			Help: "Duration of the last run in seconds",
		},
	)

	RunTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "encarne_run_tasks",
			Help: "Tasks in the last run by outcome",
		},
		[]string{"outcome"},
	)

	RunIsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encarne_run_active",
			Help: "Whether a run is currently in progress (1 = running, 0 = idle)",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_filesystem_retry_attempts_total",
			Help: "Filesystem operation retries after stale NFS handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encarne_filesystem_stale_errors_total",
			Help: "Stale NFS file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

var runActive atomic.Bool

// SetRunActive flips RunIsActive and the flag reported on /healthz.
func SetRunActive(active bool) {
	runActive.Store(active)
	if active {
		RunIsActive.Set(1)
	} else {
		RunIsActive.Set(0)
	}
}
