package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoindex_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_db_queries_total",
			Help: "Total number of boundary store queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoindex_db_query_duration_seconds",
			Help:    "Boundary store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_db_connections_in_use",
			Help: "Number of database connections currently acquired by an operation",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_runs_total",
			Help: "Total number of reconciliation passes",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_indexer_last_run_timestamp",
			Help: "Timestamp of the last reconciliation pass",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_indexer_last_run_duration_seconds",
			Help: "Duration of the last reconciliation pass in seconds",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_indexer_running",
			Help: "Whether a reconciliation pass is currently running (1 = running, 0 = idle)",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_errors_total",
			Help: "Total number of reconciliation passes that failed to list directories",
		},
	)

	IndexerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_indexer_parallel_workers",
			Help: "Number of file workers used by the last directory scan",
		},
	)

	IndexerDirectoryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_directory_outcomes_total",
			Help: "Directory reconciliation outcomes by final state",
		},
		[]string{"state"}, // "idle", "committed", "partially_failed"
	)

	IndexerDirectoryScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geoindex_indexer_directory_scan_duration_seconds",
			Help:    "Duration of a single dirty directory scan",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	IndexerFilesClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_files_classified_total",
			Help: "Files classified during scans by classification",
		},
		[]string{"class"}, // "vector", "raster", "non_geospatial", "unreadable"
	)

	IndexerRecordsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_records_persisted_total",
			Help: "Boundary records written by role",
		},
		[]string{"role"}, // "primary", "companion"
	)

	IndexerRecordsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_records_pruned_total",
			Help: "Boundary records removed because their file no longer exists",
		},
	)

	IndexerStoreWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_store_write_failures_total",
			Help: "Per-record store writes that failed during a scan",
		},
	)

	ExtractionWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_extraction_warnings_total",
			Help: "Bounds extraction warnings by kind",
		},
		[]string{"kind"}, // "unknown_crs", "reprojection_failure"
	)

	IndexerPollChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_poll_checks_total",
			Help: "Total number of change detection checks",
		},
	)

	IndexerWatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_indexer_watcher_events_total",
			Help: "Filesystem watcher events on tracked directories",
		},
		[]string{"event_type"},
	)

	IndexerWatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_indexer_watched_directories",
			Help: "Number of tracked directories currently being watched",
		},
	)
)

// Boundary library metrics
var (
	TrackedDirectoriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_tracked_directories",
			Help: "Number of tracked directories",
		},
	)

	BoundaryRecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_boundary_records",
			Help: "Number of persisted boundary records",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_filesystem_retry_attempts_total",
			Help: "Retry attempts after stale file handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoindex_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoindex_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_memory_usage_ratio",
			Help: "Go heap usage as a ratio of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoindex_memory_paused",
			Help: "Whether file decoding is paused by memory pressure (1 = paused)",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoindex_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
