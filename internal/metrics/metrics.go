package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_db_rows_affected",
			Help:    "Rows affected by database write operations",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Index contents, refreshed by the Collector
var (
	IndexedMediaTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_curator_indexed_media_total",
			Help: "Number of media rows in the index by state",
		},
		[]string{"state"}, // "active", "trashed"
	)

	IndexedDirectoriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_indexed_directories_total",
			Help: "Number of directory rows in the index",
		},
	)

	RecycleBinBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_recycle_bin_bytes",
			Help: "Total size of trashed media in bytes",
		},
	)
)

// Recycle bin metrics
var (
	RecycleBinOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_recycle_bin_operations_total",
			Help: "Total number of recycle bin batch operations",
		},
		[]string{"operation", "status"}, // operation: trash, restore, empty, delete
	)

	RecycleBinPathsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_recycle_bin_paths_total",
			Help: "Per-path outcomes of recycle bin operations",
		},
		[]string{"operation", "outcome"}, // outcome: ok, io_error, verify_failed, index_error
	)

	RecycleBinOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_recycle_bin_operation_duration_seconds",
			Help:    "Recycle bin batch operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	PathMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_path_mutations_total",
			Help: "Total number of rename/move/hide/rotate operations",
		},
		[]string{"operation", "status"},
	)
)

// Metadata repair metrics
var (
	RepairRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_repair_runs_total",
			Help: "Total number of date-taken repair runs",
		},
		[]string{"status"},
	)

	RepairFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_repair_files_total",
			Help: "Files seen by the date-taken repairer",
		},
		[]string{"outcome"}, // "updated", "skipped"
	)

	RepairBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_repair_batches_total",
			Help: "Batches flushed to the content index",
		},
		[]string{"status"}, // "applied", "empty", "error"
	)

	RepairBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_curator_repair_batch_size",
			Help:    "Number of operations per content index batch",
			Buckets: []float64{1, 5, 10, 20, 30, 40, 50},
		},
	)
)

// Cache invalidation metrics
var (
	InvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_invalidations_total",
			Help: "Cache invalidation notifications",
		},
		[]string{"status"}, // "delivered", "dropped", "error"
	)
)

// Rescan metrics
var (
	RescanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_rescan_runs_total",
			Help: "Total number of rescans",
		},
		[]string{"status"},
	)

	RescanLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_rescan_last_duration_seconds",
			Help: "Duration of the last rescan in seconds",
		},
	)

	RescanReconciledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_rescan_reconciled_total",
			Help: "Index rows repaired by rescans",
		},
		[]string{"action"}, // "adopted_staged", "dropped_orphan"
	)
)

// Task runner metrics
var (
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_tasks_in_flight",
			Help: "Background tasks currently running",
		},
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_tasks_total",
			Help: "Background tasks completed",
		},
		[]string{"kind", "status"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations by volume and type",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and type",
		},
		[]string{"volume", "operation"},
	)

	FilesystemBytesCopied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_bytes_copied_total",
			Help: "Bytes copied by the file mover",
		},
		[]string{"volume"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_retry_attempts_total",
			Help: "Retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_retry_success_total",
			Help: "Operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_go_memlimit_bytes",
			Help: "Configured runtime soft memory limit",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_memory_usage_ratio",
			Help: "Heap usage as a fraction of the soft memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_memory_paused",
			Help: "1 while image decodes are held back by memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_memory_gc_pauses_total",
			Help: "Times memory pressure paused image decodes",
		},
	)
)

// AppInfo exposes build information as labels
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "media_curator_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
