// Package metrics provides Prometheus instrumentation for the media curator.
//
// All metrics are prefixed with "media_curator_" and registered through
// promauto at package initialization.
//
// # Metric Categories
//
// ## Recycle Bin
//
//   - RecycleBinOperationsTotal: batch operations by operation and status
//   - RecycleBinPathsTotal: per-path outcomes (ok, io_error, verify_failed, index_error)
//   - RecycleBinOperationDuration: batch duration histogram
//   - PathMutationsTotal: rename, move, hide and rotate operations
//
// ## Metadata Repair
//
//   - RepairRunsTotal, RepairFilesTotal, RepairBatchesTotal, RepairBatchSize
//
// ## Database and Index Contents
//
//   - DBQueryTotal, DBQueryDuration, DBRowsAffected, DBConnectionsOpen
//   - IndexedMediaTotal, IndexedDirectoriesTotal, RecycleBinBytes (refreshed by Collector)
//
// ## Filesystem
//
// The filesystem package cannot import this package (it would create a cycle),
// so it reports through the filesystem.Observer interface. NewFilesystemObserver
// returns the Prometheus-backed implementation:
//
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//
// # Usage
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape, then expose promhttp.Handler() on /metrics.
package metrics
