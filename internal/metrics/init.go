package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"media", "staging", "database", "cache", "unknown"}
	fsOps := []string{"copy", "move", "delete", "rename", "stat"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		FilesystemBytesCopied.WithLabelValues(vol)

		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"trash", "restore", "empty", "delete"} {
		RecycleBinOperationsTotal.WithLabelValues(op, "success")
		RecycleBinOperationsTotal.WithLabelValues(op, "error")
		RecycleBinOperationDuration.WithLabelValues(op)
		for _, outcome := range []string{"ok", "io_error", "verify_failed", "index_error"} {
			RecycleBinPathsTotal.WithLabelValues(op, outcome)
		}
	}

	for _, op := range []string{"rename", "move", "hide", "rotate"} {
		PathMutationsTotal.WithLabelValues(op, "success")
		PathMutationsTotal.WithLabelValues(op, "error")
	}

	for _, s := range []string{"success", "unknown_error", "error"} {
		RepairRunsTotal.WithLabelValues(s)
	}
	for _, s := range []string{"updated", "skipped"} {
		RepairFilesTotal.WithLabelValues(s)
	}
	for _, s := range []string{"applied", "empty", "error"} {
		RepairBatchesTotal.WithLabelValues(s)
	}

	for _, s := range []string{"delivered", "dropped", "error"} {
		InvalidationsTotal.WithLabelValues(s)
	}

	for _, s := range []string{"success", "error"} {
		RescanRunsTotal.WithLabelValues(s)
	}
	RescanReconciledTotal.WithLabelValues("adopted_staged")
	RescanReconciledTotal.WithLabelValues("dropped_orphan")

	IndexedMediaTotal.WithLabelValues("active")
	IndexedMediaTotal.WithLabelValues("trashed")

	for _, op := range []string{"get_all_directories", "upsert_directory", "upsert_directories",
		"delete_directory", "update_directory_stats", "rename_directory", "delete_recycle_bin_row",
		"upsert_media", "update_deleted_flag", "update_media_path", "update_favorite_date_taken",
		"clear_recycle_bin", "delete_media"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
