package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, state := range []string{"idle", "committed", "partially_failed"} {
		IndexerDirectoryOutcomes.WithLabelValues(state)
	}

	for _, class := range []string{"vector", "raster", "non_geospatial", "unreadable"} {
		IndexerFilesClassified.WithLabelValues(class)
	}

	for _, role := range []string{"primary", "companion"} {
		IndexerRecordsPersisted.WithLabelValues(role)
	}

	for _, kind := range []string{"unknown_crs", "reprojection_failure"} {
		ExtractionWarnings.WithLabelValues(kind)
	}

	for _, op := range []string{"stat", "open", "read"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "list_directories", "get_directory",
		"add_directory", "remove_directory", "update_directory_timestamp", "insert_boundary",
		"delete_boundary", "list_boundaries", "list_boundaries_under", "query_intersecting", "count"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
