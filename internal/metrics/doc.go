// Package metrics provides Prometheus instrumentation for geoindex.
//
// All metrics are prefixed with "geoindex_" and registered through promauto at
// package init, so importing the package is enough to expose them on the
// /metrics endpoint.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Database Metrics
//   - DBQueryTotal: Counter of boundary store operations by operation and status
//   - DBQueryDuration: Histogram of operation duration
//   - DBConnectionsOpen / DBConnectionsInUse: pool gauges
//
// ## Indexer Metrics
//   - IndexerRunsTotal, IndexerLastRunTimestamp, IndexerLastRunDuration, IndexerIsRunning
//   - IndexerDirectoryOutcomes: per-directory final state (idle, committed, partially_failed)
//   - IndexerFilesClassified: vector, raster, non_geospatial, unreadable
//   - IndexerRecordsPersisted: primary and companion records written
//   - IndexerRecordsPruned, IndexerStoreWriteFailures
//   - ExtractionWarnings: unknown_crs, reprojection_failure
//
// ## Filesystem Metrics
//   - FilesystemRetry*: ESTALE retry behaviour, recorded through the
//     filesystem.Observer implemented in observer.go
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
