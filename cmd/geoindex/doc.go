// Package main provides the entry point for the geoindex service.
//
// geoindex keeps a SQLite table of geographic bounding boxes for every
// geospatial file under a set of tracked directories. Each pass compares a
// directory's mtime with the value stored at its last committed scan and
// rescans only what changed. Boxes are reprojected to EPSG:4326 through
// GDAL/OGR; companion files of a format (a shapefile's .dbf, .prj, .shx)
// inherit the box of their primary file.
//
// # Application Lifecycle
//
//  1. Memory Configuration: GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
//     (default 0.7, leaving room for GDAL's off-heap cache)
//  2. Configuration Loading: .env merge, environment variables, directories seed file
//  3. Database Initialization: opens the store in WAL mode; failure here is fatal
//  4. Directory Seeding: registers DIRECTORIES_FILE entries not yet tracked
//  5. Indexer: initial pass, mtime polling, periodic forced rescans, fsnotify
//     watches; file decoding pauses while the heap is near its limit
//  6. Metrics Collector: record counts and pool gauges every minute
//  7. HTTP Server Setup: routes, W3C access log, per-route metrics
//  8. Graceful Shutdown: SIGINT/SIGTERM stops everything; directories cut off
//     mid-scan keep their old timestamp and are rescanned on the next start
//
// # HTTP API
//
//	GET    /health, /healthz, /livez, /readyz, /version, /metrics
//	GET    /api/directories
//	POST   /api/directories            {"path": "/data/survey"}
//	DELETE /api/directories?path=/data/survey
//	GET    /api/boundaries?parent=|under=|west=&south=&east=&north=
//	POST   /api/reindex[?force=true]
//	GET    /api/reindex/last
//	GET    /api/stats
//	POST   /api/export/move, /api/export/copy, /api/export/manifest
//	       {"paths": [...], "destination": "/out"}
//	POST   /api/export/size            {"paths": [...]}
//
// A separate metrics server (METRICS_PORT, default 9090) serves /metrics and
// /health when METRICS_ENABLED is true.
//
// # Build Requirements
//
// CGO is required for SQLite and GDAL (3.x with PROJ):
//
//	go build -o geoindex ./cmd/geoindex
//
// See [geoindex/internal/startup] for the environment variables.
package main
