// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig]. Before
// reading them, the file named by ENV_FILE (default ./.env, skipped when
// absent) is merged into the environment; variables already set win.
//
//   - DATABASE_DIR: Directory holding geoindex.db (default: /database)
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - POLL_INTERVAL: How often tracked directories are checked for mtime changes (default: 30s)
//   - INDEX_INTERVAL: How often every directory is rescanned regardless of mtime (default: 6h, 0 disables)
//   - INDEX_WORKERS: Directories reconciled in parallel (default: one per CPU, max 4)
//   - FILE_WORKERS: Files decoded in parallel within a directory (default: two per CPU, max 8)
//   - PRUNE_MISSING: Delete records whose file is gone after a committed scan (default: true)
//   - WATCH_ENABLED: Watch tracked roots with fsnotify (default: true)
//   - WATCH_DEBOUNCE: Quiet period before watched changes trigger a pass (default: 2s)
//   - DIRECTORIES_FILE: YAML file of directories to track at startup
//   - EXPORT_ROOT: Directory that move, copy and manifest exports must write under (default: unset, exports disabled)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directories file
//
//	directories:
//	  - /data/survey
//	  - /mnt/imagery
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
