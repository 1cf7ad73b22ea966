// Package memory keeps the indexer inside its container memory budget.
//
// GDAL allocates its block cache and driver buffers outside the Go heap, so
// the Go runtime cannot see most of the memory a scan uses. [ConfigureFromEnv]
// therefore gives the Go heap only a share of the container limit:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container limit in bytes, usually injected through the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the heap (default 0.7).
//
// A [Monitor] samples heap usage and provides backpressure. File workers call
// [Monitor.Wait] before opening each file; once usage crosses PauseAt new
// decodes block until it falls back under ResumeAt. Directories cut off by
// cancellation while waiting are left unchanged and retried on the next pass.
package memory
