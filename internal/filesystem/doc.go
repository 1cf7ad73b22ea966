/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Tracked directories are frequently network mounts. A stat of a directory root
or a read of a projection sidecar can fail with ESTALE while the server
revalidates a handle; such failures are transient and are retried with
exponential backoff. Every other error is returned immediately so that a
missing directory is still reported as missing on the first attempt.

	info, err := filesystem.StatWithRetry("/data/survey", filesystem.DefaultRetryConfig())

Retry metrics are recorded through an Observer installed with SetObserver.
*/
package filesystem
