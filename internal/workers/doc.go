/*
Package workers sizes worker pools in containerized environments.

runtime.NumCPU reports the host CPU count even when a cgroup limits the
container to a fraction of it. GOMAXPROCS follows the container limit (Go
1.19+), so the helpers here derive pool sizes from it:

	dirWorkers := workers.FromEnv("INDEX_WORKERS", workers.ForCPU(4), 0)
	fileWorkers := workers.FromEnv("FILE_WORKERS", workers.ForIO(16), 0)

The indexer uses two pools: one across tracked directories and one across the
files of a single directory scan.
*/
package workers
