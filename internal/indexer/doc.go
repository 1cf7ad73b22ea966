/*
Package indexer keeps the boundary store consistent with the tracked
directories.

Each pass lists the tracked directories and reconciles them on a bounded
pool. Per directory the states are:

	Idle -> Dirty -> Scanning -> Committed | PartiallyFailed

A directory whose mtime equals the stored timestamp is Idle and costs one
stat. A Dirty directory is walked; its files are classified and their
boxes extracted on a second, per-directory pool; companions are grouped
with their primary; each record is written in its own transaction; records
for files that no longer exist are pruned; and finally the directory
timestamp is set to the mtime observed at commit. A directory that
disappears, or a pass that is cancelled, ends PartiallyFailed with the
timestamp untouched, so the next pass retries it.

Passes are started by polling, by a periodic forced rescan, by fsnotify
events on tracked roots (debounced) and by TriggerIndex.
*/
package indexer
