package indexer

import "errors"

var (
	// ErrDirectoryVanished means a tracked directory could not be read
	// during detection, the walk, or the commit stat.
	ErrDirectoryVanished = errors.New("directory vanished")

	// ErrStoreWrite wraps a failed write of a single boundary record.
	ErrStoreWrite = errors.New("store write failure")

	// ErrIndexInProgress is returned when a pass is requested while one runs.
	ErrIndexInProgress = errors.New("index already in progress")

	// ErrIndexerStopped is returned when a pass is requested after Stop.
	ErrIndexerStopped = errors.New("indexer stopped")
)
