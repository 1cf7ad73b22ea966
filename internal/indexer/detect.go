package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"geoindex/internal/database"
	"geoindex/internal/filesystem"
)

// State is the position of one directory in a reconciliation pass.
type State int

const (
	StateIdle State = iota
	StateDirty
	StateScanning
	StateCommitted
	StatePartiallyFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateScanning:
		return "scanning"
	case StateCommitted:
		return "committed"
	case StatePartiallyFailed:
		return "partially_failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Timestamp converts an mtime to the seconds value stored in the
// directories table. Stored and observed values go through the same
// conversion so equal mtimes compare equal.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Detection is the result of comparing a tracked directory with disk.
type Detection struct {
	State State
	// Mtime is the directory's current mtime in seconds, zero if it vanished.
	Mtime float64
}

// Detect compares the stored timestamp of dir with its current mtime. An
// equal value is StateIdle; a different or missing one is StateDirty. A
// directory that cannot be stat'ed is StateDirty with an error wrapping
// ErrDirectoryVanished.
func Detect(dir database.TrackedDirectory, retry filesystem.RetryConfig) (Detection, error) {
	info, err := filesystem.StatWithRetry(dir.Path, retry)
	if err != nil {
		return Detection{State: StateDirty}, vanished(dir.Path, err)
	}
	if !info.IsDir() {
		return Detection{State: StateDirty}, fmt.Errorf("%w: %s is not a directory", ErrDirectoryVanished, dir.Path)
	}

	mtime := Timestamp(info.ModTime())
	if dir.Timestamp != nil && *dir.Timestamp == mtime {
		return Detection{State: StateIdle, Mtime: mtime}, nil
	}
	return Detection{State: StateDirty, Mtime: mtime}, nil
}

func vanished(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrDirectoryVanished, path)
	}
	return fmt.Errorf("%w: %s: %v", ErrDirectoryVanished, path, err)
}
