package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the number of workers for a task with the given CPU
// multiplier. It respects container CPU limits via GOMAXPROCS.
//
// Decoding geodata is mostly I/O (opening files, reading headers) with short
// CPU bursts for CRS transforms, so callers typically use ForIO.
//
// The limit parameter caps the worker count. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// FromEnv returns the positive integer stored in the environment variable key,
// capped by limit, or fallback when the variable is unset or invalid.
func FromEnv(key string, fallback, limit int) int {
	if override := os.Getenv(key); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}
	return fallback
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}
