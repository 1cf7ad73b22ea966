// Package export hands indexed files to outside consumers: moving or copying
// them under a destination root, writing a manifest of their paths, and
// totalling their size.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"geoindex/internal/filesystem"
	"geoindex/internal/logging"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Status is the result reported to callers of an export operation.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func success() Status { return Status{Status: StatusSuccess} }

func failure(err error) Status { return Status{Status: StatusError, Message: err.Error()} }

// OK reports whether the operation succeeded.
func (s Status) OK() bool { return s.Status == StatusSuccess }

var log = logging.New("export")

// Destination maps an absolute source path to its location under destRoot.
// Volume markers are dropped so that C:\maps\a.tif lands in destRoot\C\maps.
func Destination(destRoot, path string) string {
	return filepath.Join(destRoot, strings.ReplaceAll(path, ":", ""))
}

// MoveFiles moves every path under destRoot, preserving its directory
// structure. It stops at the first failure; files already moved stay moved.
func MoveFiles(paths []string, destRoot string) Status {
	return transfer("move", paths, destRoot, moveFile)
}

// CopyFiles is MoveFiles without removing the sources.
func CopyFiles(paths []string, destRoot string) Status {
	return transfer("copy", paths, destRoot, copyFile)
}

func transfer(op string, paths []string, destRoot string, fn func(src, dst string) error) Status {
	if destRoot == "" {
		return failure(errors.New("destination is required"))
	}
	for _, src := range paths {
		dst := Destination(destRoot, src)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			log.Warn("%s %s: %v", op, src, err)
			return failure(err)
		}
		if err := fn(src, dst); err != nil {
			log.Warn("%s %s: %v", op, src, err)
			return failure(err)
		}
		log.Debug("%s %s -> %s", op, src, dst)
	}
	log.Info("%s of %d files to %s complete", op, len(paths), destRoot)
	return success()
}

func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	// Different filesystems: copy then remove.
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := filesystem.OpenWithRetry(src, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

// WriteManifest writes paths to dest, one JSON string per line. A .txt
// extension is added when dest has none.
func WriteManifest(paths []string, dest string) Status {
	if dest == "" {
		return failure(errors.New("destination is required"))
	}
	dest = ManifestPath(dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return failure(err)
	}

	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		b, err := json.Marshal(p)
		if err != nil {
			return failure(err)
		}
		lines = append(lines, string(b))
	}
	if err := os.WriteFile(dest, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		log.Warn("writing manifest %s: %v", dest, err)
		return failure(err)
	}
	log.Info("wrote manifest of %d files to %s", len(paths), dest)
	return success()
}

// TotalSize returns the combined size in bytes of paths.
func TotalSize(paths []string) (int64, error) {
	retry := filesystem.DefaultRetryConfig()
	var total int64
	for _, p := range paths {
		info, err := filesystem.StatWithRetry(p, retry)
		if err != nil {
			return 0, fmt.Errorf("size of %s: %w", p, err)
		}
		total += info.Size()
	}
	return total, nil
}
