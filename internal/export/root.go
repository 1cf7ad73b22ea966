package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrExportDisabled is returned when no export root is configured.
	ErrExportDisabled = errors.New("export is disabled")

	// ErrOutsideRoot is returned when a destination resolves outside the
	// export root.
	ErrOutsideRoot = errors.New("destination is outside the export root")
)

// Within resolves dest against root and returns the cleaned absolute path.
// Relative destinations are taken from root. A destination that leaves root
// through ".." or through a symlink below root is rejected.
func Within(root, dest string) (string, error) {
	if root == "" {
		return "", ErrExportDisabled
	}
	root = filepath.Clean(root)
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(root, dest)
	}
	dest = filepath.Clean(dest)
	if !under(root, dest) {
		return "", ErrOutsideRoot
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	realDest, err := resolveExisting(dest)
	if err != nil {
		return "", err
	}
	if !under(realRoot, realDest) {
		return "", ErrOutsideRoot
	}
	return dest, nil
}

// under reports whether path is dir or lies below it.
func under(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting evaluates symlinks in the longest existing prefix of path
// and appends the part that does not exist yet.
func resolveExisting(path string) (string, error) {
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(path)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(path)
		if parent == path {
			return "", err
		}
		rest = append([]string{filepath.Base(path)}, rest...)
		path = parent
	}
}

// ManifestPath is the file WriteManifest writes for dest.
func ManifestPath(dest string) string {
	if strings.HasSuffix(dest, ".txt") {
		return dest
	}
	return dest + ".txt"
}
