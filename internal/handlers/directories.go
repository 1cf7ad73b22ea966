package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"geoindex/internal/database"
	"geoindex/internal/logging"
)

// DirectoryRequest is the body of POST /api/directories.
type DirectoryRequest struct {
	Path string `json:"path"`
}

// ListDirectories returns every tracked directory and its last commit time.
func (h *Handlers) ListDirectories(w http.ResponseWriter, r *http.Request) {
	dirs, err := h.db.ListTrackedDirectories(r.Context())
	if err != nil {
		logging.Error("listing directories: %v", err)
		writeJSONError(w, "Failed to list directories", http.StatusInternalServerError)
		return
	}
	if dirs == nil {
		dirs = []database.TrackedDirectory{}
	}
	writeJSONResponse(w, http.StatusOK, dirs)
}

// AddDirectory starts tracking a directory and schedules its first scan.
func (h *Handlers) AddDirectory(w http.ResponseWriter, r *http.Request) {
	var req DirectoryRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	path, err := cleanDirectoryPath(req.Path)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		writeJSONError(w, "path is not an existing directory", http.StatusBadRequest)
		return
	}

	added, err := h.db.AddDirectory(r.Context(), path)
	if errors.Is(err, database.ErrNestedDirectory) {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		logging.Error("adding directory %s: %v", path, err)
		writeJSONError(w, "Failed to add directory", http.StatusInternalServerError)
		return
	}
	if !added {
		writeJSONResponse(w, http.StatusOK, DirectoryRequest{Path: path})
		return
	}

	logging.Info("now tracking %s", path)
	h.indexer.MarkChanged(path)
	writeJSONResponse(w, http.StatusCreated, DirectoryRequest{Path: path})
}

// RemoveDirectory stops tracking ?path= and drops its records.
func (h *Handlers) RemoveDirectory(w http.ResponseWriter, r *http.Request) {
	path, err := cleanDirectoryPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.db.RemoveDirectory(r.Context(), path); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "directory is not tracked", http.StatusNotFound)
			return
		}
		logging.Error("removing directory %s: %v", path, err)
		writeJSONError(w, "Failed to remove directory", http.StatusInternalServerError)
		return
	}

	logging.Info("stopped tracking %s", path)
	w.WriteHeader(http.StatusNoContent)
}

func cleanDirectoryPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	if !filepath.IsAbs(path) {
		return "", errors.New("path must be absolute")
	}
	return filepath.Clean(path), nil
}
