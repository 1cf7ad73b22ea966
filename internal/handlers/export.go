package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"geoindex/internal/database"
	"geoindex/internal/export"
	"geoindex/internal/logging"
)

// ExportRequest is the body of the /api/export endpoints.
type ExportRequest struct {
	Paths       []string `json:"paths"`
	Destination string   `json:"destination,omitempty"`
}

// SizeResponse is returned by /api/export/size.
type SizeResponse struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

var errNotIndexed = errors.New("not an indexed file")

// MoveFiles moves the listed files under the destination directory. The
// tracked directories they left are rescanned on the next pass.
func (h *Handlers) MoveFiles(w http.ResponseWriter, r *http.Request) {
	moved := h.runExport(w, r, nil, export.MoveFiles)
	if len(moved) > 0 {
		h.indexer.MarkChanged(trackedRoots(moved)...)
	}
}

// CopyFiles copies the listed files under the destination directory.
func (h *Handlers) CopyFiles(w http.ResponseWriter, r *http.Request) {
	h.runExport(w, r, nil, export.CopyFiles)
}

// WriteManifest writes the listed paths to a text file.
func (h *Handlers) WriteManifest(w http.ResponseWriter, r *http.Request) {
	h.runExport(w, r, export.ManifestPath, export.WriteManifest)
}

// runExport accepts only indexed files as sources and only destinations
// inside the export root. target maps the requested destination to the path
// fn will write. It returns the records handed to fn.
func (h *Handlers) runExport(w http.ResponseWriter, r *http.Request, target func(string) string, fn func([]string, string) export.Status) []database.Boundary {
	req, records, ok := h.decodeExport(w, r)
	if !ok {
		return nil
	}
	if req.Destination == "" {
		writeJSONError(w, "destination is required", http.StatusBadRequest)
		return nil
	}

	dest := req.Destination
	if target != nil {
		dest = target(dest)
	}
	dest, err := export.Within(h.exportRoot, dest)
	if err != nil {
		logging.Warn("export to %q refused: %v", req.Destination, err)
		writeJSONError(w, err.Error(), http.StatusForbidden)
		return nil
	}

	status := fn(req.Paths, dest)
	code := http.StatusOK
	if !status.OK() {
		code = http.StatusUnprocessableEntity
	}
	writeJSONResponse(w, code, status)
	return records
}

// TotalSize returns the combined size of the listed files.
func (h *Handlers) TotalSize(w http.ResponseWriter, r *http.Request) {
	req, _, ok := h.decodeExport(w, r)
	if !ok {
		return
	}

	size, err := export.TotalSize(req.Paths)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSONResponse(w, http.StatusOK, SizeResponse{Files: len(req.Paths), Bytes: size})
}

// decodeExport reads an ExportRequest and looks up the record of every path.
// Paths the index holds no record for are refused. It writes the error
// response itself.
func (h *Handlers) decodeExport(w http.ResponseWriter, r *http.Request) (ExportRequest, []database.Boundary, bool) {
	var req ExportRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return req, nil, false
	}
	if len(req.Paths) == 0 {
		writeJSONError(w, "paths are required", http.StatusBadRequest)
		return req, nil, false
	}

	records := make([]database.Boundary, 0, len(req.Paths))
	for i, p := range req.Paths {
		b, err := h.indexedFile(r, p)
		if errors.Is(err, errNotIndexed) {
			logging.Warn("export of %q refused: %v", p, err)
			writeJSONError(w, err.Error(), http.StatusForbidden)
			return req, nil, false
		}
		if err != nil {
			logging.Error("looking up %s: %v", p, err)
			writeJSONError(w, "Failed to look up paths", http.StatusInternalServerError)
			return req, nil, false
		}
		req.Paths[i] = b.Path
		records = append(records, b)
	}
	return req, records, true
}

func (h *Handlers) indexedFile(r *http.Request, path string) (database.Boundary, error) {
	if !filepath.IsAbs(path) {
		return database.Boundary{}, fmt.Errorf("%s: %w", path, errNotIndexed)
	}
	b, err := h.db.GetBoundary(r.Context(), filepath.Clean(path))
	if errors.Is(err, database.ErrNotFound) {
		return database.Boundary{}, fmt.Errorf("%s: %w", path, errNotIndexed)
	}
	return b, err
}

func trackedRoots(records []database.Boundary) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range records {
		if _, ok := seen[b.Parent]; !ok {
			seen[b.Parent] = struct{}{}
			out = append(out, b.Parent)
		}
	}
	return out
}
