package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"geoindex/internal/database"
	"geoindex/internal/export"
	"geoindex/internal/geo"
	"geoindex/internal/geo/geotest"
	"geoindex/internal/indexer"
	"geoindex/internal/startup"
)

func setupTestHandlers(t *testing.T) (*Handlers, *database.Database, *indexer.Indexer) {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	idx := indexer.New(db, &geotest.Reader{}, geotest.NewReprojector(), indexer.Config{IndexWorkers: 2, FileWorkers: 2, PruneMissing: true})
	t.Cleanup(func() {
		waitForFirstPass(t, idx)
		idx.Stop()
		db.Close()
	})
	return New(db, idx, ""), db, idx
}

// waitForFirstPass blocks until a background pass started by a handler
// has finished, if one was started.
func waitForFirstPass(t *testing.T, idx *indexer.Indexer) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !idx.IsIndexing() {
			time.Sleep(20 * time.Millisecond)
			if !idx.IsIndexing() {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("background pass did not finish")
}

func waitForReady(t *testing.T, idx *indexer.Indexer) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !idx.IsReady() || idx.IsIndexing() {
		if time.Now().After(deadline) {
			t.Fatal("first pass did not complete")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func serve(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

// indexRegion tracks a directory holding a shapefile set and indexes it.
func indexRegion(t *testing.T, db *database.Database, idx *indexer.Indexer) string {
	t.Helper()
	data := t.TempDir()
	geotest.WriteFile(t, data, "region.shp", geotest.Vector(geo.Canonical, geo.Extent{MinX: -3, MaxX: -2, MinY: 50, MaxY: 51}))
	geotest.WriteFile(t, data, "region.dbf", "table")
	geotest.WriteFile(t, data, "sub/scene.tif", geotest.Raster(geo.Canonical, geo.Extent{MinX: 10, MinY: 10, MaxX: 11, MaxY: 11}))
	if _, err := db.AddDirectory(context.Background(), data); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	return data
}

func TestLivenessCheck(t *testing.T) {
	h, _, _ := setupTestHandlers(t)

	w := serve(h.LivenessCheck, http.MethodGet, "/livez", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if got := decode[map[string]string](t, w)["status"]; got != "alive" {
		t.Errorf("Expected status 'alive', got %q", got)
	}

	w = serve(h.LivenessCheck, http.MethodHead, "/livez", "")
	if w.Body.Len() != 0 {
		t.Error("HEAD response should have no body")
	}
}

func TestHealthAndReadinessBeforeAndAfterFirstPass(t *testing.T) {
	h, db, idx := setupTestHandlers(t)

	w := serve(h.HealthCheck, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health before first pass = %d, want 503", w.Code)
	}
	if got := decode[HealthResponse](t, w); got.Status != statusStarting {
		t.Errorf("status = %q, want %q", got.Status, statusStarting)
	}
	if w := serve(h.ReadinessCheck, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before first pass = %d, want 503", w.Code)
	}

	indexRegion(t, db, idx)

	w = serve(h.HealthCheck, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health after first pass = %d, want 200", w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != statusHealthy || !resp.Ready {
		t.Errorf("response = %+v, want healthy and ready", resp)
	}
	if resp.TrackedDirectories != 1 || resp.BoundaryRecords != 3 {
		t.Errorf("store summary = %d dirs / %d records, want 1 / 3", resp.TrackedDirectories, resp.BoundaryRecords)
	}
	if resp.Version != startup.Version {
		t.Errorf("Version = %q, want %q", resp.Version, startup.Version)
	}

	if w := serve(h.ReadinessCheck, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("readyz after first pass = %d, want 200", w.Code)
	}
}

func TestGetVersion(t *testing.T) {
	h, _, _ := setupTestHandlers(t)

	w := serve(h.GetVersion, http.MethodGet, "/version", "")
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Error("version should not be cached")
	}
	if got := decode[startup.BuildInfo](t, w); got.Version != startup.Version || got.GoVersion == "" {
		t.Errorf("build info = %+v", got)
	}
}

func TestDirectoryLifecycle(t *testing.T) {
	h, db, idx := setupTestHandlers(t)
	data := t.TempDir()
	geotest.WriteFile(t, data, "tile.tif", geotest.Raster(geo.Canonical, geo.Extent{MaxX: 1, MaxY: 1}))

	w := serve(h.AddDirectory, http.MethodPost, "/api/directories", `{"path":"`+data+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add = %d (%s), want 201", w.Code, w.Body.String())
	}
	waitForReady(t, idx)
	if records, _ := db.ListBoundaries(context.Background(), data); len(records) != 1 {
		t.Errorf("records after add = %+v, want the tile", records)
	}

	if w := serve(h.AddDirectory, http.MethodPost, "/api/directories", `{"path":"`+data+`/"}`); w.Code != http.StatusOK {
		t.Errorf("re-adding tracked directory = %d, want 200", w.Code)
	}

	dirs := decode[[]database.TrackedDirectory](t, serve(h.ListDirectories, http.MethodGet, "/api/directories", ""))
	if len(dirs) != 1 || dirs[0].Path != data {
		t.Fatalf("directories = %+v, want [%s]", dirs, data)
	}

	w = serve(h.RemoveDirectory, http.MethodDelete, "/api/directories?path="+data, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("remove = %d, want 204", w.Code)
	}
	if records, _ := db.ListBoundaries(context.Background(), data); len(records) != 0 {
		t.Errorf("records left after removing directory: %+v", records)
	}
	if w := serve(h.RemoveDirectory, http.MethodDelete, "/api/directories?path="+data, ""); w.Code != http.StatusNotFound {
		t.Errorf("second remove = %d, want 404", w.Code)
	}
}

func TestAddDirectoryValidation(t *testing.T) {
	h, _, _ := setupTestHandlers(t)
	file := geotest.WriteFile(t, t.TempDir(), "file.txt", "x")

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed JSON", `{"path":`},
		{"unknown field", `{"dir":"/data"}`},
		{"missing path", `{}`},
		{"relative path", `{"path":"data/maps"}`},
		{"missing directory", `{"path":"/definitely/not/here"}`},
		{"regular file", `{"path":"` + file + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h.AddDirectory, http.MethodPost, "/api/directories", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if decode[map[string]string](t, w)["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestAddNestedDirectoryConflicts(t *testing.T) {
	h, db, idx := setupTestHandlers(t)
	data := indexRegion(t, db, idx)
	parent := filepath.Dir(data)

	tests := []struct {
		name string
		path string
	}{
		{"inside tracked", filepath.Join(data, "sub")},
		{"above tracked", parent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h.AddDirectory, http.MethodPost, "/api/directories", `{"path":"`+tt.path+`"}`)
			if w.Code != http.StatusConflict {
				t.Errorf("status = %d, want 409", w.Code)
			}
		})
	}

	dirs, _ := db.ListTrackedDirectories(context.Background())
	if len(dirs) != 1 || dirs[0].Path != data {
		t.Errorf("tracked = %+v, want only %s", dirs, data)
	}
}

func TestGetBoundaries(t *testing.T) {
	h, db, idx := setupTestHandlers(t)
	data := indexRegion(t, db, idx)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"by parent", "?parent=" + data, []string{"region.dbf", "region.shp", "sub/scene.tif"}},
		{"under subdirectory", "?under=" + filepath.Join(data, "sub"), []string{"sub/scene.tif"}},
		{"intersecting region", "?west=-2.5&south=50.5&east=0&north=60", []string{"region.dbf", "region.shp"}},
		{"reversed corners", "?west=11&south=11&east=10.5&north=10.5", []string{"sub/scene.tif"}},
		{"touching edge", "?west=11&south=11&east=12&north=12", []string{"sub/scene.tif"}},
		{"no match", "?west=100&south=0&east=101&north=1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h.GetBoundaries, http.MethodGet, "/api/boundaries"+tt.query, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
			}
			got := decode[[]database.Boundary](t, w)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records %+v, want %v", len(got), got, tt.want)
			}
			for i, rel := range tt.want {
				if got[i].Path != filepath.Join(data, rel) {
					t.Errorf("record %d = %s, want %s", i, got[i].Path, rel)
				}
			}
		})
	}
}

func TestGetBoundariesCompanionSharesBox(t *testing.T) {
	h, db, idx := setupTestHandlers(t)
	data := indexRegion(t, db, idx)

	records := decode[[]database.Boundary](t, serve(h.GetBoundaries, http.MethodGet, "/api/boundaries?parent="+data, ""))
	byName := map[string]database.Boundary{}
	for _, r := range records {
		byName[filepath.Base(r.Path)] = r
	}
	if byName["region.dbf"].BBox != byName["region.shp"].BBox {
		t.Errorf("companion box %v differs from primary %v", byName["region.dbf"].BBox, byName["region.shp"].BBox)
	}
}

func TestGetBoundariesBadRequest(t *testing.T) {
	h, _, _ := setupTestHandlers(t)

	for _, query := range []string{"", "?west=1&south=2&east=3", "?west=a&south=0&east=1&north=1", "?west=NaN&south=0&east=1&north=1"} {
		w := serve(h.GetBoundaries, http.MethodGet, "/api/boundaries"+query, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q = %d, want 400", query, w.Code)
		}
	}
}

func TestTriggerReindex(t *testing.T) {
	h, db, idx := setupTestHandlers(t)
	indexRegion(t, db, idx)

	w := serve(h.TriggerReindex, http.MethodPost, "/api/reindex?force=true", "")
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
	if got := decode[map[string]string](t, w)["status"]; got != "started" && got != "queued" {
		t.Errorf("status = %q, want started or queued", got)
	}
	waitForFirstPass(t, idx)

	w = serve(h.TriggerReindex, http.MethodPost, "/api/reindex", "")
	if got := decode[map[string]string](t, w)["status"]; got != "started" && got != "queued" {
		t.Errorf("status = %q, want started or queued", got)
	}
}

func TestGetLastPassAndStats(t *testing.T) {
	h, db, idx := setupTestHandlers(t)

	if w := serve(h.GetLastPass, http.MethodGet, "/api/reindex/last", ""); w.Code != http.StatusNotFound {
		t.Errorf("last pass before any = %d, want 404", w.Code)
	}

	indexRegion(t, db, idx)

	w := serve(h.GetLastPass, http.MethodGet, "/api/reindex/last", "")
	if w.Code != http.StatusOK {
		t.Fatalf("last pass = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"state":"committed"`) {
		t.Errorf("last pass should render states by name: %s", w.Body.String())
	}

	stats := decode[StatsResponse](t, serve(h.GetStats, http.MethodGet, "/api/stats", ""))
	if stats.TrackedDirectories != 1 || stats.BoundaryRecords != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LastPass == nil || stats.LastPass.Committed != 1 {
		t.Errorf("LastPass = %+v, want 1 committed", stats.LastPass)
	}
}

func exportBody(paths []string, destination string) string {
	data, _ := json.Marshal(ExportRequest{Paths: paths, Destination: destination})
	return string(data)
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.Size()
}

func TestExportEndpoints(t *testing.T) {
	h, db, idx := setupTestHandlers(t)
	h.exportRoot = t.TempDir()
	data := indexRegion(t, db, idx)
	shp := filepath.Join(data, "region.shp")
	dbf := filepath.Join(data, "region.dbf")
	scene := filepath.Join(data, "sub", "scene.tif")

	size := decode[SizeResponse](t, serve(h.TotalSize, http.MethodPost, "/api/export/size", exportBody([]string{shp, dbf}, "")))
	if want := fileSize(t, shp) + fileSize(t, dbf); size.Bytes != want || size.Files != 2 {
		t.Errorf("size = %+v, want 2 files / %d bytes", size, want)
	}

	w := serve(h.WriteManifest, http.MethodPost, "/api/export/manifest", exportBody([]string{shp, dbf}, "list"))
	if w.Code != http.StatusOK {
		t.Fatalf("manifest = %d (%s)", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(h.exportRoot, "list.txt")); err != nil {
		t.Errorf("manifest not written under the export root: %v", err)
	}

	w = serve(h.CopyFiles, http.MethodPost, "/api/export/copy", exportBody([]string{shp}, h.exportRoot))
	if w.Code != http.StatusOK {
		t.Errorf("copy = %d (%s)", w.Code, w.Body.String())
	}
	if _, err := os.Stat(export.Destination(h.exportRoot, shp)); err != nil {
		t.Errorf("copy not written: %v", err)
	}
	if _, err := os.Stat(shp); err != nil {
		t.Errorf("copied source removed: %v", err)
	}

	// Still indexed, gone from disk.
	if err := os.Remove(dbf); err != nil {
		t.Fatal(err)
	}
	w = serve(h.CopyFiles, http.MethodPost, "/api/export/copy", exportBody([]string{dbf}, h.exportRoot))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("copying a missing file = %d, want 422", w.Code)
	}
	if got := decode[map[string]string](t, w); got["status"] != "error" || got["message"] == "" {
		t.Errorf("error status = %v", got)
	}

	w = serve(h.MoveFiles, http.MethodPost, "/api/export/move", exportBody([]string{scene}, "batch"))
	if got := decode[map[string]string](t, w); got["status"] != "success" {
		t.Errorf("move = %v", got)
	}
	if _, err := os.Stat(scene); !os.IsNotExist(err) {
		t.Error("moved file still at source")
	}
	if _, err := os.Stat(export.Destination(filepath.Join(h.exportRoot, "batch"), scene)); err != nil {
		t.Errorf("moved file not at destination: %v", err)
	}

	if w := serve(h.MoveFiles, http.MethodPost, "/api/export/move", exportBody([]string{shp}, "")); w.Code != http.StatusBadRequest {
		t.Errorf("missing destination = %d, want 400", w.Code)
	}
}

func TestExportRefusals(t *testing.T) {
	h, db, idx := setupTestHandlers(t)
	h.exportRoot = t.TempDir()
	data := indexRegion(t, db, idx)
	shp := filepath.Join(data, "region.shp")
	untracked := geotest.WriteFile(t, t.TempDir(), "secret.tif", "not for export")
	unindexed := geotest.WriteFile(t, data, "notes.txt", "written after the pass")
	outside := t.TempDir()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
		body    string
		want    int
	}{
		{"move untracked file", h.MoveFiles, "/api/export/move", exportBody([]string{untracked}, "out"), http.StatusForbidden},
		{"copy untracked file", h.CopyFiles, "/api/export/copy", exportBody([]string{untracked}, "out"), http.StatusForbidden},
		{"copy unindexed file in tracked directory", h.CopyFiles, "/api/export/copy", exportBody([]string{unindexed}, "out"), http.StatusForbidden},
		{"copy relative path", h.CopyFiles, "/api/export/copy", exportBody([]string{"region.shp"}, "out"), http.StatusForbidden},
		{"mixed paths", h.MoveFiles, "/api/export/move", exportBody([]string{shp, untracked}, "out"), http.StatusForbidden},
		{"size of untracked file", h.TotalSize, "/api/export/size", exportBody([]string{untracked}, ""), http.StatusForbidden},
		{"move to parent of root", h.MoveFiles, "/api/export/move", exportBody([]string{shp}, "../escape"), http.StatusForbidden},
		{"copy outside root", h.CopyFiles, "/api/export/copy", exportBody([]string{shp}, outside), http.StatusForbidden},
		{"manifest over system file", h.WriteManifest, "/api/export/manifest", exportBody([]string{shp}, "/etc/hosts"), http.StatusForbidden},
		{"manifest beside root", h.WriteManifest, "/api/export/manifest", exportBody([]string{shp}, h.exportRoot), http.StatusForbidden},
		{"no paths", h.CopyFiles, "/api/export/copy", exportBody(nil, "out"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.handler, http.MethodPost, tt.target, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	for _, p := range []string{shp, untracked, unindexed} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be left in place: %v", p, err)
		}
	}
	if entries, _ := os.ReadDir(outside); len(entries) != 0 {
		t.Errorf("files written outside the export root: %v", entries)
	}
	if entries, _ := os.ReadDir(h.exportRoot); len(entries) != 0 {
		t.Errorf("refused exports wrote into the root: %v", entries)
	}
	if _, err := os.Stat(h.exportRoot + ".txt"); !os.IsNotExist(err) {
		t.Error("manifest written beside the export root")
	}
}

func TestExportDisabledWithoutRoot(t *testing.T) {
	h, db, idx := setupTestHandlers(t)
	data := indexRegion(t, db, idx)
	shp := filepath.Join(data, "region.shp")
	dest := t.TempDir()

	for _, tt := range []struct {
		handler http.HandlerFunc
		target  string
	}{
		{h.MoveFiles, "/api/export/move"},
		{h.CopyFiles, "/api/export/copy"},
		{h.WriteManifest, "/api/export/manifest"},
	} {
		w := serve(tt.handler, http.MethodPost, tt.target, exportBody([]string{shp}, dest))
		if w.Code != http.StatusForbidden {
			t.Errorf("%s = %d, want 403", tt.target, w.Code)
		}
	}
	if _, err := os.Stat(shp); err != nil {
		t.Errorf("source should be left in place: %v", err)
	}
	if entries, _ := os.ReadDir(dest); len(entries) != 0 {
		t.Errorf("disabled export wrote %v", entries)
	}

	w := serve(h.TotalSize, http.MethodPost, "/api/export/size", exportBody([]string{shp}, ""))
	if w.Code != http.StatusOK {
		t.Errorf("size = %d, want 200 with exports disabled", w.Code)
	}
}

func TestMetricsHandler(t *testing.T) {
	h, _, _ := setupTestHandlers(t)

	w := httptest.NewRecorder()
	h.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("metrics = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "geoindex_") {
		t.Error("expected geoindex_ metrics in output")
	}
}
