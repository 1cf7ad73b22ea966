package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"geoindex/internal/database"
	"geoindex/internal/geo"
	"geoindex/internal/geo/geotest"
	"geoindex/internal/handlers"
	"geoindex/internal/indexer"
	"geoindex/internal/metrics"
	"geoindex/internal/startup"
)

func setupTestServer(t *testing.T) (*database.Database, *indexer.Indexer, http.Handler) {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	idx := indexer.New(db, &geotest.Reader{}, geotest.NewReprojector(), indexer.Config{IndexWorkers: 1, FileWorkers: 1})
	return db, idx, setupRouter(handlers.New(db, idx, ""))
}

func TestDbStatsAdapter(t *testing.T) {
	db, _, _ := setupTestServer(t)
	if _, err := db.AddDirectory(context.Background(), "/data/survey"); err != nil {
		t.Fatal(err)
	}

	var provider metrics.StatsProvider = &dbStatsAdapter{db: db}
	stats, err := provider.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if stats.TrackedDirectories != 1 || stats.BoundaryRecords != 0 {
		t.Errorf("stats = %+v, want 1 directory and 0 records", stats)
	}
}

func TestSetupRouter(t *testing.T) {
	_, _, router := setupTestServer(t)

	tests := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodGet, "/livez", "", http.StatusOK},
		{http.MethodHead, "/livez", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/version", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/directories", "", http.StatusOK},
		{http.MethodPost, "/api/directories", `{"path":"relative"}`, http.StatusBadRequest},
		{http.MethodDelete, "/api/directories?path=/not/tracked", "", http.StatusNotFound},
		{http.MethodGet, "/api/boundaries", "", http.StatusBadRequest},
		{http.MethodGet, "/api/boundaries?west=-10&south=-10&east=10&north=10", "", http.StatusOK},
		{http.MethodGet, "/api/reindex/last", "", http.StatusNotFound},
		{http.MethodGet, "/api/stats", "", http.StatusOK},
		{http.MethodPost, "/api/export/size", `{"paths":[]}`, http.StatusBadRequest},
		{http.MethodPost, "/api/export/copy", `{"paths":["/etc/passwd"],"destination":"/tmp/out"}`, http.StatusForbidden},
		{http.MethodPut, "/api/boundaries", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.target, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestEndToEndIndexAndQuery(t *testing.T) {
	db, idx, router := setupTestServer(t)
	data := t.TempDir()
	geotest.WriteFile(t, data, "tile.tif", geotest.Raster(geo.Canonical, geo.Extent{MinX: 4, MinY: 50, MaxX: 5, MaxY: 51}))
	if _, err := db.AddDirectory(context.Background(), data); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/boundaries?west=4.5&south=50.5&east=6&north=52", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var got []database.Boundary
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Path != filepath.Join(data, "tile.tif") {
		t.Errorf("boundaries = %+v, want tile.tif", got)
	}
}

func TestIndexerConfig(t *testing.T) {
	config := &startup.Config{
		PollInterval:  time.Second,
		IndexInterval: time.Hour,
		IndexWorkers:  3,
		FileWorkers:   5,
		PruneMissing:  false,
		WatchEnabled:  false,
		WatchDebounce: time.Millisecond,
	}
	ic := indexerConfig(config)
	if ic.PollInterval != time.Second || ic.IndexInterval != time.Hour {
		t.Errorf("intervals = %v/%v", ic.PollInterval, ic.IndexInterval)
	}
	if ic.IndexWorkers != 3 || ic.FileWorkers != 5 {
		t.Errorf("workers = %d/%d, want 3/5", ic.IndexWorkers, ic.FileWorkers)
	}
	if ic.PruneMissing || ic.WatchEnabled || ic.WatchDebounce != time.Millisecond {
		t.Errorf("flags = %+v", ic)
	}
}

func TestSeedDirectories(t *testing.T) {
	db, _, _ := setupTestServer(t)
	if _, err := db.AddDirectory(context.Background(), "/data/a"); err != nil {
		t.Fatal(err)
	}

	seedDirectories(db, []string{"/data/a", "/data/b"})

	dirs, err := db.ListTrackedDirectories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 {
		t.Errorf("tracked = %+v, want /data/a and /data/b", dirs)
	}
}

func TestMetricsServer(t *testing.T) {
	db, idx, _ := setupTestServer(t)
	srv := newMetricsServer("0", handlers.New(db, idx, ""))

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("/metrics = %d, want 200", w.Code)
	}
	if srv.ReadTimeout <= 0 || srv.WriteTimeout <= 0 {
		t.Error("metrics server should have timeouts")
	}
}
