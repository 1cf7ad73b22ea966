package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoindex/internal/database"
	"geoindex/internal/filesystem"
	"geoindex/internal/geo/gdal"
	"geoindex/internal/handlers"
	"geoindex/internal/indexer"
	"geoindex/internal/logging"
	"geoindex/internal/memory"
	"geoindex/internal/metrics"
	"geoindex/internal/middleware"
	"geoindex/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// dbStatsAdapter refreshes connection pool gauges alongside the record counts.
type dbStatsAdapter struct {
	db *database.Database
}

// Counts implements metrics.StatsProvider
func (a *dbStatsAdapter) Counts(ctx context.Context) (metrics.Stats, error) {
	a.db.UpdateDBMetrics()
	return a.db.Counts(ctx)
}

func main() {
	startTime := time.Now()

	// Before significant allocations; GDAL memory lives outside the heap
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	// Only failure to open the store is fatal
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	seedDirectories(db, config.Directories)

	startup.LogIndexerInit(config)
	idx := indexer.New(db, gdal.NewReader(), gdal.NewReprojector(), indexerConfig(config))
	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()
	idx.SetGate(memMonitor)
	if err := idx.Start(); err != nil {
		logging.Error("Failed to start indexer: %v", err)
	}
	startup.LogIndexerStarted()

	collector := metrics.NewCollector(&dbStatsAdapter{db: db}, time.Minute)
	collector.Start()

	h := handlers.New(db, idx, config.ExportRoot)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	accessLog := middleware.DefaultAccessLogConfig()
	accessLog.LogHealthChecks = config.LogHealthChecks
	handler := middleware.AccessLog(accessLog)(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, idx, memMonitor, collector, db)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func indexerConfig(config *startup.Config) indexer.Config {
	ic := indexer.DefaultConfig()
	ic.PollInterval = config.PollInterval
	ic.IndexInterval = config.IndexInterval
	ic.IndexWorkers = config.IndexWorkers
	ic.FileWorkers = config.FileWorkers
	ic.PruneMissing = config.PruneMissing
	ic.WatchEnabled = config.WatchEnabled
	ic.WatchDebounce = config.WatchDebounce
	return ic
}

// seedDirectories registers the directories from DIRECTORIES_FILE. Failures
// are logged; the server still starts.
func seedDirectories(db *database.Database, dirs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	added := 0
	for _, dir := range dirs {
		ok, err := db.AddDirectory(ctx, dir)
		if err != nil {
			logging.Warn("  Could not track %s: %v", dir, err)
			continue
		}
		if ok {
			added++
		}
	}
	startup.LogDirectoriesSeeded(added, len(dirs))
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/directories", h.ListDirectories).Methods("GET")
	api.HandleFunc("/directories", h.AddDirectory).Methods("POST")
	api.HandleFunc("/directories", h.RemoveDirectory).Methods("DELETE")
	api.HandleFunc("/boundaries", h.GetBoundaries).Methods("GET")
	api.HandleFunc("/reindex", h.TriggerReindex).Methods("POST")
	api.HandleFunc("/reindex/last", h.GetLastPass).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	export := api.PathPrefix("/export").Subrouter()
	export.HandleFunc("/move", h.MoveFiles).Methods("POST")
	export.HandleFunc("/copy", h.CopyFiles).Methods("POST")
	export.HandleFunc("/manifest", h.WriteManifest).Methods("POST")
	export.HandleFunc("/size", h.TotalSize).Methods("POST")

	return r
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	m.HandleFunc("/health", h.LivenessCheck)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      m,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, idx *indexer.Indexer, memMonitor *memory.Monitor, collector *metrics.Collector, db *database.Database) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping indexer")
	idx.Stop()
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing database")
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
