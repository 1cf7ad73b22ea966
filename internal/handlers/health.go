package handlers

import (
	"net/http"
	"runtime"

	"geoindex/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status            string `json:"status"`
	Ready             bool   `json:"ready"`
	Version           string `json:"version"`
	Uptime            string `json:"uptime"`
	Indexing          bool   `json:"indexing"`
	LastIndexed       string `json:"lastIndexed,omitempty"`
	InitialIndexError string `json:"initialIndexError,omitempty"`
	WatchedRoots      int    `json:"watchedRoots"`

	// Progress of the running pass
	DirectoriesDone  int64 `json:"directoriesDone"`
	DirectoriesTotal int64 `json:"directoriesTotal"`
	FilesProcessed   int64 `json:"filesProcessed"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Store summary
	TrackedDirectories int    `json:"trackedDirectories"`
	BoundaryRecords    int    `json:"boundaryRecords"`
	DatabaseError      string `json:"databaseError,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.indexer.GetHealthStatus()

	response := HealthResponse{
		Ready:        healthStatus.Ready,
		Version:      startup.Version,
		Uptime:       healthStatus.Uptime,
		Indexing:     healthStatus.Indexing,
		WatchedRoots: healthStatus.Watching,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if p := healthStatus.IndexProgress; p != nil {
		response.DirectoriesDone = p.DirectoriesDone
		response.DirectoriesTotal = p.DirectoriesTotal
		response.FilesProcessed = p.FilesProcessed
	}

	if !healthStatus.LastIndexed.IsZero() {
		response.LastIndexed = healthStatus.LastIndexed.Format("2006-01-02T15:04:05Z07:00")
	}

	if healthStatus.InitialIndexError != "" {
		response.InitialIndexError = healthStatus.InitialIndexError
		response.Status = statusDegraded
	}

	stats, err := h.db.Counts(r.Context())
	if err != nil {
		response.DatabaseError = err.Error()
		response.Status = statusDegraded
	} else {
		response.TrackedDirectories = stats.TrackedDirectories
		response.BoundaryRecords = stats.BoundaryRecords
	}

	// Return 503 only if not ready at all
	code := http.StatusOK
	if !healthStatus.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, response)
}

// LivenessCheck is a simple liveness check (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once the first pass finished and the store
// answers.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !h.indexer.IsReady() {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, "database_unavailable")
		return
	}
	writeJSONStatus(w, http.StatusOK, "ready")
}
