package handlers

import (
	"net/http"

	"geoindex/internal/indexer"
	"geoindex/internal/logging"
)

// StatsResponse summarizes the store and the indexer.
type StatsResponse struct {
	TrackedDirectories int                   `json:"trackedDirectories"`
	BoundaryRecords    int                   `json:"boundaryRecords"`
	Progress           indexer.IndexProgress `json:"progress"`
	LastPass           *PassSummary          `json:"lastPass,omitempty"`
}

// PassSummary counts directory outcomes of one pass.
type PassSummary struct {
	ID              string `json:"id"`
	Forced          bool   `json:"forced"`
	Duration        string `json:"duration"`
	Committed       int    `json:"committed"`
	Idle            int    `json:"idle"`
	PartiallyFailed int    `json:"partiallyFailed"`
}

// GetStats returns store counts, indexing progress and the last pass outcome.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.db.Counts(r.Context())
	if err != nil {
		logging.Error("counting records: %v", err)
		writeJSONError(w, "Failed to read stats", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		TrackedDirectories: counts.TrackedDirectories,
		BoundaryRecords:    counts.BoundaryRecords,
		Progress:           h.indexer.GetProgress(),
	}
	if pass, ok := h.indexer.LastPass(); ok {
		resp.LastPass = &PassSummary{
			ID:              pass.ID,
			Forced:          pass.Forced,
			Duration:        pass.Duration.String(),
			Committed:       pass.Count(indexer.StateCommitted),
			Idle:            pass.Count(indexer.StateIdle),
			PartiallyFailed: pass.Count(indexer.StatePartiallyFailed),
		}
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
