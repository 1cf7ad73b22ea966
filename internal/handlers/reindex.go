package handlers

import (
	"net/http"
	"strconv"

	"geoindex/internal/logging"
)

// TriggerReindex starts a pass in the background. With ?force=true every
// tracked directory is rescanned even when its mtime is unchanged.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	var started bool
	if force {
		logging.Info("forced rescan requested")
		started = h.indexer.TriggerRescan()
	} else {
		started = h.indexer.TriggerIndex()
	}
	if started {
		writeJSONStatus(w, http.StatusAccepted, "started")
		return
	}
	writeJSONStatus(w, http.StatusAccepted, "queued")
}

// GetLastPass returns the report of the last completed pass.
func (h *Handlers) GetLastPass(w http.ResponseWriter, _ *http.Request) {
	report, ok := h.indexer.LastPass()
	if !ok {
		writeJSONError(w, "no pass has completed yet", http.StatusNotFound)
		return
	}
	writeJSONResponse(w, http.StatusOK, report)
}
