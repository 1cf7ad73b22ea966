package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"geoindex/internal/database"
	"geoindex/internal/geo"
	"geoindex/internal/logging"
)

// GetBoundaries returns boundary records selected by exactly one of:
//
//	?parent=<tracked directory>
//	?under=<directory>
//	?west=&south=&east=&north=
func (h *Handlers) GetBoundaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		records []database.Boundary
		err     error
	)
	switch {
	case q.Get("parent") != "":
		records, err = h.db.ListBoundaries(r.Context(), q.Get("parent"))
	case q.Get("under") != "":
		records, err = h.db.ListBoundariesUnder(r.Context(), q.Get("under"))
	case q.Has("west") || q.Has("south") || q.Has("east") || q.Has("north"):
		region, perr := parseBBox(q.Get("west"), q.Get("south"), q.Get("east"), q.Get("north"))
		if perr != nil {
			writeJSONError(w, perr.Error(), http.StatusBadRequest)
			return
		}
		records, err = h.db.QueryIntersecting(r.Context(), region)
	default:
		writeJSONError(w, "one of parent, under or west/south/east/north is required", http.StatusBadRequest)
		return
	}

	if err != nil {
		logging.Error("querying boundaries: %v", err)
		writeJSONError(w, "Failed to query boundaries", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []database.Boundary{}
	}
	writeJSONResponse(w, http.StatusOK, records)
}

// parseBBox reads a query region. Corners may be given in either order.
func parseBBox(west, south, east, north string) (geo.BBox, error) {
	var vals [4]float64
	for i, s := range []string{west, south, east, north} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return geo.BBox{}, errors.New("west, south, east and north must all be finite numbers")
		}
		vals[i] = v
	}
	return geo.BBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}.Normalize(), nil
}
