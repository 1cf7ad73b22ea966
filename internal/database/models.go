package database

import "geoindex/internal/geo"

// TrackedDirectory is a root registered for incremental indexing. Timestamp is
// the directory mtime, in seconds, recorded at the last committed scan; it is
// nil until the first scan commits.
type TrackedDirectory struct {
	Path      string   `json:"path"`
	Timestamp *float64 `json:"timestamp"`
}

// Indexed reports whether a scan of d has ever committed.
func (d TrackedDirectory) Indexed() bool {
	return d.Timestamp != nil
}

// Boundary is the persisted box of one file. The columns left/right/top/bottom
// hold west/east/north/south.
type Boundary struct {
	Path   string   `json:"path"`
	BBox   geo.BBox `json:"bbox"`
	Parent string   `json:"parent"`
}
