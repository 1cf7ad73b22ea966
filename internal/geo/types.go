package geo

import (
	"fmt"
	"math"
	"strings"
)

// CRS identifies a coordinate reference system. It holds whatever definition
// the source provided: an authority code ("EPSG:32630"), a WKT string from a
// projection sidecar, or a PROJ string.
type CRS string

// Canonical is the reference system every stored bounding box is normalized to.
const Canonical CRS = "EPSG:4326"

// IsCanonical reports whether c names WGS84 geographic coordinates.
func (c CRS) IsCanonical() bool {
	switch strings.ToUpper(strings.TrimSpace(string(c))) {
	case "EPSG:4326", "WGS84", "OGC:CRS84":
		return true
	}
	return false
}

// Extent is a raw envelope in source coordinates, in the (minX, maxX, minY,
// maxY) order vector layers report it.
type Extent struct {
	MinX, MaxX, MinY, MaxY float64
}

// EmptyExtent is the identity element for Union.
func EmptyExtent() Extent {
	return Extent{
		MinX: math.Inf(1),
		MaxX: math.Inf(-1),
		MinY: math.Inf(1),
		MaxY: math.Inf(-1),
	}
}

// Union returns the elementwise min/max of e and o.
func (e Extent) Union(o Extent) Extent {
	return Extent{
		MinX: math.Min(e.MinX, o.MinX),
		MaxX: math.Max(e.MaxX, o.MaxX),
		MinY: math.Min(e.MinY, o.MinY),
		MaxY: math.Max(e.MaxY, o.MaxY),
	}
}

// IsEmpty reports whether no finite envelope has been folded into e.
func (e Extent) IsEmpty() bool {
	return e.MinX > e.MaxX || e.MinY > e.MaxY ||
		math.IsInf(e.MinX, 0) || math.IsInf(e.MaxX, 0) ||
		math.IsInf(e.MinY, 0) || math.IsInf(e.MaxY, 0) ||
		math.IsNaN(e.MinX) || math.IsNaN(e.MaxX) || math.IsNaN(e.MinY) || math.IsNaN(e.MaxY)
}

// BBox is a rectangular extent. Once reprojected it is in Canonical
// coordinates (longitude for west/east, latitude for south/north).
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// BBoxFromExtent maps a raw extent onto a box without reprojection.
func BBoxFromExtent(e Extent) BBox {
	return BBox{West: e.MinX, South: e.MinY, East: e.MaxX, North: e.MaxY}
}

// Ordered reports whether west <= east and south <= north.
func (b BBox) Ordered() bool {
	return b.West <= b.East && b.South <= b.North
}

// Normalize swaps edges so the box is Ordered.
func (b BBox) Normalize() BBox {
	if b.West > b.East {
		b.West, b.East = b.East, b.West
	}
	if b.South > b.North {
		b.South, b.North = b.North, b.South
	}
	return b
}

// Intersects reports whether the closed boxes b and o share at least one point.
func (b BBox) Intersects(o BBox) bool {
	return b.West <= o.East && o.West <= b.East &&
		b.South <= o.North && o.South <= b.North
}

func (b BBox) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.West, b.South, b.East, b.North)
}

// Kind is the family of geodata a file decoded as.
type Kind int

const (
	KindVector Kind = iota + 1
	KindRaster
)

func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindRaster:
		return "raster"
	default:
		return "none"
	}
}

// VectorHandle is an open vector dataset.
type VectorHandle interface {
	// LayerExtents returns one envelope per layer that has geometry.
	LayerExtents() ([]Extent, error)
	// CRS returns the dataset's reference system, if it declares one.
	CRS() (CRS, bool)
	Close() error
}

// RasterHandle is an open raster dataset.
type RasterHandle interface {
	// Bounds returns the dataset's envelope in its own reference system.
	Bounds() (Extent, error)
	CRS() (CRS, bool)
	Close() error
}

// Reader opens files as geodata. Implementations decide from content, never
// from the file name alone.
type Reader interface {
	OpenVector(path string) (VectorHandle, error)
	OpenRaster(path string) (RasterHandle, error)
}

// Reprojector transforms a single point between reference systems.
type Reprojector interface {
	Transform(from, to CRS, x, y float64) (float64, float64, error)
}
