package geo

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"geoindex/internal/filesystem"
	"geoindex/internal/logging"
)

// Status tags an extraction Result.
type Status int

const (
	// StatusNotGeospatial means neither decoder produced an extent.
	StatusNotGeospatial Status = iota
	// StatusSuccess means BBox holds the file's extent.
	StatusSuccess
)

// Result is the outcome of Extract. BBox and SourceCRS are only meaningful
// when Status is StatusSuccess.
type Result struct {
	Status      Status
	Kind        Kind
	BBox        BBox
	SourceCRS   CRS
	Reprojected bool
}

// OK reports whether a bounding box was produced.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Components of the shapefile family. A file ending in one of these can take
// its CRS from the <base>.prj sidecar when <base>.shp exists. Longer suffixes
// come first so ".shp.xml" wins over a shorter match.
var shapefileComponents = []string{
	".shp.xml",
	".shp", ".shx", ".dbf", ".prj", ".sbn", ".sbx", ".fbn", ".fbx",
	".ain", ".aih", ".ixs", ".mxs", ".atx", ".cpg", ".qix",
}

// Extractor computes canonical bounding boxes for geospatial files.
type Extractor struct {
	reader      Reader
	reprojector Reprojector
	retry       filesystem.RetryConfig
	log         *logging.Logger
}

// NewExtractor returns an Extractor that decodes through reader and
// transforms corner points through reprojector.
func NewExtractor(reader Reader, reprojector Reprojector, log *logging.Logger) *Extractor {
	if log == nil {
		log = logging.New("extractor")
	}
	return &Extractor{
		reader:      reader,
		reprojector: reprojector,
		retry:       filesystem.DefaultRetryConfig(),
		log:         log,
	}
}

// Extract returns the bounding box of path in the canonical CRS. Problems
// with the CRS never fail the extraction; they come back as warnings, each of
// which has already been logged.
func (e *Extractor) Extract(path string) (Result, []Warning) {
	ext, crs, known, ok := e.vectorExtent(path)
	kind := KindVector
	if !ok {
		ext, crs, known, ok = e.rasterExtent(path)
		kind = KindRaster
	}
	if !ok {
		return Result{Status: StatusNotGeospatial}, nil
	}

	bbox, reprojected, warnings := e.toCanonical(path, ext, crs, known)
	for _, w := range warnings {
		e.log.Warn("%v", w)
	}

	src := crs
	if !known {
		src = Canonical
	}
	return Result{
		Status:      StatusSuccess,
		Kind:        kind,
		BBox:        bbox,
		SourceCRS:   src,
		Reprojected: reprojected,
	}, warnings
}

func (e *Extractor) vectorExtent(path string) (Extent, CRS, bool, bool) {
	h, err := e.reader.OpenVector(path)
	if err != nil {
		return Extent{}, "", false, false
	}
	defer h.Close()

	layers, err := h.LayerExtents()
	if err != nil {
		e.log.Debug("%s: reading layer extents: %v", path, err)
		return Extent{}, "", false, false
	}
	ext := UnionExtents(layers)
	if ext.IsEmpty() {
		e.log.Debug("%s: vector dataset has no layer with geometry", path)
		return Extent{}, "", false, false
	}

	if crs, ok := e.sidecarCRS(path); ok {
		return ext, crs, true, true
	}
	crs, known := h.CRS()
	return ext, crs, known, true
}

func (e *Extractor) rasterExtent(path string) (Extent, CRS, bool, bool) {
	h, err := e.reader.OpenRaster(path)
	if err != nil {
		return Extent{}, "", false, false
	}
	defer h.Close()

	ext, err := h.Bounds()
	if err != nil || ext.IsEmpty() {
		e.log.Debug("%s: raster has no usable bounds: %v", path, err)
		return Extent{}, "", false, false
	}
	crs, known := h.CRS()
	return ext, crs, known, true
}

// UnionExtents folds layer envelopes by elementwise min/max starting from
// EmptyExtent. Empty layers leave the result unchanged.
func UnionExtents(layers []Extent) Extent {
	out := EmptyExtent()
	for _, l := range layers {
		if l.IsEmpty() {
			continue
		}
		out = out.Union(l)
	}
	return out
}

// sidecarCRS reads <base>.prj directly when path belongs to a shapefile set.
func (e *Extractor) sidecarCRS(path string) (CRS, bool) {
	base, ok := shapefileBase(path)
	if !ok {
		return "", false
	}
	if _, err := filesystem.StatWithRetry(base+".shp", e.retry); err != nil {
		return "", false
	}
	data, err := filesystem.ReadFileWithRetry(base+".prj", e.retry)
	if err != nil {
		return "", false
	}
	def := strings.TrimSpace(string(data))
	if def == "" {
		return "", false
	}
	return CRS(def), true
}

func shapefileBase(path string) (string, bool) {
	lower := strings.ToLower(filepath.Base(path))
	for _, suffix := range shapefileComponents {
		if strings.HasSuffix(lower, suffix) && len(lower) > len(suffix) {
			return path[:len(path)-len(suffix)], true
		}
	}
	return "", false
}

// toCanonical transforms the (min, min) and (max, max) corners of ext. When
// the CRS is unknown or the transform fails the raw extent is kept.
func (e *Extractor) toCanonical(path string, ext Extent, crs CRS, known bool) (BBox, bool, []Warning) {
	raw := BBoxFromExtent(ext)
	if !known || strings.TrimSpace(string(crs)) == "" {
		return raw, false, []Warning{{Path: path, Kind: ErrUnknownCRS, Err: errors.New("assuming " + string(Canonical))}}
	}
	if crs.IsCanonical() {
		return raw.Normalize(), true, nil
	}
	if e.reprojector == nil {
		return raw, false, []Warning{{Path: path, Kind: ErrReprojectionFailure, Err: errors.New("no reprojector configured")}}
	}

	x1, y1, err := e.reprojector.Transform(crs, Canonical, ext.MinX, ext.MinY)
	if err == nil {
		err = checkFinite(x1, y1)
	}
	if err != nil {
		return raw, false, []Warning{{Path: path, Kind: ErrReprojectionFailure, Err: err}}
	}
	x2, y2, err := e.reprojector.Transform(crs, Canonical, ext.MaxX, ext.MaxY)
	if err == nil {
		err = checkFinite(x2, y2)
	}
	if err != nil {
		return raw, false, []Warning{{Path: path, Kind: ErrReprojectionFailure, Err: err}}
	}

	return BBox{West: x1, South: y1, East: x2, North: y2}.Normalize(), true, nil
}

func checkFinite(x, y float64) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("transform produced non-finite point (%g, %g)", x, y)
	}
	return nil
}
