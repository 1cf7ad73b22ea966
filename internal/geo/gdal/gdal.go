// Package gdal implements geo.Reader and geo.Reprojector on top of GDAL/OGR
// through github.com/airbusgeo/godal.
package gdal

import (
	"fmt"
	"os"
	"sync"

	"github.com/airbusgeo/godal"

	"geoindex/internal/geo"
)

// canonicalProj4 is EPSG:4326 with longitude first regardless of the GDAL
// axis-order defaults.
const canonicalProj4 = "+proj=longlat +datum=WGS84 +no_defs"

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		if os.Getenv("OSR_DEFAULT_AXIS_MAPPING_STRATEGY") == "" {
			os.Setenv("OSR_DEFAULT_AXIS_MAPPING_STRATEGY", "TRADITIONAL_GIS_ORDER")
		}
		godal.RegisterAll()
	})
}

// Reader opens files with GDAL's vector and raster drivers.
type Reader struct{}

// NewReader registers the GDAL drivers and returns a Reader.
func NewReader() *Reader {
	register()
	return &Reader{}
}

// OpenVector implements geo.Reader.
func (r *Reader) OpenVector(path string) (geo.VectorHandle, error) {
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, err
	}
	return &vectorDataset{ds: ds}, nil
}

// OpenRaster implements geo.Reader.
func (r *Reader) OpenRaster(path string) (geo.RasterHandle, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, err
	}
	return &rasterDataset{ds: ds}, nil
}

type vectorDataset struct {
	ds *godal.Dataset
}

func (v *vectorDataset) LayerExtents() ([]geo.Extent, error) {
	layers := v.ds.Layers()
	out := make([]geo.Extent, 0, len(layers))
	for _, l := range layers {
		b, err := l.Bounds()
		if err != nil {
			// Attribute-only layers have no envelope.
			continue
		}
		out = append(out, geo.Extent{MinX: b[0], MaxX: b[2], MinY: b[1], MaxY: b[3]})
	}
	return out, nil
}

func (v *vectorDataset) CRS() (geo.CRS, bool) {
	for _, l := range v.ds.Layers() {
		if crs, ok := wkt(l.SpatialRef()); ok {
			return crs, true
		}
	}
	return wkt(v.ds.SpatialRef())
}

func (v *vectorDataset) Close() error {
	return v.ds.Close()
}

type rasterDataset struct {
	ds *godal.Dataset
}

func (r *rasterDataset) Bounds() (geo.Extent, error) {
	b, err := r.ds.Bounds()
	if err != nil {
		// No geotransform: fall back to the pixel grid.
		st := r.ds.Structure()
		if st.SizeX == 0 || st.SizeY == 0 {
			return geo.Extent{}, fmt.Errorf("raster has no geotransform and no pixels: %w", err)
		}
		return geo.Extent{MinX: 0, MaxX: float64(st.SizeX), MinY: 0, MaxY: float64(st.SizeY)}, nil
	}
	return geo.Extent{MinX: b[0], MaxX: b[2], MinY: b[1], MaxY: b[3]}, nil
}

func (r *rasterDataset) CRS() (geo.CRS, bool) {
	return wkt(r.ds.SpatialRef())
}

func (r *rasterDataset) Close() error {
	return r.ds.Close()
}

func wkt(sr *godal.SpatialRef) (geo.CRS, bool) {
	if sr == nil {
		return "", false
	}
	s, err := sr.WKT()
	if err != nil || s == "" {
		return "", false
	}
	return geo.CRS(s), true
}

// Reprojector transforms points with OGR coordinate transformations. A new
// transformation is built per call since they are not safe for concurrent use.
type Reprojector struct{}

// NewReprojector registers the GDAL drivers and returns a Reprojector.
func NewReprojector() *Reprojector {
	register()
	return &Reprojector{}
}

// Transform implements geo.Reprojector.
func (p *Reprojector) Transform(from, to geo.CRS, x, y float64) (float64, float64, error) {
	src, err := godal.NewSpatialRef(string(from))
	if err != nil {
		return 0, 0, fmt.Errorf("parse source CRS: %w", err)
	}
	defer src.Close()

	var dst *godal.SpatialRef
	if to.IsCanonical() {
		dst, err = godal.NewSpatialRefFromProj4(canonicalProj4)
	} else {
		dst, err = godal.NewSpatialRef(string(to))
	}
	if err != nil {
		return 0, 0, fmt.Errorf("parse target CRS: %w", err)
	}
	defer dst.Close()

	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return 0, 0, fmt.Errorf("create transform: %w", err)
	}
	defer trn.Close()

	xs, ys, zs := []float64{x}, []float64{y}, []float64{0}
	ok := []bool{false}
	if err := trn.TransformEx(xs, ys, zs, ok); err != nil {
		return 0, 0, err
	}
	if !ok[0] {
		return 0, 0, fmt.Errorf("point (%g, %g) could not be transformed", x, y)
	}
	return xs[0], ys[0], nil
}

var (
	_ geo.Reader      = (*Reader)(nil)
	_ geo.Reprojector = (*Reprojector)(nil)
)
