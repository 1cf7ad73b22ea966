// Package geotest provides a geo.Reader and geo.Reprojector driven by small
// text files, for tests that need real files on disk without GDAL.
//
// A vector file looks like:
//
//	VECTOR
//	CRS EPSG:32630
//	LAYER <minX> <maxX> <minY> <maxY>
//	LAYER ...
//
// and a raster file like:
//
//	RASTER
//	CRS EPSG:32630
//	BOUNDS <minX> <minY> <maxX> <maxY>
//
// The CRS line is optional. Anything else is rejected by both decoders.
package geotest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"geoindex/internal/geo"
)

var errUnrecognized = errors.New("unrecognized format")

// Reader decodes the text format described in the package comment.
type Reader struct {
	VectorOpens atomic.Int64
	RasterOpens atomic.Int64
}

type dataset struct {
	kind   geo.Kind
	crs    geo.CRS
	layers []geo.Extent
	bounds geo.Extent
}

func parse(path string) (*dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return nil, errUnrecognized
	}
	ds := &dataset{}
	switch strings.TrimSpace(sc.Text()) {
	case "VECTOR":
		ds.kind = geo.KindVector
	case "RASTER":
		ds.kind = geo.KindRaster
	default:
		return nil, errUnrecognized
	}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, rest, _ := strings.Cut(line, " ")
		switch key {
		case "CRS":
			ds.crs = geo.CRS(strings.TrimSpace(rest))
		case "LAYER", "BOUNDS":
			v, err := floats(rest)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if key == "LAYER" {
				ds.layers = append(ds.layers, geo.Extent{MinX: v[0], MaxX: v[1], MinY: v[2], MaxY: v[3]})
			} else {
				ds.bounds = geo.Extent{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
			}
		default:
			return nil, fmt.Errorf("%s: unknown directive %q", path, key)
		}
	}
	return ds, nil
}

func floats(s string) ([4]float64, error) {
	var out [4]float64
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return out, fmt.Errorf("want 4 numbers, got %d", len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// OpenVector implements geo.Reader.
func (r *Reader) OpenVector(path string) (geo.VectorHandle, error) {
	r.VectorOpens.Add(1)
	ds, err := parse(path)
	if err != nil {
		return nil, err
	}
	if ds.kind != geo.KindVector {
		return nil, errUnrecognized
	}
	return handle{ds}, nil
}

// OpenRaster implements geo.Reader.
func (r *Reader) OpenRaster(path string) (geo.RasterHandle, error) {
	r.RasterOpens.Add(1)
	ds, err := parse(path)
	if err != nil {
		return nil, err
	}
	if ds.kind != geo.KindRaster {
		return nil, errUnrecognized
	}
	return handle{ds}, nil
}

type handle struct{ ds *dataset }

func (h handle) LayerExtents() ([]geo.Extent, error) { return h.ds.layers, nil }
func (h handle) Bounds() (geo.Extent, error)         { return h.ds.bounds, nil }
func (h handle) Close() error                        { return nil }

func (h handle) CRS() (geo.CRS, bool) {
	return h.ds.crs, h.ds.crs != ""
}

// TransformFunc maps one point into EPSG:4326.
type TransformFunc func(x, y float64) (float64, float64, error)

// Reprojector looks up a TransformFunc by source CRS. Unknown systems fail.
type Reprojector struct {
	mu     sync.Mutex
	funcs  map[geo.CRS]TransformFunc
	called int
}

// NewReprojector returns a Reprojector that knows UTM30N (see UTM30N).
func NewReprojector() *Reprojector {
	return &Reprojector{funcs: map[geo.CRS]TransformFunc{UTM30N: LinearUTM30N}}
}

// UTM30N is the identifier the fake accepts for a local projected system.
const UTM30N geo.CRS = "EPSG:32630"

// LinearUTM30N is a crude linear stand-in for the UTM zone 30N inverse: it is
// monotonic in both axes, which is all the tests rely on.
func LinearUTM30N(x, y float64) (float64, float64, error) {
	return (x-500000)/100000 - 3, y / 110000, nil
}

// Register adds a transform for crs.
func (p *Reprojector) Register(crs geo.CRS, fn TransformFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.funcs[crs] = fn
}

// Calls returns how many Transform calls were made.
func (p *Reprojector) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.called
}

// Transform implements geo.Reprojector.
func (p *Reprojector) Transform(from, to geo.CRS, x, y float64) (float64, float64, error) {
	p.mu.Lock()
	p.called++
	fn, ok := p.funcs[from]
	p.mu.Unlock()
	if to != geo.Canonical {
		return 0, 0, fmt.Errorf("unsupported target %s", to)
	}
	if !ok {
		return 0, 0, fmt.Errorf("no transform from %q", from)
	}
	return fn(x, y)
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Vector renders a vector file with one LAYER line per extent.
func Vector(crs geo.CRS, layers ...geo.Extent) string {
	var b strings.Builder
	b.WriteString("VECTOR\n")
	if crs != "" {
		fmt.Fprintf(&b, "CRS %s\n", crs)
	}
	for _, l := range layers {
		fmt.Fprintf(&b, "LAYER %g %g %g %g\n", l.MinX, l.MaxX, l.MinY, l.MaxY)
	}
	return b.String()
}

// Raster renders a raster file.
func Raster(crs geo.CRS, bounds geo.Extent) string {
	var b strings.Builder
	b.WriteString("RASTER\n")
	if crs != "" {
		fmt.Fprintf(&b, "CRS %s\n", crs)
	}
	fmt.Fprintf(&b, "BOUNDS %g %g %g %g\n", bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY)
	return b.String()
}
