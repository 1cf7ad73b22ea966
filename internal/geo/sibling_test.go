package geo_test

import (
	"reflect"
	"testing"

	"geoindex/internal/geo"
)

func TestBasePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/data/region.shp", "/data/region"},
		{"/data/region.shp.xml", "/data/region.shp"},
		{"/data/a.b.shp", "/data/a.b"},
		{"/data/README", "/data/README"},
		{"/data/.hidden", "/data/.hidden"},
		{"/data.v2/file", "/data.v2/file"},
	}
	for _, tt := range tests {
		if got := geo.BasePath(tt.in); got != tt.want {
			t.Errorf("BasePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGroupRegionScenario(t *testing.T) {
	box := geo.BBox{West: -3, South: 0, East: -2, North: 1}
	entries := []geo.Entry{
		{Path: "/data/notes.txt"},
		{Path: "/data/region.prj"},
		{Path: "/data/region.shp", HasBox: true, BBox: box},
		{Path: "/data/region.dbf"},
		{Path: "/data/region.shp.xml"},
	}

	res := geo.Group("/data", entries)

	if len(res.Primaries) != 1 || res.Primaries[0].Path != "/data/region.shp" {
		t.Fatalf("Primaries = %+v", res.Primaries)
	}
	wantCompanions := []string{"/data/region.dbf", "/data/region.prj", "/data/region.shp.xml"}
	var got []string
	for _, c := range res.Companions {
		got = append(got, c.Path)
		if c.BBox != box {
			t.Errorf("%s BBox = %v, want %v", c.Path, c.BBox, box)
		}
		if c.Parent != res.Primaries[0].Parent {
			t.Errorf("%s Parent = %q, want %q", c.Path, c.Parent, res.Primaries[0].Parent)
		}
		if c.Primary != "/data/region.shp" {
			t.Errorf("%s Primary = %q", c.Path, c.Primary)
		}
	}
	if !reflect.DeepEqual(got, wantCompanions) {
		t.Errorf("Companions = %v, want %v", got, wantCompanions)
	}
	if !reflect.DeepEqual(res.Ungrouped, []string{"/data/notes.txt"}) {
		t.Errorf("Ungrouped = %v", res.Ungrouped)
	}
	if n := len(res.Records()); n != 4 {
		t.Errorf("Records() has %d entries, want 4", n)
	}
}

func TestGroupFirstGeospatialFileWins(t *testing.T) {
	first := geo.BBox{West: 0, South: 0, East: 1, North: 1}
	second := geo.BBox{West: 5, South: 5, East: 6, North: 6}
	entries := []geo.Entry{
		{Path: "/d/scene.tif", HasBox: true, BBox: second},
		{Path: "/d/scene.ovr"},
		{Path: "/d/scene.gpkg", HasBox: true, BBox: first},
	}

	res := geo.Group("/d", entries)

	if len(res.Primaries) != 2 {
		t.Fatalf("both geospatial files should be kept, got %+v", res.Primaries)
	}
	for _, p := range res.Primaries {
		want := map[string]geo.BBox{"/d/scene.gpkg": first, "/d/scene.tif": second}[p.Path]
		if p.BBox != want {
			t.Errorf("%s kept BBox %v, want its own %v", p.Path, p.BBox, want)
		}
	}
	if len(res.Companions) != 1 {
		t.Fatalf("Companions = %+v", res.Companions)
	}
	if c := res.Companions[0]; c.BBox != first || c.Primary != "/d/scene.gpkg" {
		t.Errorf("companion attached to %s with %v, want scene.gpkg (lexically first)", c.Primary, c.BBox)
	}
}

func TestGroupIsOrderIndependent(t *testing.T) {
	box := geo.BBox{West: 1, South: 2, East: 3, North: 4}
	a := []geo.Entry{
		{Path: "/d/x.shp", HasBox: true, BBox: box},
		{Path: "/d/x.shx"},
		{Path: "/d/y.txt"},
	}
	b := []geo.Entry{a[2], a[1], a[0]}

	if !reflect.DeepEqual(geo.Group("/d", a), geo.Group("/d", b)) {
		t.Error("Group result depends on input order")
	}
}

func TestGroupEmpty(t *testing.T) {
	res := geo.Group("/d", nil)
	if len(res.Records()) != 0 || len(res.Ungrouped) != 0 {
		t.Errorf("Group(nil) = %+v", res)
	}
}
