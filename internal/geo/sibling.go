package geo

import (
	"path/filepath"
	"sort"
)

// Entry is one walked file and, when extraction succeeded, its box.
type Entry struct {
	Path   string
	HasBox bool
	BBox   BBox
}

// Record is a resolved boundary row. Primary is empty for files that carry
// their own box and names the source file for companions.
type Record struct {
	Path    string
	BBox    BBox
	Parent  string
	Primary string
}

// GroupResult partitions one directory's entries.
type GroupResult struct {
	Primaries  []Record
	Companions []Record
	Ungrouped  []string
}

// Records returns primaries followed by companions.
func (g GroupResult) Records() []Record {
	out := make([]Record, 0, len(g.Primaries)+len(g.Companions))
	out = append(out, g.Primaries...)
	return append(out, g.Companions...)
}

// BasePath strips the last extension from the file name in path. Only the
// final component is considered, so "/d/a.b.shp" becomes "/d/a.b". Names
// without an extension, or whose only dot is a leading one, are returned as is.
func BasePath(path string) string {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return path
	}
	return path[:len(path)-len(ext)]
}

// Group attaches files without a box to the first file, in lexical path
// order, that has a box and shares their base path. A name with a double
// extension such as "region.shp.xml" falls back to a second strip when the
// first matches nothing. Later boxed files with an already claimed base are
// kept as primaries with their own box but never replace the group's box.
func Group(parent string, entries []Entry) GroupResult {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	type owner struct {
		path string
		bbox BBox
	}
	owners := make(map[string]owner)

	var res GroupResult
	for _, e := range sorted {
		if !e.HasBox {
			continue
		}
		res.Primaries = append(res.Primaries, Record{Path: e.Path, BBox: e.BBox, Parent: parent})
		base := BasePath(e.Path)
		if _, claimed := owners[base]; !claimed {
			owners[base] = owner{path: e.Path, bbox: e.BBox}
		}
	}

	for _, e := range sorted {
		if e.HasBox {
			continue
		}
		base := BasePath(e.Path)
		o, ok := owners[base]
		if !ok {
			if second := BasePath(base); second != base {
				o, ok = owners[second]
			}
		}
		if !ok {
			res.Ungrouped = append(res.Ungrouped, e.Path)
			continue
		}
		res.Companions = append(res.Companions, Record{
			Path:    e.Path,
			BBox:    o.bbox,
			Parent:  parent,
			Primary: o.path,
		})
	}
	return res
}
