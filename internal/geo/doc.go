/*
Package geo classifies files as geodata, extracts their bounding boxes in
WGS84 and groups companion files with the dataset they belong to.

Decoding is consumed through the Reader and Reprojector interfaces; the
gdal subpackage provides the production implementation and geotest a
content-driven fake.

# Classification

Classify opens a file as vector data, then as raster data. The file name is
never consulted: a shapefile component such as region.dbf is judged by what
the decoder makes of it. The result is one of:

  - ClassGeospatial with KindVector or KindRaster
  - ClassNonGeospatial when the file is readable but no decoder accepts it
  - ClassUnreadable when the file cannot be stat'ed or opened

# Extraction

Extract unions the extents of every vector layer, or takes the raster
bounds, then transforms the (min, min) and (max, max) corners to
EPSG:4326. Shapefile components take their CRS from the <base>.prj
sidecar. A missing CRS or failed transform keeps the raw coordinates and
yields a Warning wrapping ErrUnknownCRS or ErrReprojectionFailure.

# Grouping

Group gives every file without a box the box of the first boxed file that
shares its base path (the path minus its last extension).
*/
package geo
