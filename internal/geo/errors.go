package geo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableFile means the file could not be opened at the OS level.
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrNotGeospatial means neither the vector nor the raster decoder accepted the file.
	ErrNotGeospatial = errors.New("not geospatial")

	// ErrUnknownCRS means no reference system could be determined; coordinates
	// are kept as read and assumed to be canonical.
	ErrUnknownCRS = errors.New("unknown CRS")

	// ErrReprojectionFailure means the transform to the canonical system failed;
	// coordinates are kept in the source system.
	ErrReprojectionFailure = errors.New("reprojection failure")
)

// Warning is a non-fatal problem met while extracting a bounding box.
type Warning struct {
	Path string
	Kind error // ErrUnknownCRS or ErrReprojectionFailure
	Err  error
}

func (w Warning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %v: %v", w.Path, w.Kind, w.Err)
	}
	return fmt.Sprintf("%s: %v", w.Path, w.Kind)
}

func (w Warning) Unwrap() []error {
	if w.Err != nil {
		return []error{w.Kind, w.Err}
	}
	return []error{w.Kind}
}
