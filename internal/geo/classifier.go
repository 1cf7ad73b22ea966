package geo

import (
	"fmt"

	"geoindex/internal/filesystem"
	"geoindex/internal/logging"
)

// Class is the outcome of classifying one file.
type Class int

const (
	// ClassUnreadable means the file could not be stat'ed or opened.
	ClassUnreadable Class = iota
	// ClassNonGeospatial means the file is readable but no decoder accepted it.
	ClassNonGeospatial
	// ClassGeospatial means the vector or raster decoder accepted the file.
	ClassGeospatial
)

func (c Class) String() string {
	switch c {
	case ClassGeospatial:
		return "geospatial"
	case ClassNonGeospatial:
		return "non_geospatial"
	default:
		return "unreadable"
	}
}

// Classification is the tagged result of Classify. Kind is only set for
// ClassGeospatial; Cause records why a negative result was reached.
type Classification struct {
	Class Class
	Kind  Kind
	Cause error
}

// IsGeospatial reports whether the file decoded as vector or raster data.
func (c Classification) IsGeospatial() bool {
	return c.Class == ClassGeospatial
}

// Label is the metrics label for c: the kind for geospatial files, the class
// otherwise.
func (c Classification) Label() string {
	if c.IsGeospatial() {
		return c.Kind.String()
	}
	return c.Class.String()
}

// Classifier decides whether a file is geodata by trying to decode it.
type Classifier struct {
	reader Reader
	retry  filesystem.RetryConfig
	log    *logging.Logger
}

// NewClassifier returns a Classifier that decodes through reader.
func NewClassifier(reader Reader, log *logging.Logger) *Classifier {
	if log == nil {
		log = logging.New("classifier")
	}
	return &Classifier{
		reader: reader,
		retry:  filesystem.DefaultRetryConfig(),
		log:    log,
	}
}

// Classify tries the vector decoder, then the raster decoder. Decoder errors
// are folded into the returned Classification and never returned. Any handle
// opened here is closed before returning.
func (c *Classifier) Classify(path string) Classification {
	info, err := filesystem.StatWithRetry(path, c.retry)
	if err != nil {
		return Classification{Class: ClassUnreadable, Cause: fmt.Errorf("%w: %v", ErrUnreadableFile, err)}
	}
	if !info.Mode().IsRegular() {
		return Classification{Class: ClassUnreadable, Cause: fmt.Errorf("%w: not a regular file", ErrUnreadableFile)}
	}
	f, err := filesystem.OpenWithRetry(path, c.retry)
	if err != nil {
		return Classification{Class: ClassUnreadable, Cause: fmt.Errorf("%w: %v", ErrUnreadableFile, err)}
	}
	f.Close()

	vh, vecErr := c.reader.OpenVector(path)
	if vecErr == nil {
		c.closeHandle(path, vh)
		return Classification{Class: ClassGeospatial, Kind: KindVector}
	}

	rh, rasErr := c.reader.OpenRaster(path)
	if rasErr == nil {
		c.closeHandle(path, rh)
		return Classification{Class: ClassGeospatial, Kind: KindRaster}
	}

	c.log.Debug("%s rejected by decoders: vector: %v; raster: %v", path, vecErr, rasErr)
	return Classification{
		Class: ClassNonGeospatial,
		Cause: fmt.Errorf("%w: vector: %v; raster: %v", ErrNotGeospatial, vecErr, rasErr),
	}
}

type closer interface {
	Close() error
}

func (c *Classifier) closeHandle(path string, h closer) {
	if err := h.Close(); err != nil {
		c.log.Debug("closing %s: %v", path, err)
	}
}
