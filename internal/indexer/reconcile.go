package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"time"

	"geoindex/internal/database"
	"geoindex/internal/filesystem"
	"geoindex/internal/geo"
	"geoindex/internal/logging"
	"geoindex/internal/metrics"
)

// DirectoryReport summarizes what one pass did to one tracked directory.
type DirectoryReport struct {
	Path          string        `json:"path"`
	State         State         `json:"state"`
	Files         int           `json:"files"`
	Primaries     int           `json:"primaries"`
	Companions    int           `json:"companions"`
	Ungrouped     int           `json:"ungrouped"`
	Warnings      int           `json:"warnings"`
	WriteFailures int           `json:"writeFailures"`
	Pruned        int           `json:"pruned"`
	Timestamp     float64       `json:"timestamp,omitempty"`
	Duration      time.Duration `json:"duration"`
	Err           error         `json:"-"`
	Error         string        `json:"error,omitempty"`
}

// reconcileDirectory drives one directory from detection to Committed or
// PartiallyFailed. The timestamp is written last, and only when every step
// before it reached the end of the directory.
func (idx *Indexer) reconcileDirectory(ctx context.Context, dir database.TrackedDirectory, force bool, log *logging.Logger) (report DirectoryReport) {
	start := time.Now()
	report.Path = dir.Path
	log = log.With("dir", dir.Path)

	defer func() {
		report.Duration = time.Since(start)
		if report.Err != nil {
			report.Error = report.Err.Error()
		}
		if report.State != StateIdle {
			metrics.IndexerDirectoryScanDuration.Observe(report.Duration.Seconds())
		}
		metrics.IndexerDirectoryOutcomes.WithLabelValues(report.State.String()).Inc()
	}()

	fail := func(err error) DirectoryReport {
		report.State = StatePartiallyFailed
		report.Err = err
		metrics.IndexerErrors.Inc()
		log.Warn("scan abandoned, timestamp left unchanged: %v", err)
		return report
	}

	det, err := Detect(dir, idx.retry)
	if err != nil {
		return fail(err)
	}
	if det.State == StateIdle && !force {
		report.State = StateIdle
		log.Debug("unchanged since last scan")
		return report
	}
	if dir.Timestamp == nil {
		log.Info("never indexed, scanning")
	} else {
		log.Info("mtime changed (stored %.6f, current %.6f), scanning", *dir.Timestamp, det.Mtime)
	}
	report.State = StateScanning

	var warnings atomic.Int64
	walker := NewParallelWalker(dir.Path, idx.walkerConfig, func(path string) geo.Entry {
		return idx.examine(path, &warnings)
	}, log)
	entries, err := walker.Walk(ctx)
	if err != nil {
		return fail(err)
	}
	report.Files = len(entries)
	report.Warnings = int(warnings.Load())

	// Nothing is written for a directory that disappeared while its files
	// were being decoded.
	if _, err := filesystem.StatWithRetry(dir.Path, idx.retry); err != nil {
		return fail(vanished(dir.Path, err))
	}

	group := geo.Group(dir.Path, entries)
	for _, path := range group.Ungrouped {
		log.Info("could not read %s: not geospatial and no geospatial sibling", path)
	}
	report.Ungrouped = len(group.Ungrouped)

	for _, batch := range []struct {
		role    string
		records []geo.Record
		count   *int
	}{
		{"primary", group.Primaries, &report.Primaries},
		{"companion", group.Companions, &report.Companions},
	} {
		for _, rec := range batch.records {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if err := idx.store.InsertBoundary(ctx, database.Boundary{Path: rec.Path, BBox: rec.BBox, Parent: rec.Parent}); err != nil {
				report.WriteFailures++
				metrics.IndexerStoreWriteFailures.Inc()
				log.Warn("%v", fmt.Errorf("%w: %s: %v", ErrStoreWrite, rec.Path, err))
				continue
			}
			*batch.count++
			idx.recordsWritten.Add(1)
			metrics.IndexerRecordsPersisted.WithLabelValues(batch.role).Inc()
		}
	}

	if idx.config.PruneMissing {
		report.Pruned = idx.pruneMissing(ctx, dir.Path, log)
	}

	info, err := filesystem.StatWithRetry(dir.Path, idx.retry)
	if err != nil {
		return fail(vanished(dir.Path, err))
	}
	ts := Timestamp(info.ModTime())
	if err := idx.store.UpdateDirectoryTimestamp(ctx, dir.Path, ts); err != nil {
		return fail(err)
	}

	report.State = StateCommitted
	report.Timestamp = ts
	log.Info("committed: %d files, %d records (%d companions), %d ungrouped, %d warnings, %d write failures, %d pruned",
		report.Files, report.Primaries+report.Companions, report.Companions, report.Ungrouped,
		report.Warnings, report.WriteFailures, report.Pruned)
	return report
}

// examine classifies path and, for geodata, extracts its box.
func (idx *Indexer) examine(path string, warnings *atomic.Int64) geo.Entry {
	defer idx.filesProcessed.Add(1)

	cls := idx.classifier.Classify(path)
	metrics.IndexerFilesClassified.WithLabelValues(cls.Label()).Inc()
	if !cls.IsGeospatial() {
		return geo.Entry{Path: path}
	}

	res, ws := idx.extractor.Extract(path)
	for _, w := range ws {
		warnings.Add(1)
		metrics.ExtractionWarnings.WithLabelValues(warningLabel(w)).Inc()
	}
	if !res.OK() {
		return geo.Entry{Path: path}
	}
	return geo.Entry{Path: path, HasBox: true, BBox: res.BBox}
}

func warningLabel(w geo.Warning) string {
	if errors.Is(w.Kind, geo.ErrUnknownCRS) {
		return "unknown_crs"
	}
	return "reprojection_failure"
}

// pruneMissing deletes records of parent whose file no longer exists. Each
// delete is its own statement; failures are logged and skipped.
func (idx *Indexer) pruneMissing(ctx context.Context, parent string, log *logging.Logger) int {
	existing, err := idx.store.ListBoundaries(ctx, parent)
	if err != nil {
		log.Warn("listing records for pruning: %v", err)
		return 0
	}

	pruned := 0
	for _, b := range existing {
		if ctx.Err() != nil {
			break
		}
		_, err := filesystem.StatWithRetry(b.Path, idx.retry)
		if !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := idx.store.DeleteBoundary(ctx, b.Path); err != nil {
			log.Warn("pruning %s: %v", b.Path, err)
			continue
		}
		pruned++
		metrics.IndexerRecordsPruned.Inc()
		log.Debug("pruned %s: file no longer exists", b.Path)
	}
	return pruned
}
