package indexer

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"geoindex/internal/geo"
	"geoindex/internal/logging"
	"geoindex/internal/workers"
)

// ParallelWalkerConfig configures the per-directory file pool.
type ParallelWalkerConfig struct {
	// NumWorkers is the number of files examined at once
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
	// Gate, when set, is waited on before each file is examined
	Gate Gate
}

// Gate holds workers back, e.g. while memory is under pressure.
type Gate interface {
	Wait(ctx context.Context) error
}

// DefaultParallelWalkerConfig returns defaults sized for the host. Decoding
// opens files and parses headers, so the pool is sized for I/O, capped low
// enough to stay polite on NFS. FILE_WORKERS overrides the size.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.FromEnv("FILE_WORKERS", workers.ForIO(8), 64),
		ChannelBuffer: 256,
		SkipHidden:    true,
	}
}

// examineFunc classifies one file and extracts its box when it has one.
type examineFunc func(path string) geo.Entry

// ParallelWalker walks one tracked directory and examines its files on a
// bounded pool of workers.
type ParallelWalker struct {
	config  ParallelWalkerConfig
	root    string
	examine examineFunc
	log     *logging.Logger

	jobs    chan string
	results chan geo.Entry
	wg      sync.WaitGroup

	filesSeen  atomic.Int64
	withBox    atomic.Int64
	walkErrors atomic.Int64
}

// NewParallelWalker creates a walker for root.
func NewParallelWalker(root string, config ParallelWalkerConfig, examine examineFunc, log *logging.Logger) *ParallelWalker {
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	return &ParallelWalker{
		config:  config,
		root:    root,
		examine: examine,
		log:     log,
		jobs:    make(chan string, config.ChannelBuffer),
		results: make(chan geo.Entry, config.ChannelBuffer),
	}
}

// Walk enumerates every file under the root and returns one entry per file.
// It fails with ErrDirectoryVanished when the root itself cannot be read and
// with ctx.Err() when cancelled. Unreadable subdirectories are skipped.
func (pw *ParallelWalker) Walk(ctx context.Context) ([]geo.Entry, error) {
	startTime := time.Now()

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(ctx)
	}

	var entries []geo.Entry
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for e := range pw.results {
			if e.HasBox {
				pw.withBox.Add(1)
			}
			entries = append(entries, e)
		}
	}()

	err := pw.walkAndEnqueue(ctx)

	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	<-collected

	pw.log.Debug("walk of %s complete: %d files, %d with bounds in %v (errors: %d)",
		pw.root, pw.filesSeen.Load(), pw.withBox.Load(), time.Since(startTime), pw.walkErrors.Load())

	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return entries, nil
}

func (pw *ParallelWalker) walkAndEnqueue(ctx context.Context) error {
	return filepath.WalkDir(pw.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == pw.root {
				return vanished(pw.root, err)
			}
			pw.walkErrors.Add(1)
			pw.log.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if path == pw.root {
			return nil
		}

		if pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		pw.filesSeen.Add(1)
		select {
		case pw.jobs <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func (pw *ParallelWalker) worker(ctx context.Context) {
	defer pw.wg.Done()

	for path := range pw.jobs {
		if ctx.Err() != nil {
			// Drain so the walker never blocks on a full channel.
			continue
		}
		if pw.config.Gate != nil {
			if err := pw.config.Gate.Wait(ctx); err != nil {
				continue
			}
		}
		pw.results <- pw.examine(path)
	}
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, withBox, errors int64) {
	return pw.filesSeen.Load(), pw.withBox.Load(), pw.walkErrors.Load()
}
