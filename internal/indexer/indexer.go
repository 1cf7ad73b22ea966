package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"geoindex/internal/database"
	"geoindex/internal/filesystem"
	"geoindex/internal/geo"
	"geoindex/internal/logging"
	"geoindex/internal/metrics"
	"geoindex/internal/workers"
)

// Store is the part of the boundary store the indexer drives.
type Store interface {
	ListTrackedDirectories(ctx context.Context) ([]database.TrackedDirectory, error)
	UpdateDirectoryTimestamp(ctx context.Context, path string, ts float64) error
	InsertBoundary(ctx context.Context, b database.Boundary) error
	ListBoundaries(ctx context.Context, parent string) ([]database.Boundary, error)
	DeleteBoundary(ctx context.Context, path string) error
}

// stopTimeout bounds how long Stop waits for a pass in flight.
const stopTimeout = 20 * time.Second

// Config controls scheduling and concurrency.
type Config struct {
	// PollInterval is how often every tracked directory's mtime is checked.
	PollInterval time.Duration
	// IndexInterval forces a rescan of every directory regardless of mtime,
	// catching nested changes the directory mtime does not reflect. Zero
	// disables it.
	IndexInterval time.Duration
	// IndexWorkers bounds how many directories are reconciled at once.
	IndexWorkers int
	// FileWorkers bounds how many files of one directory are examined at once.
	FileWorkers int
	// PruneMissing deletes records whose file no longer exists.
	PruneMissing bool
	// WatchEnabled triggers a pass on filesystem events in tracked roots.
	WatchEnabled bool
	// WatchDebounce coalesces bursts of events into one pass.
	WatchDebounce time.Duration
}

// DefaultConfig returns the defaults used when no environment is set.
func DefaultConfig() Config {
	return Config{
		PollInterval:  30 * time.Second,
		IndexInterval: 6 * time.Hour,
		IndexWorkers:  workers.ForCPU(4),
		FileWorkers:   DefaultParallelWalkerConfig().NumWorkers,
		PruneMissing:  true,
		WatchEnabled:  true,
		WatchDebounce: 2 * time.Second,
	}
}

// Indexer keeps the boundary store in step with the tracked directories.
type Indexer struct {
	store        Store
	classifier   *geo.Classifier
	extractor    *geo.Extractor
	config       Config
	walkerConfig ParallelWalkerConfig
	retry        filesystem.RetryConfig
	log          *logging.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
	watcher  *Watcher

	indexMu              sync.Mutex
	isIndexing           bool
	rerun                bool
	rerunForce           bool
	stopped              bool
	passes               sync.WaitGroup
	lastIndexTime        time.Time
	lastPass             *PassReport
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	// Progress tracking
	dirsTotal      atomic.Int64
	dirsDone       atomic.Int64
	filesProcessed atomic.Int64
	recordsWritten atomic.Int64
	indexProgress  atomic.Value

	// Roots reported changed by the watcher, scanned on the next pass
	// regardless of mtime.
	changedMu sync.Mutex
	changed   map[string]struct{}

	onIndexComplete func(PassReport)
}

// IndexProgress tracks the current pass.
type IndexProgress struct {
	PassID           string    `json:"passId,omitempty"`
	DirectoriesTotal int64     `json:"directoriesTotal"`
	DirectoriesDone  int64     `json:"directoriesDone"`
	FilesProcessed   int64     `json:"filesProcessed"`
	RecordsWritten   int64     `json:"recordsWritten"`
	IsIndexing       bool      `json:"isIndexing"`
	StartedAt        time.Time `json:"startedAt,omitempty"`
}

// PassReport is the outcome of one pass over every tracked directory.
type PassReport struct {
	ID          string            `json:"id"`
	Forced      bool              `json:"forced"`
	StartedAt   time.Time         `json:"startedAt"`
	Duration    time.Duration     `json:"duration"`
	Directories []DirectoryReport `json:"directories"`
}

// Count returns how many directories ended the pass in state s.
func (p PassReport) Count(s State) int {
	n := 0
	for _, d := range p.Directories {
		if d.State == s {
			n++
		}
	}
	return n
}

// New creates an Indexer that decodes through reader and reprojector.
func New(store Store, reader geo.Reader, reprojector geo.Reprojector, config Config) *Indexer {
	log := logging.New("indexer")
	if config.IndexWorkers < 1 {
		config.IndexWorkers = 1
	}
	walkerConfig := DefaultParallelWalkerConfig()
	if config.FileWorkers > 0 {
		walkerConfig.NumWorkers = config.FileWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		store:        store,
		classifier:   geo.NewClassifier(reader, logging.New("classifier")),
		extractor:    geo.NewExtractor(reader, reprojector, logging.New("extractor")),
		config:       config,
		walkerConfig: walkerConfig,
		retry:        filesystem.DefaultRetryConfig(),
		log:          log,
		stopChan:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		startTime:    time.Now(),
		changed:      make(map[string]struct{}),
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// SetGate makes file workers wait on g before decoding each file.
func (idx *Indexer) SetGate(g Gate) {
	idx.walkerConfig.Gate = g
}

// SetOnIndexComplete sets a callback invoked after every pass.
func (idx *Indexer) SetOnIndexComplete(callback func(PassReport)) {
	idx.onIndexComplete = callback
}

// Start runs an initial pass in the background, then polls, rescans and
// (when enabled) watches tracked roots until Stop.
func (idx *Indexer) Start() error {
	metrics.IndexerParallelWorkers.Set(float64(idx.config.IndexWorkers))

	if idx.config.WatchEnabled {
		w, err := NewWatcher(idx.config.WatchDebounce, idx.MarkChanged)
		if err != nil {
			idx.log.Warn("filesystem watching disabled: %v", err)
		} else {
			idx.watcher = w
			w.Start(idx.ctx)
		}
	}

	go func() {
		idx.log.Info("Starting initial index in background...")
		if _, err := idx.ReconcileAll(idx.ctx); err != nil && !errors.Is(err, ErrIndexerStopped) {
			idx.log.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
	}()

	go idx.pollForChanges()

	if idx.config.IndexInterval > 0 {
		go idx.periodicIndex()
	}

	return nil
}

// Stop stops scheduling, cancels any pass in flight and waits up to
// stopTimeout for it to return. Directories cut off mid-scan keep their old
// timestamp and are retried next time. No pass starts after Stop.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() {
		idx.indexMu.Lock()
		idx.stopped = true
		idx.indexMu.Unlock()

		close(idx.stopChan)
		idx.cancel()
		if idx.watcher != nil {
			if err := idx.watcher.Stop(); err != nil {
				idx.log.Warn("stopping watcher: %v", err)
			}
		}

		done := make(chan struct{})
		go func() {
			idx.passes.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(stopTimeout):
			idx.log.Warn("pass still running %v after stop", stopTimeout)
		}
	})
}

// ReconcileAll runs one pass, scanning only directories whose mtime changed.
func (idx *Indexer) ReconcileAll(ctx context.Context) (PassReport, error) {
	return idx.runPass(ctx, false)
}

// RescanAll runs one pass that scans every directory regardless of mtime.
func (idx *Indexer) RescanAll(ctx context.Context) (PassReport, error) {
	return idx.runPass(ctx, true)
}

func (idx *Indexer) runPass(ctx context.Context, force bool) (PassReport, error) {
	if err := idx.tryStartIndexing(force); err != nil {
		if errors.Is(err, ErrIndexInProgress) {
			idx.log.Info("Index already in progress, queued another pass (forced: %v)", force)
		}
		return PassReport{}, err
	}
	defer idx.passes.Done()

	metrics.IndexerIsRunning.Set(1)
	metrics.IndexerRunsTotal.Inc()

	report := PassReport{
		ID:        uuid.NewString(),
		Forced:    force,
		StartedAt: time.Now(),
	}
	log := idx.log.With("pass", report.ID)

	err := idx.pass(ctx, &report, log)
	report.Duration = time.Since(report.StartedAt)

	metrics.IndexerIsRunning.Set(0)
	if err != nil {
		metrics.IndexerErrors.Inc()
		if rerun, rerunForce := idx.finishIndexing(nil); rerun {
			idx.startPass(rerunForce)
		}
		return report, err
	}

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(report.Duration.Seconds())
	log.Info("Pass complete in %v: %d committed, %d idle, %d partially failed",
		report.Duration, report.Count(StateCommitted), report.Count(StateIdle), report.Count(StatePartiallyFailed))

	rerun, rerunForce := idx.finishIndexing(&report)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete(report)
	}
	if rerun {
		idx.startPass(rerunForce)
	}
	return report, nil
}

// pass reconciles every tracked directory on a bounded pool. Per-directory
// failures are recorded in the report and never stop other directories.
func (idx *Indexer) pass(ctx context.Context, report *PassReport, log *logging.Logger) error {
	dirs, err := idx.store.ListTrackedDirectories(ctx)
	if err != nil {
		return fmt.Errorf("list tracked directories: %w", err)
	}
	idx.resetCounters(report, len(dirs))
	if idx.watcher != nil {
		idx.watcher.Sync(dirs)
	}

	changed := idx.takeChanged()

	results := make([]DirectoryReport, len(dirs))
	var g errgroup.Group
	g.SetLimit(idx.config.IndexWorkers)
	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			_, touched := changed[dir.Path]
			results[i] = idx.reconcileDirectory(ctx, dir, report.Forced || touched, log)
			idx.dirsDone.Add(1)
			idx.updateProgress(report)
			return nil
		})
	}
	_ = g.Wait()

	report.Directories = results
	return nil
}

// TriggerIndex runs a pass in the background. When a pass is already running
// another one is queued to start as soon as it finishes, and false is returned.
func (idx *Indexer) TriggerIndex() bool {
	return idx.startPass(false)
}

// TriggerRescan is TriggerIndex for a forced pass that rescans every
// directory regardless of mtime.
func (idx *Indexer) TriggerRescan() bool {
	return idx.startPass(true)
}

// startPass runs a pass in the background on the indexer's context. A
// request made while a pass runs is queued, and a queued forced request
// stays forced.
func (idx *Indexer) startPass(force bool) bool {
	idx.indexMu.Lock()
	if idx.stopped {
		idx.indexMu.Unlock()
		return false
	}
	running := idx.isIndexing
	if running {
		idx.rerun = true
		idx.rerunForce = idx.rerunForce || force
	}
	idx.indexMu.Unlock()
	if running {
		return false
	}

	go func() {
		_, err := idx.runPass(idx.ctx, force)
		if err != nil && !errors.Is(err, ErrIndexInProgress) && !errors.Is(err, ErrIndexerStopped) {
			idx.log.Error("triggered re-index failed: %v", err)
		}
	}()
	return true
}

// MarkChanged schedules paths for a rescan on the next pass even if their
// mtime is unchanged, and triggers that pass.
func (idx *Indexer) MarkChanged(paths ...string) {
	idx.changedMu.Lock()
	for _, p := range paths {
		idx.changed[p] = struct{}{}
	}
	idx.changedMu.Unlock()
	idx.TriggerIndex()
}

func (idx *Indexer) takeChanged() map[string]struct{} {
	idx.changedMu.Lock()
	defer idx.changedMu.Unlock()
	out := idx.changed
	idx.changed = make(map[string]struct{})
	return out
}

// pollForChanges periodically runs a pass; idle directories cost one stat.
func (idx *Indexer) pollForChanges() {
	if idx.config.PollInterval <= 0 {
		return
	}
	idx.log.Info("Starting change detection polling (interval: %v)", idx.config.PollInterval)

	ticker := time.NewTicker(idx.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.IndexerPollChecksTotal.Inc()
			if _, err := idx.ReconcileAll(idx.ctx); err != nil && !errors.Is(err, ErrIndexInProgress) {
				idx.log.Error("Polling pass failed: %v", err)
			}
		case <-idx.stopChan:
			idx.log.Info("Change detection polling stopped")
			return
		}
	}
}

func (idx *Indexer) periodicIndex() {
	ticker := time.NewTicker(idx.config.IndexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			idx.log.Debug("Periodic full rescan triggered")
			if _, err := idx.RescanAll(idx.ctx); err != nil && !errors.Is(err, ErrIndexInProgress) {
				idx.log.Error("periodic rescan failed: %v", err)
			}
		case <-idx.stopChan:
			return
		}
	}
}

// tryStartIndexing claims the pass slot. When a pass is already running the
// request is queued as a rerun, keeping force if either asked for it.
func (idx *Indexer) tryStartIndexing(force bool) error {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.stopped {
		return ErrIndexerStopped
	}
	if idx.isIndexing {
		idx.rerun = true
		idx.rerunForce = idx.rerunForce || force
		return ErrIndexInProgress
	}
	idx.isIndexing = true
	idx.passes.Add(1)
	return nil
}

// finishIndexing records the pass and reports whether another was queued
// and whether that one must be forced.
func (idx *Indexer) finishIndexing(report *PassReport) (rerun, force bool) {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
	if report != nil {
		idx.lastIndexTime = time.Now()
		idx.lastPass = report
	}
	idx.indexProgress.Store(IndexProgress{
		DirectoriesTotal: idx.dirsTotal.Load(),
		DirectoriesDone:  idx.dirsDone.Load(),
		FilesProcessed:   idx.filesProcessed.Load(),
		RecordsWritten:   idx.recordsWritten.Load(),
	})

	rerun, force = idx.rerun, idx.rerunForce
	idx.rerun, idx.rerunForce = false, false
	return rerun, force
}

func (idx *Indexer) resetCounters(report *PassReport, dirs int) {
	idx.dirsTotal.Store(int64(dirs))
	idx.dirsDone.Store(0)
	idx.filesProcessed.Store(0)
	idx.recordsWritten.Store(0)
	idx.updateProgress(report)
}

func (idx *Indexer) updateProgress(report *PassReport) {
	idx.indexProgress.Store(IndexProgress{
		PassID:           report.ID,
		DirectoriesTotal: idx.dirsTotal.Load(),
		DirectoriesDone:  idx.dirsDone.Load(),
		FilesProcessed:   idx.filesProcessed.Load(),
		RecordsWritten:   idx.recordsWritten.Load(),
		IsIndexing:       true,
		StartedAt:        report.StartedAt,
	})
}

// getProgress safely retrieves the current IndexProgress.
func (idx *Indexer) getProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetProgress returns the current indexing progress.
func (idx *Indexer) GetProgress() IndexProgress {
	return idx.getProgress()
}

// IsReady reports whether the initial pass has finished.
func (idx *Indexer) IsReady() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

// IsIndexing returns whether a pass is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time of the last completed pass.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// LastPass returns the report of the last completed pass, if any.
func (idx *Indexer) LastPass() (PassReport, bool) {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	if idx.lastPass == nil {
		return PassReport{}, false
	}
	return *idx.lastPass, true
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool           `json:"ready"`
	Indexing          bool           `json:"indexing"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	LastIndexed       time.Time      `json:"lastIndexed,omitempty"`
	InitialIndexError string         `json:"initialIndexError,omitempty"`
	Watching          int            `json:"watching"`
	IndexProgress     *IndexProgress `json:"indexProgress,omitempty"`
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:       idx.initialIndexComplete,
		Indexing:    idx.isIndexing,
		StartTime:   idx.startTime,
		Uptime:      time.Since(idx.startTime).String(),
		LastIndexed: idx.lastIndexTime,
	}
	if idx.watcher != nil {
		status.Watching = idx.watcher.Count()
	}
	if idx.isIndexing {
		progress := idx.getProgress()
		status.IndexProgress = &progress
	}
	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}
	return status
}
