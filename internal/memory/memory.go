package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"geoindex/internal/logging"
	"geoindex/internal/metrics"
)

var log = logging.New("memory")

// Config holds the backpressure thresholds.
type Config struct {
	// LimitBytes is the budget usage is measured against. Zero means the
	// current GOMEMLIMIT, and no limit disables the monitor.
	LimitBytes int64
	// PauseAt is the usage ratio at which Wait starts blocking.
	PauseAt float64
	// ResumeAt is the usage ratio below which blocked callers are released.
	ResumeAt float64
	// CheckInterval is how often heap usage is sampled.
	CheckInterval time.Duration
}

// DefaultConfig returns the thresholds used by the server.
func DefaultConfig() Config {
	return Config{
		PauseAt:       0.85,
		ResumeAt:      0.7,
		CheckInterval: 2 * time.Second,
	}
}

// Monitor samples heap usage and holds decoders back while it is critical.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	mu      sync.Mutex
	current uint64
	paused  bool
	resume  chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor. It never pauses when no limit is known.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit == 0 {
		log.Warn("no memory limit configured, backpressure disabled")
	}
	return &Monitor{
		config: config,
		limit:  limit,
		sample: heapAlloc,
		resume: make(chan struct{}),
		stop:   make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start samples usage every CheckInterval until Stop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	log.Info("Memory monitor started: pause at %.0f%% of %s", m.config.PauseAt*100, FormatBytes(m.limit))
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every blocked caller.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) check() {
	alloc := m.sample()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case !m.paused && usage >= m.config.PauseAt:
		log.Warn("Memory critical (%.1f%% of limit), pausing file decoding", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		go runtime.GC()
	case m.paused && usage < m.config.ResumeAt:
		log.Info("Memory recovered (%.1f%% of limit), resuming file decoding", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while usage is critical. It returns ctx.Err() when ctx ends
// first and nil once decoding may proceed or the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resume := m.resume
	m.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-m.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether Wait is currently blocking.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Stats returns the last sampled heap size, the limit and their ratio.
func (m *Monitor) Stats() (current uint64, limit int64, usage float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}
	return m.current, m.limit, usage
}
