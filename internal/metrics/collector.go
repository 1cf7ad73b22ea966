package metrics

import (
	"context"
	"time"

	"geoindex/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	Counts(ctx context.Context) (Stats, error)
}

// Stats holds the current boundary store counts
type Stats struct {
	TrackedDirectories int
	BoundaryRecords    int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	log           *logging.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		log:           logging.New("metrics"),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.Counts(ctx)
	if err != nil {
		c.log.Warn("Failed to collect store stats: %v", err)
		return
	}

	TrackedDirectoriesTotal.Set(float64(stats.TrackedDirectories))
	BoundaryRecordsTotal.Set(float64(stats.BoundaryRecords))

	c.log.Debug("Metrics collected: directories=%d, boundaries=%d",
		stats.TrackedDirectories, stats.BoundaryRecords)
}
