package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIndexerMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"IndexerRunsTotal", IndexerRunsTotal},
		{"IndexerLastRunTimestamp", IndexerLastRunTimestamp},
		{"IndexerLastRunDuration", IndexerLastRunDuration},
		{"IndexerIsRunning", IndexerIsRunning},
		{"IndexerDirectoryOutcomes", IndexerDirectoryOutcomes},
		{"IndexerFilesClassified", IndexerFilesClassified},
		{"IndexerRecordsPersisted", IndexerRecordsPersisted},
		{"ExtractionWarnings", ExtractionWarnings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestDirectoryOutcomeCounter(t *testing.T) {
	before := testutil.ToFloat64(IndexerDirectoryOutcomes.WithLabelValues("committed"))
	IndexerDirectoryOutcomes.WithLabelValues("committed").Inc()
	after := testutil.ToFloat64(IndexerDirectoryOutcomes.WithLabelValues("committed"))

	if after-before != 1 {
		t.Errorf("expected committed outcome to grow by 1, got %v", after-before)
	}
}

func TestInitializeMetricsPopulatesLabels(t *testing.T) {
	InitializeMetrics()

	if n := testutil.CollectAndCount(IndexerFilesClassified); n < 4 {
		t.Errorf("expected at least 4 classification series, got %d", n)
	}
	if n := testutil.CollectAndCount(ExtractionWarnings); n < 2 {
		t.Errorf("expected at least 2 warning series, got %d", n)
	}
}

func TestFilesystemObserver(t *testing.T) {
	o := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat"))
	o.ObserveStaleError("stat")
	o.ObserveRetryAttempt("stat")
	o.ObserveRetrySuccess("stat")
	o.ObserveRetryFailure("stat")
	o.ObserveRetryDuration("stat", 0.01)

	if got := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat")); got-before != 1 {
		t.Errorf("expected stale errors to grow by 1, got %v", got-before)
	}
}

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (m *mockStatsProvider) Counts(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats, m.err
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCollectorSetsGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{TrackedDirectories: 3, BoundaryRecords: 42}}
	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(TrackedDirectoriesTotal); got != 3 {
		t.Errorf("TrackedDirectoriesTotal = %v, want 3", got)
	}
	if got := testutil.ToFloat64(BoundaryRecordsTotal); got != 42 {
		t.Errorf("BoundaryRecordsTotal = %v, want 42", got)
	}
}

func TestCollectorKeepsGaugesOnError(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{TrackedDirectories: 7, BoundaryRecords: 9}}
	c := NewCollector(provider, time.Hour)
	c.collect()

	provider.mu.Lock()
	provider.err = errors.New("store closed")
	provider.stats = Stats{}
	provider.mu.Unlock()
	c.collect()

	if got := testutil.ToFloat64(TrackedDirectoriesTotal); got != 7 {
		t.Errorf("gauge should keep last good value, got %v", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if provider.callCount() < 2 {
		t.Errorf("expected at least 2 collections, got %d", provider.callCount())
	}
}

func TestNilProviderIsNoop(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.collect()
}
