package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (m *mockStatsProvider) IndexStats(_ context.Context) (Stats, error) {
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

func TestNewCollector(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, time.Minute)

	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", c.interval)
	}
	if c.stopChan == nil {
		t.Error("stopChan should be initialized")
	}
}

func TestCollectWithNilProvider(_ *testing.T) {
	c := NewCollector(nil, time.Minute)
	// Must not panic.
	c.collect()
}

// Not parallel: asserts on shared gauge values.
func TestCollectUpdatesGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		ActiveMedia:  120,
		TrashedMedia: 7,
		Directories:  14,
		TrashedBytes: 4096,
	}}
	c := NewCollector(provider, time.Minute)
	c.collect()

	if got := testutil.ToFloat64(IndexedMediaTotal.WithLabelValues("active")); got != 120 {
		t.Errorf("active media gauge = %v, want 120", got)
	}
	if got := testutil.ToFloat64(IndexedMediaTotal.WithLabelValues("trashed")); got != 7 {
		t.Errorf("trashed media gauge = %v, want 7", got)
	}
	if got := testutil.ToFloat64(IndexedDirectoriesTotal); got != 14 {
		t.Errorf("directories gauge = %v, want 14", got)
	}
	if got := testutil.ToFloat64(RecycleBinBytes); got != 4096 {
		t.Errorf("recycle bin bytes = %v, want 4096", got)
	}
}

func TestCollectKeepsPreviousValuesOnError(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{Directories: 3}}
	c := NewCollector(provider, time.Minute)
	c.collect()

	provider.mu.Lock()
	provider.stats = Stats{Directories: 99}
	provider.err = errors.New("database is locked")
	provider.mu.Unlock()
	c.collect()

	if got := testutil.ToFloat64(IndexedDirectoriesTotal); got != 3 {
		t.Errorf("directories gauge = %v, want previous value 3", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if provider.callCount() < 2 {
		t.Errorf("expected at least 2 collections, got %d", provider.callCount())
	}
}

func TestInitializeMetrics(_ *testing.T) {
	// Pre-populating label combinations must be safe to repeat.
	InitializeMetrics()
	InitializeMetrics()
}

func TestFilesystemObserver(t *testing.T) {
	o := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("media", "copy"))
	o.ObserveOperation("media", "copy", 0.01, errors.New("disk full"))
	o.ObserveOperation("media", "copy", 0.01, nil)
	after := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("media", "copy"))

	if after-before != 1 {
		t.Errorf("copy errors increased by %v, want 1", after-before)
	}

	beforeBytes := testutil.ToFloat64(FilesystemBytesCopied.WithLabelValues("staging"))
	o.ObserveBytesCopied("staging", 512)
	if got := testutil.ToFloat64(FilesystemBytesCopied.WithLabelValues("staging")) - beforeBytes; got != 512 {
		t.Errorf("bytes copied increased by %v, want 512", got)
	}
}
