package metrics

import (
	"context"
	"time"

	"media-curator/internal/logging"
)

// StatsProvider reports aggregate index counts.
type StatsProvider interface {
	IndexStats(ctx context.Context) (Stats, error)
}

// Stats holds the current index statistics
type Stats struct {
	ActiveMedia  int
	TrashedMedia int
	Directories  int
	TrashedBytes int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
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

	stats, err := c.statsProvider.IndexStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	IndexedMediaTotal.WithLabelValues("active").Set(float64(stats.ActiveMedia))
	IndexedMediaTotal.WithLabelValues("trashed").Set(float64(stats.TrashedMedia))
	IndexedDirectoriesTotal.Set(float64(stats.Directories))
	RecycleBinBytes.Set(float64(stats.TrashedBytes))

	logging.Debug("Metrics collected: active=%d, trashed=%d, directories=%d, bin=%d bytes",
		stats.ActiveMedia, stats.TrashedMedia, stats.Directories, stats.TrashedBytes)
}
