package metrics

import (
	"time"

	"media-toolbox/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	// WorkspaceBytes is the scratch usage of each loaded engine, by session.
	WorkspaceBytes map[string]int64
	// RetainedBytes is the size of results held for download.
	RetainedBytes int64
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

	stats := c.statsProvider.GetStats()

	var total int64
	for name, bytes := range stats.WorkspaceBytes {
		EngineWorkspaceBytes.WithLabelValues(name).Set(float64(bytes))
		total += bytes
	}
	RetainedOutputBytes.Set(float64(stats.RetainedBytes))

	logging.Debug("Metrics collected: workspaces=%d bytes, retained=%d bytes", total, stats.RetainedBytes)
}
