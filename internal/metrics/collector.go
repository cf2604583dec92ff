package metrics

import (
	"time"

	"video-overlay/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current session statistics
type Stats struct {
	LiveResults       int
	LiveResultBytes   int64
	SelectedFileBytes int64
	ScratchBytes      int64
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() Stats

// GetStats implements StatsProvider.
func (f StatsFunc) GetStats() Stats {
	return f()
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

	LiveResults.Set(float64(stats.LiveResults))
	LiveResultBytes.Set(float64(stats.LiveResultBytes))
	SelectedFileBytes.Set(float64(stats.SelectedFileBytes))
	ScratchBytes.Set(float64(stats.ScratchBytes))

	logging.Debug("Metrics collected: results=%d (%d bytes), selected=%d bytes, scratch=%d bytes",
		stats.LiveResults, stats.LiveResultBytes, stats.SelectedFileBytes, stats.ScratchBytes)
}
