package metrics

import (
	"time"

	"github.com/Nukesor/encarne/internal/logging"
)

// LibraryStats summarises the movie registry.
type LibraryStats struct {
	Encoded    int
	Failed     int
	Pending    int
	SavedBytes int64
}

// StatsProvider is implemented by the registry.
type StatsProvider interface {
	LibraryStats() (LibraryStats, error)
}

// Collector periodically refreshes the library gauges. Encoding runs can
// take days, so the gauges are kept current while the reconciler waits.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopped       bool
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the collection loop in the background.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop ends the collection loop. Calling it more than once is harmless.
func (c *Collector) Stop() {
	if c.stopped {
		return
	}
	c.stopped = true
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

// Collect refreshes the gauges once.
func (c *Collector) Collect() {
	c.collect()
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.LibraryStats()
	if err != nil {
		logging.Warn("Failed to collect library stats: %v", err)
		return
	}

	MoviesTotal.WithLabelValues("encoded").Set(float64(stats.Encoded))
	MoviesTotal.WithLabelValues("failed").Set(float64(stats.Failed))
	MoviesTotal.WithLabelValues("pending").Set(float64(stats.Pending))
	SavedBytes.Set(float64(stats.SavedBytes))

	logging.Debug("Metrics collected: encoded=%d, failed=%d, pending=%d, saved=%d",
		stats.Encoded, stats.Failed, stats.Pending, stats.SavedBytes)
}
