package cache

import "github.com/prometheus/client_golang/prometheus"

// statsCollector reads a Memory's counters at scrape time.
type statsCollector struct {
	memory     *Memory
	operations *prometheus.Desc
	entries    *prometheus.Desc
	ttl        *prometheus.Desc
}

// NewStatsCollector exports the counters of m under the given cache name.
func NewStatsCollector(name string, m *Memory) prometheus.Collector {
	labels := prometheus.Labels{"cache": name}
	return &statsCollector{
		memory: m,
		operations: prometheus.NewDesc("tutorlix_cache_operations_total",
			"In-process cache operations by kind.", []string{"op"}, labels),
		entries: prometheus.NewDesc("tutorlix_cache_entries",
			"Entries currently held, expired ones included until swept.", nil, labels),
		ttl: prometheus.NewDesc("tutorlix_cache_ttl_seconds",
			"Lifetime of a cache entry.", nil, labels),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.entries
	ch <- c.ttl
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.memory.Stats()
	for op, value := range map[string]int64{
		"hit":      stats.Hits,
		"miss":     stats.Misses,
		"set":      stats.Sets,
		"delete":   stats.Deletes,
		"eviction": stats.Evictions,
	} {
		ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(value), op)
	}
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(stats.Size))
	ch <- prometheus.MustNewConstMetric(c.ttl, prometheus.GaugeValue, stats.TTL.Seconds())
}
