package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const DefaultInterval = 30 * time.Second

// Stats is one sample of process health
type Stats struct {
	Uptime        time.Duration
	Goroutines    int
	HeapAlloc     uint64
	HeapObjects   uint64
	LastGCPause   time.Duration
	Opportunities int
}

// SystemMonitor samples runtime stats and the opportunity cache size into
// gauges and logs a heartbeat on every sample
type SystemMonitor struct {
	interval time.Duration
	started  time.Time
	cached   func() int
	logger   *zap.Logger
	metrics  struct {
		goroutines    prometheus.Gauge
		heapObjects   prometheus.Gauge
		heapAlloc     prometheus.Gauge
		gcPause       prometheus.Gauge
		opportunities prometheus.Gauge
	}
}

// NewSystemMonitor registers the health gauges on reg. cached reports the
// number of live opportunities and may be nil.
func NewSystemMonitor(reg prometheus.Registerer, namespace string, interval time.Duration, cached func() int, logger *zap.Logger) *SystemMonitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if cached == nil {
		cached = func() int { return 0 }
	}
	m := &SystemMonitor{
		interval: interval,
		started:  time.Now(),
		cached:   cached,
		logger:   logger,
	}

	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "runtime", Name: name, Help: help})
	}
	m.metrics.goroutines = gauge("goroutines", "Current number of goroutines")
	m.metrics.heapObjects = gauge("heap_objects", "Current number of heap objects")
	m.metrics.heapAlloc = gauge("heap_alloc_bytes", "Current heap allocation in bytes")
	m.metrics.gcPause = gauge("gc_pause_seconds", "Duration of the most recent GC pause")
	m.metrics.opportunities = gauge("cached_opportunities", "Live opportunities held in the cache")
	return m
}

// Run samples until ctx is cancelled
func (m *SystemMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := m.Collect()
			m.logger.Info("Heartbeat",
				zap.Duration("uptime", st.Uptime.Truncate(time.Second)),
				zap.Int("goroutines", st.Goroutines),
				zap.Uint64("heap_alloc", st.HeapAlloc),
				zap.Duration("gc_pause", st.LastGCPause),
				zap.Int("opportunities", st.Opportunities))
		}
	}
}

// Collect takes one sample and updates the gauges
func (m *SystemMonitor) Collect() Stats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	st := Stats{
		Uptime:        time.Since(m.started),
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     memStats.HeapAlloc,
		HeapObjects:   memStats.HeapObjects,
		Opportunities: m.cached(),
	}
	if memStats.NumGC > 0 {
		st.LastGCPause = time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256])
	}

	m.metrics.goroutines.Set(float64(st.Goroutines))
	m.metrics.heapObjects.Set(float64(st.HeapObjects))
	m.metrics.heapAlloc.Set(float64(st.HeapAlloc))
	m.metrics.gcPause.Set(st.LastGCPause.Seconds())
	m.metrics.opportunities.Set(float64(st.Opportunities))
	return st
}
