// Package metrics exposes Prometheus counters, gauges, and histograms for
// the storage engine, the compactor, and the connection pool.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the key-value store.
type Registry struct {
	// Engine operation metrics
	EngineOpsTotal    *prometheus.CounterVec
	EngineOpDuration  *prometheus.HistogramVec
	EngineErrorsTotal *prometheus.CounterVec

	// Storage metrics
	StorageKeysTotal     prometheus.Gauge
	StorageLogBytes      prometheus.Gauge
	StorageMemTableBytes prometheus.Gauge
	StorageSSTableCount  prometheus.Gauge
	StorageLevel0Files   prometheus.Gauge

	// Compaction metrics
	CompactionsTotal    *prometheus.CounterVec
	CompactionDuration  prometheus.Histogram
	FlushesTotal        prometheus.Counter

	// Pool metrics
	PoolQueueDepth    prometheus.Gauge
	PoolJobsTotal     *prometheus.CounterVec
	PoolPanicsTotal   prometheus.Counter

	// System metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge
	ShutdownsTotal   prometheus.Counter

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{registry: reg}

	r.initEngineMetrics()
	r.initStorageMetrics()
	r.initCompactionMetrics()
	r.initPoolMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
