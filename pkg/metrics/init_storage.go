package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStorageMetrics() {
	r.StorageKeysTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kvs_storage_keys_total",
			Help: "Number of live keys known to the engine's in-memory index",
		},
	)

	r.StorageLogBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kvs_storage_log_bytes",
			Help: "Size of the on-disk log in bytes",
		},
	)

	r.StorageMemTableBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kvs_storage_memtable_bytes",
			Help: "Approximate size of the active memtable in bytes",
		},
	)

	r.StorageSSTableCount = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kvs_storage_sstable_count",
			Help: "Total number of level tables across all levels",
		},
	)

	r.StorageLevel0Files = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kvs_storage_level0_files",
			Help: "Number of level-0 tables",
		},
	)
}
