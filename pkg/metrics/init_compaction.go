package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCompactionMetrics() {
	r.CompactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvs_compactions_total",
			Help: "Total number of compactions run, by kind (lse, leveled, trivial_move)",
		},
		[]string{"kind"},
	)

	r.CompactionDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kvs_compaction_duration_seconds",
			Help:    "Compaction run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "kvs_flushes_total",
			Help: "Total number of memtable flushes to a level table",
		},
	)
}
