package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPoolMetrics() {
	r.PoolQueueDepth = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kvs_pool_queue_depth",
			Help: "Number of jobs currently queued in the connection worker pool",
		},
	)

	r.PoolJobsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvs_pool_jobs_total",
			Help: "Total number of jobs submitted to the worker pool, by outcome",
		},
		[]string{"outcome"},
	)

	r.PoolPanicsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "kvs_pool_panics_recovered_total",
			Help: "Total number of job panics recovered by a pool worker",
		},
	)
}
