package metrics

import (
	"runtime"
	"time"
)

// RecordEngineOp records one set/get/remove call and its outcome.
func (r *Registry) RecordEngineOp(op, status string, duration time.Duration) {
	r.EngineOpsTotal.WithLabelValues(op, status).Inc()
	r.EngineOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordEngineError records an engine error by operation and error kind.
func (r *Registry) RecordEngineError(op, kind string) {
	r.EngineErrorsTotal.WithLabelValues(op, kind).Inc()
}

// RecordCompaction records a completed compaction run.
func (r *Registry) RecordCompaction(kind string, duration time.Duration) {
	r.CompactionsTotal.WithLabelValues(kind).Inc()
	r.CompactionDuration.Observe(duration.Seconds())
}

// RecordFlush records a memtable flush to a level table.
func (r *Registry) RecordFlush() {
	r.FlushesTotal.Inc()
}

// RecordPoolJob records a job submitted to the connection worker pool.
func (r *Registry) RecordPoolJob(outcome string) {
	r.PoolJobsTotal.WithLabelValues(outcome).Inc()
}

// RecordPoolPanic records a job panic recovered by a worker.
func (r *Registry) RecordPoolPanic() {
	r.PoolPanicsTotal.Inc()
}

// SetPoolQueueDepth updates the current pool queue depth gauge.
func (r *Registry) SetPoolQueueDepth(depth int) {
	r.PoolQueueDepth.Set(float64(depth))
}

// SetStorageStats updates the point-in-time storage gauges.
func (r *Registry) SetStorageStats(keys int, logBytes int64, memTableBytes int, sstableCount, level0Files int) {
	r.StorageKeysTotal.Set(float64(keys))
	r.StorageLogBytes.Set(float64(logBytes))
	r.StorageMemTableBytes.Set(float64(memTableBytes))
	r.StorageSSTableCount.Set(float64(sstableCount))
	r.StorageLevel0Files.Set(float64(level0Files))
}

// RecordShutdown records one graceful-shutdown initiation.
func (r *Registry) RecordShutdown() {
	r.ShutdownsTotal.Inc()
}

// RefreshSystemStats samples the Go runtime and updates the system gauges.
func (r *Registry) RefreshSystemStats(startedAt time.Time) {
	r.UptimeSeconds.Set(time.Since(startedAt).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}
