package processor

import (
	"sync/atomic"
	"time"
)

// ServiceMetrics tracks dispatch throughput for the periodic stats log.
// Prometheus counters cover alerting; this keeps a cheap in-process view
// that survives without a scrape target.
type ServiceMetrics struct {
	processed  int64
	failed     int64
	durationNs int64
	startedNs  int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{startedNs: time.Now().UnixNano()}
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	atomic.AddInt64(&m.processed, 1)
	atomic.AddInt64(&m.durationNs, int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	atomic.AddInt64(&m.failed, 1)
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	processed := atomic.LoadInt64(&m.processed)
	failed := atomic.LoadInt64(&m.failed)
	durationNs := atomic.LoadInt64(&m.durationNs)
	startedNs := atomic.LoadInt64(&m.startedNs)

	elapsed := time.Since(time.Unix(0, startedNs)).Seconds()

	var rate float64
	if elapsed > 0 {
		rate = float64(processed) / elapsed
	}

	var avg time.Duration
	if processed > 0 {
		avg = time.Duration(durationNs / processed)
	}

	return map[string]interface{}{
		"total_processed": processed,
		"total_failed":    failed,
		"rate_per_second": rate,
		"avg_duration_ms": avg.Milliseconds(),
		"uptime_seconds":  elapsed,
	}
}

func (m *ServiceMetrics) Reset() {
	atomic.StoreInt64(&m.processed, 0)
	atomic.StoreInt64(&m.failed, 0)
	atomic.StoreInt64(&m.durationNs, 0)
	atomic.StoreInt64(&m.startedNs, time.Now().UnixNano())
}
