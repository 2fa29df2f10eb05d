// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Job metrics
	JobsCreated    prometheus.Counter
	JobsCompleted  prometheus.Counter
	JobsFailed     *prometheus.CounterVec
	JobsReused     prometheus.Counter
	JobsInProgress prometheus.Gauge
	JobDuration    prometheus.Histogram

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Lock metrics
	LockEntries prometheus.Gauge

	// Stream metrics
	StreamsActive   prometheus.Gauge
	StreamsRejected prometheus.Counter
	StreamRetries   prometheus.Counter
	StreamBytes     prometheus.Counter

	// Storage metrics
	BytesStored       prometheus.Counter
	CleanupJobsTotal  prometheus.Counter
	CleanupFilesTotal prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all application metrics.
func New() *Metrics {
	return &Metrics{
		JobsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "jobs",
			Name:      "created_total",
			Help:      "Total number of download jobs submitted",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "jobs",
			Name:      "completed_total",
			Help:      "Total number of jobs completed successfully",
		}),
		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "jobs",
			Name:      "failed_total",
			Help:      "Total number of failed jobs by error kind",
		}, []string{"kind"}),
		JobsReused: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "jobs",
			Name:      "reused_total",
			Help:      "Total number of jobs satisfied from the result cache",
		}),
		JobsInProgress: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidgate",
			Subsystem: "jobs",
			Name:      "in_progress",
			Help:      "Number of jobs currently in progress",
		}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vidgate",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Histogram of job duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of result cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of result cache misses",
		}),

		LockEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidgate",
			Subsystem: "locks",
			Name:      "entries",
			Help:      "Current number of live keyed-lock entries",
		}),

		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidgate",
			Subsystem: "streams",
			Name:      "active",
			Help:      "Number of streams currently being proxied",
		}),
		StreamsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "streams",
			Name:      "rejected_total",
			Help:      "Total number of streams rejected by the per-video cap",
		}),
		StreamRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "streams",
			Name:      "retries_total",
			Help:      "Total number of mid-stream retry attempts",
		}),
		StreamBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "streams",
			Name:      "bytes_total",
			Help:      "Total bytes relayed to stream callers",
		}),

		BytesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "storage",
			Name:      "bytes_total",
			Help:      "Total bytes written to artifact storage",
		}),
		CleanupJobsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "storage",
			Name:      "cleanup_jobs_total",
			Help:      "Total number of expired job records swept",
		}),
		CleanupFilesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "storage",
			Name:      "cleanup_files_total",
			Help:      "Total number of expired files cleaned up",
		}),

		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vidgate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// JobTimer returns a function to record job duration.
func (m *Metrics) JobTimer() func() {
	start := time.Now()

	return func() {
		if m == nil {
			return
		}
		m.JobDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordJobCreated increments the jobs created counter.
func (m *Metrics) RecordJobCreated() {
	if m == nil {
		return
	}
	m.JobsCreated.Inc()
	m.JobsInProgress.Inc()
}

// RecordJobCompleted records a completed job.
func (m *Metrics) RecordJobCompleted(reused bool) {
	if m == nil {
		return
	}
	m.JobsCompleted.Inc()
	m.JobsInProgress.Dec()
	if reused {
		m.JobsReused.Inc()
	}
}

// RecordJobFailed records a failed or cancelled job by kind.
func (m *Metrics) RecordJobFailed(kind string) {
	if m == nil {
		return
	}
	m.JobsFailed.WithLabelValues(kind).Inc()
	m.JobsInProgress.Dec()
}

// RecordCacheHit records a result cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss records a result cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// SetLockEntries sets the live keyed-lock entry gauge.
func (m *Metrics) SetLockEntries(n int) {
	if m == nil {
		return
	}
	m.LockEntries.Set(float64(n))
}

// StreamStarted marks a stream as active.
func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.StreamsActive.Inc()
}

// StreamEnded marks a stream as finished.
func (m *Metrics) StreamEnded() {
	if m == nil {
		return
	}
	m.StreamsActive.Dec()
}

// RecordStreamRejected records a stream rejected by the per-video cap.
func (m *Metrics) RecordStreamRejected() {
	if m == nil {
		return
	}
	m.StreamsRejected.Inc()
}

// RecordStreamRetry records one mid-stream retry attempt.
func (m *Metrics) RecordStreamRetry() {
	if m == nil {
		return
	}
	m.StreamRetries.Inc()
}

// RecordStreamBytes adds to the relayed byte counter.
func (m *Metrics) RecordStreamBytes(n int64) {
	if m == nil {
		return
	}
	m.StreamBytes.Add(float64(n))
}

// RecordBytesStored adds to the stored byte counter.
func (m *Metrics) RecordBytesStored(n int64) {
	if m == nil {
		return
	}
	m.BytesStored.Add(float64(n))
}

// RecordCleanup records cleanup metrics.
func (m *Metrics) RecordCleanup(jobs, files int) {
	if m == nil {
		return
	}
	m.CleanupJobsTotal.Add(float64(jobs))
	m.CleanupFilesTotal.Add(float64(files))
}
