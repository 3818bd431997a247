package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache/version inventory metrics
	CachesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cachedb_caches_total",
			Help: "Total number of named caches known to this process",
		},
	)

	RecordsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cachedb_records_total",
			Help: "Current record count in a cache's main environment",
		},
		[]string{"cache_name"},
	)

	// Log reader metrics
	LogReaderOffset = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cachedb_logreader_offset_bytes",
			Help: "Current byte offset a log reader has consumed from the operation log",
		},
		[]string{"cache_name"},
	)

	LogReaderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachedb_logreader_retries_total",
			Help: "Total number of short-read retries while tailing the operation log",
		},
		[]string{"cache_name"},
	)

	// Writer/apply metrics
	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cachedb_apply_duration_seconds",
			Help:    "Time taken to apply one operation to the main environment",
			Buckets: prometheus.DefBuckets,
		},
	)

	OperationsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachedb_operations_applied_total",
			Help: "Total number of operations applied, by operation kind",
		},
		[]string{"kind"},
	)

	// Index worker metrics
	IndexWorkerQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cachedb_indexworker_queue_depth",
			Help: "Current number of jobs queued for an index worker",
		},
		[]string{"index_id"},
	)

	IndexLagOperations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cachedb_index_lag_operations",
			Help: "Operation log offsets applied to the main environment but not yet reflected in an index's advance marker",
		},
		[]string{"index_id"},
	)

	IndexApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cachedb_index_apply_duration_seconds",
			Help:    "Time taken for an index worker to apply one batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index_id"},
	)

	// Query/executor metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachedb_queries_total",
			Help: "Total number of queries executed, by outcome",
		},
		[]string{"outcome"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cachedb_query_duration_seconds",
			Help:    "Query execution duration in seconds, by plan kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"plan_kind"},
	)

	IntersectionSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cachedb_intersection_result_size",
			Help:    "Number of primary keys surviving a k-way bitmap intersection",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// Manager metrics
	VersionSwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachedb_version_swaps_total",
			Help: "Total number of alias swaps to a new cache version",
		},
		[]string{"cache_name"},
	)
)

func init() {
	prometheus.MustRegister(CachesTotal)
	prometheus.MustRegister(RecordsTotal)
	prometheus.MustRegister(LogReaderOffset)
	prometheus.MustRegister(LogReaderRetriesTotal)
	prometheus.MustRegister(ApplyDuration)
	prometheus.MustRegister(OperationsAppliedTotal)
	prometheus.MustRegister(IndexWorkerQueueDepth)
	prometheus.MustRegister(IndexLagOperations)
	prometheus.MustRegister(IndexApplyDuration)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(IntersectionSize)
	prometheus.MustRegister(VersionSwapsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
