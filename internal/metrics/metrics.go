// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_upstream_requests_total",
			Help: "Requests made to the job search API",
		},
		[]string{"endpoint", "status"}, // endpoint=search/detail, status=2xx/4xx/5xx/error
	)

	DetailMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingestion_detail_misses_total",
			Help: "Detail lookups that produced no detail record",
		},
	)

	RowsStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingestion_rows_staged_total",
			Help: "Canonical rows written to object storage",
		},
	)

	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_storage_operations_total",
			Help: "Object storage operations by outcome",
		},
		[]string{"operation", "status"},
	)

	LoadJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_load_jobs_total",
			Help: "Warehouse load job submissions by outcome",
		},
		[]string{"status"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_runs_total",
			Help: "Ingestion runs by outcome",
		},
		[]string{"status"}, // success, failure, empty
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestion_run_duration_seconds",
			Help:    "Duration of ingestion runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4min
		},
		[]string{"phase"},
	)
)

// StatusClass buckets an HTTP status code for use as a label value.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}
