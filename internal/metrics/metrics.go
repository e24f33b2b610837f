// Package metrics registers the engine's Prometheus collectors. All
// metrics share the noortime_ prefix and are registered once at init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts calendar lookups served by a cache tier.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noortime_cache_hits_total",
		Help: "Calendar cache hits by tier.",
	}, []string{"tier", "zone", "year"})

	// CacheMisses counts lookups that fell through every tier.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noortime_cache_misses_total",
		Help: "Calendar cache misses (all tiers).",
	}, []string{"zone", "year"})

	// APIRequests counts upstream adapter calls by outcome.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noortime_api_requests_total",
		Help: "Upstream adapter requests by status.",
	}, []string{"adapter", "endpoint", "status"})

	// APIRequestDuration observes upstream adapter latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "noortime_api_request_duration_seconds",
		Help:    "Upstream adapter request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"adapter", "endpoint"})

	// TaskRuns counts background task executions by outcome.
	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noortime_bg_task_runs_total",
		Help: "Background task runs by status.",
	}, []string{"task", "status"})

	// TaskDuration observes background task run time.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "noortime_bg_task_duration_seconds",
		Help:    "Background task run time.",
		Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900},
	}, []string{"task"})
)

// ObserveTask records one background task run.
func ObserveTask(task string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	TaskRuns.WithLabelValues(task, status).Inc()
	TaskDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}
