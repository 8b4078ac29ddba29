// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubsectionsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_subsections_completed_total",
			Help: "Total number of subsections generated, by widget type",
		},
		[]string{"widget_type"},
	)

	SubsectionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_subsections_failed_total",
			Help: "Total number of subsection generations that failed",
		},
		[]string{"widget_type", "error_code"},
	)

	SubsectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "generation_subsection_duration_seconds",
			Help: "Duration of a single subsection generation in seconds",
		},
		[]string{"widget_type"},
	)

	BatchJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_batch_jobs_active",
			Help: "Number of batch generation jobs currently running",
		},
	)

	RetrievalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_requests_total",
			Help: "Total number of data retrieval calls, by source and outcome",
		},
		[]string{"source_id", "status"},
	)

	RegistryCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_cache_requests_total",
			Help: "Registry lookups served from cache vs the database",
		},
		[]string{"result"},
	)
)
