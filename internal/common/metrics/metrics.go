// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssistantRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_requests_total",
			Help: "Total number of assistant requests by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	AssistantRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_request_duration_seconds",
			Help:    "Duration of assistant requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 45},
		},
		[]string{"path"},
	)

	AssistantIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_iterations",
			Help:    "Think/act/observe cycles per orchestration session",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	CatalogToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_tool_invocations_total",
			Help: "Catalog tool invocations by result (rows, empty, error)",
		},
		[]string{"result"},
	)

	FilterResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_resolutions_total",
			Help: "Filter resolutions by the rule that produced the filter",
		},
		[]string{"rule"},
	)

	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_requests_total",
			Help: "Completion service requests by status",
		},
		[]string{"status"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
