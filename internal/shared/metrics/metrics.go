package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomeRejected         = "rejected"
	OutcomeExtractionFailed = "extraction_failed"
	OutcomeAnalysisFailed   = "analysis_failed"
	OutcomeStorageFailed    = "storage_failed"
	OutcomeInternalError    = "internal_error"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_uploads_total",
			Help: "Document uploads by outcome",
		},
		[]string{"outcome"},
	)

	analysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Duration of contract analysis including the model call",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Model requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	analysisTruncatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_truncated_total",
			Help: "Analyses whose input text was truncated before the model call",
		},
	)

	clauseAnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_clause_anomalies_total",
			Help: "Clauses dropped or repaired while validating model output",
		},
		[]string{"kind"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// IncUpload counts an upload attempt with its final outcome.
func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysisDuration records how long one analysis took.
func ObserveAnalysisDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	analysisDuration.Observe(d.Seconds())
}

// IncLLMRequest counts one model call.
func IncLLMRequest(provider, outcome string) {
	llmRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// IncAnalysisTruncated counts an analysis whose input was cut.
func IncAnalysisTruncated() {
	analysisTruncatedTotal.Inc()
}

// IncClauseAnomaly counts a clause that was dropped or renamed.
func IncClauseAnomaly(kind string) {
	clauseAnomaliesTotal.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
