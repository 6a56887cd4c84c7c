package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_pipeline_questions_total",
			Help: "Total number of pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)
	generationRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_generation_retries_total",
			Help: "Total number of SQL generation retries after a completion failure.",
		},
	)
	validationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_validation_rejections_total",
			Help: "Total number of candidate statements rejected by the validator.",
		},
		[]string{"reason"},
	)
	executionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_execution_duration_seconds",
			Help:    "Warehouse query execution latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	synthesisFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_synthesis_fallbacks_total",
			Help: "Total number of answers degraded to raw rows after a synthesis failure.",
		},
	)
	completionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_completion_duration_seconds",
			Help:    "Completion call latency by stage.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		generationRetriesTotal,
		validationRejectionsTotal,
		executionDurationSeconds,
		synthesisFallbacksTotal,
		completionDurationSeconds,
	)
}

func ObservePipelineOutcome(outcome string) {
	questionsTotal.WithLabelValues(outcome).Inc()
}

func IncrementGenerationRetry() {
	generationRetriesTotal.Inc()
}

func ObserveValidationRejection(reason string) {
	validationRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveExecutionDuration(elapsed time.Duration) {
	executionDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementSynthesisFallback() {
	synthesisFallbacksTotal.Inc()
}

func ObserveCompletionDuration(stage string, elapsed time.Duration) {
	completionDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}
