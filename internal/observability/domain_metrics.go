package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytalk_questions_total",
			Help: "Total number of questions processed, labeled by classified intent.",
		},
		[]string{"intent"},
	)
	pipelineStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querytalk_pipeline_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)
	pipelineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytalk_pipeline_errors_total",
			Help: "Pipeline failures by error kind.",
		},
		[]string{"kind"},
	)
	safetyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytalk_safety_rejections_total",
			Help: "Queries rejected by the safety validator, by reason.",
		},
		[]string{"reason"},
	)
	llmTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytalk_llm_tokens_total",
			Help: "Language-model tokens consumed, by pipeline stage.",
		},
		[]string{"stage"},
	)
	warehouseScannedBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querytalk_warehouse_scanned_bytes",
			Help:    "Bytes scanned per executed warehouse query.",
			Buckets: []float64{1e5, 1e6, 1e7, 5e7, 1e8, 2.5e8, 5e8, 1e9},
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		pipelineStageDurationSeconds,
		pipelineErrorsTotal,
		safetyRejectionsTotal,
		llmTokensTotal,
		warehouseScannedBytes,
	)
}

func ObserveQuestion(intent string) {
	questionsTotal.WithLabelValues(intent).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	pipelineStageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncrementPipelineError(kind string) {
	pipelineErrorsTotal.WithLabelValues(kind).Inc()
}

func IncrementSafetyRejection(reason string) {
	safetyRejectionsTotal.WithLabelValues(reason).Inc()
}

func AddLLMTokens(stage string, tokens int) {
	if tokens <= 0 {
		return
	}
	llmTokensTotal.WithLabelValues(stage).Add(float64(tokens))
}

func ObserveScannedBytes(bytes int64) {
	if bytes < 0 {
		return
	}
	warehouseScannedBytes.Observe(float64(bytes))
}
