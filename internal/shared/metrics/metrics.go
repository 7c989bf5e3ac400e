package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "screenplay"

var (
	analysisStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_started_total",
		Help:      "Total analyses started.",
	})

	analysisFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_finished_total",
		Help:      "Total analyses finished, labeled by final status.",
	}, []string{"status"})

	analysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Wall-clock duration of a whole analysis job.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300, 600, 900},
	}, []string{"status"})

	providerCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Provider invocations, labeled by provider and outcome (succeeded, failed, skipped).",
	}, []string{"provider", "outcome"})

	providerRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_retries_total",
		Help:      "Provider retries after a retryable error.",
	}, []string{"provider"})

	providerLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_latency_seconds",
		Help:      "Provider call latency including retries.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120, 180},
	}, []string{"provider"})

	providerCostUSD = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_cost_usd_total",
		Help:      "Estimated provider spend in USD.",
	}, []string{"provider"})

	queueJobs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_jobs",
		Help:      "Jobs in the analysis queue, labeled by state (queued, running).",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(
		analysisStartedTotal,
		analysisFinishedTotal,
		analysisDurationSeconds,
		providerCallsTotal,
		providerRetriesTotal,
		providerLatencySeconds,
		providerCostUSD,
		queueJobs,
	)
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// ObserveAnalysisFinished records the final status and duration of one analysis.
func ObserveAnalysisFinished(status string, seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	analysisFinishedTotal.WithLabelValues(status).Inc()
	analysisDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// ObserveProviderCall records one provider outcome.
func ObserveProviderCall(provider, outcome string, seconds, cost float64) {
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
	if seconds > 0 {
		providerLatencySeconds.WithLabelValues(provider).Observe(seconds)
	}
	if cost > 0 {
		providerCostUSD.WithLabelValues(provider).Add(cost)
	}
}

// IncProviderRetry counts one retry.
func IncProviderRetry(provider string) {
	providerRetriesTotal.WithLabelValues(provider).Inc()
}

// SetQueueDepth publishes queue occupancy.
func SetQueueDepth(queued, running int) {
	queueJobs.WithLabelValues("queued").Set(float64(queued))
	queueJobs.WithLabelValues("running").Set(float64(running))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
