package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway metrics
	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitakita_gateway_calls_total",
			Help: "Total number of AI gateway calls",
		},
		[]string{"status"}, // status: success|error|rate_limited
	)

	GatewayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kitakita_gateway_latency_seconds",
			Help:    "AI gateway call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	GatewayWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kitakita_gateway_wait_seconds",
			Help:    "Time spent waiting on the outbound rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)

	GatewayRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kitakita_gateway_retries_total",
			Help: "Total number of 429-triggered gateway retries",
		},
	)

	GatewayParseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kitakita_gateway_parse_failures_total",
			Help: "Total number of responses degraded to parsing_failed stubs",
		},
	)

	// Agent metrics
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitakita_agent_decisions_total",
			Help: "Total number of completed pipeline decisions",
		},
		[]string{"agent", "outcome"}, // outcome: decided|degraded
	)

	StageFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitakita_agent_stage_fallbacks_total",
			Help: "Total number of reasoning stages that fell back to stubs",
		},
		[]string{"agent", "stage"},
	)

	EpisodicEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kitakita_agent_episodic_evictions_total",
			Help: "Total number of episodic memory trim operations",
		},
	)

	AgentRecoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitakita_agent_recoveries_total",
			Help: "Total number of agent self-heal reinitializations",
		},
		[]string{"agent"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitakita_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kitakita_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)
)

// Register registers all metrics with the default registry.
func Register() {
	prometheus.MustRegister(
		GatewayCalls,
		GatewayLatency,
		GatewayWaitSeconds,
		GatewayRetries,
		GatewayParseFailures,
		Decisions,
		StageFallbacks,
		EpisodicEvictions,
		AgentRecoveries,
		WorkerExecutions,
		WorkerDuration,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
