package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects runtime metrics for the agent engine.
//
// Tracked series:
//   - LLM request counts and latency by role and status
//   - Tool execution counts and latency by family and outcome
//   - Result cache hits and misses
//   - Circuit breaker opens per tool
//   - Run duration and iteration counts
type Metrics struct {
	LLMRequests *prometheus.CounterVec
	LLMLatency  *prometheus.HistogramVec

	// ToolExecutions labels: family, outcome (ok | error kind).
	ToolExecutions *prometheus.CounterVec
	ToolLatency    *prometheus.HistogramVec

	// CacheLookups labels: layer (dedup | cross_run), result (hit | miss).
	CacheLookups *prometheus.CounterVec

	BreakerOpens *prometheus.CounterVec

	RunDuration   prometheus.Histogram
	RunIterations prometheus.Histogram
}

// NewMetrics creates and registers the metric set on the given registerer.
// Pass prometheus.DefaultRegisterer in production; a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviebot_llm_requests_total",
			Help: "LLM requests by role and status.",
		}, []string{"role", "status"}),
		LLMLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moviebot_llm_request_seconds",
			Help:    "LLM request latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"role"}),
		ToolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviebot_tool_executions_total",
			Help: "Tool executions by family and outcome.",
		}, []string{"family", "outcome"}),
		ToolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moviebot_tool_execution_seconds",
			Help:    "Tool execution latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"family"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviebot_result_cache_lookups_total",
			Help: "Tool result cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		BreakerOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviebot_circuit_opens_total",
			Help: "Circuit breaker open transitions per tool.",
		}, []string{"tool"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moviebot_run_seconds",
			Help:    "End-to-end run duration in seconds.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
		}),
		RunIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moviebot_run_iterations",
			Help:    "LLM iterations per run.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LLMRequests, m.LLMLatency,
			m.ToolExecutions, m.ToolLatency,
			m.CacheLookups, m.BreakerOpens,
			m.RunDuration, m.RunIterations,
		)
	}
	return m
}
