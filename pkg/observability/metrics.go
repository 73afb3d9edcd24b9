// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the dojo engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ExecutionBuckets covers code runs from a fast interpreter start to a
// slow compile plus run, 50ms to 120s.
var ExecutionBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// AIBuckets suits completion API latencies, 100ms to 120s.
var AIBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dojo_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dojo_request_duration_seconds",
			Help:    "Request duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"method", "route"},
	)

	// HTTPInFlight tracks HTTP requests being served.
	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dojo_http_requests_inflight",
			Help: "HTTP requests being served",
		},
	)

	// ExecutionsTotal counts finished executions by language and outcome.
	// Outcome is "passed", "failed", or a diagnostic kind.
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dojo_executions_total",
			Help: "Code executions",
		},
		[]string{"language", "outcome"},
	)

	// ExecutionDuration records wall time per execution.
	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dojo_execution_duration_seconds",
			Help:    "Execution wall time",
			Buckets: ExecutionBuckets,
		},
		[]string{"language"},
	)

	// ExecutionsInFlight tracks executions currently holding a worker.
	ExecutionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dojo_executions_inflight",
			Help: "Executions holding a worker",
		},
	)

	// ExecutionQueueDepth tracks executions waiting for a worker.
	ExecutionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dojo_execution_queue_depth",
			Help: "Executions waiting for a worker",
		},
	)

	// JudgeRequestsTotal counts judge and generate calls by kind and outcome.
	JudgeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dojo_judge_requests_total",
			Help: "AI judge requests",
		},
		[]string{"kind", "outcome"},
	)

	// AIRetriesTotal counts retried completion calls by error type.
	AIRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dojo_ai_retries_total",
			Help: "Retried AI calls",
		},
		[]string{"error_type"},
	)

	// AILatency records completion API latency per attempt.
	AILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dojo_ai_latency_seconds",
			Help:    "AI call latency",
			Buckets: AIBuckets,
		},
		[]string{"model"},
	)

	// ToolchainAvailable is 1 when the last probe found the toolchain.
	ToolchainAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dojo_toolchain_available",
			Help: "Toolchain availability from the last probe",
		},
		[]string{"language"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dojo_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		HTTPInFlight,
		ExecutionsTotal,
		ExecutionDuration,
		ExecutionsInFlight,
		ExecutionQueueDepth,
		JudgeRequestsTotal,
		AIRetriesTotal,
		AILatency,
		ToolchainAvailable,
		RateLimitRejectedTotal,
	)
}
