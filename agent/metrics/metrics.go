package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chative_turns_total",
			Help: "Handled turns by routing decision",
		},
		[]string{"decision"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chative_turn_duration_seconds",
			Help:    "End to end turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"decision"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chative_tool_calls_total",
			Help: "Tool invocations by tool and result code",
		},
		[]string{"agent", "tool", "code"},
	)

	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chative_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	inferenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chative_inference_failures_total",
			Help: "Recovered inference failures by agent",
		},
		[]string{"agent"},
	)

	loopTruncations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chative_specialist_truncations_total",
			Help: "Specialist loops that hit the tool call budget",
		},
		[]string{"agent"},
	)

	identityViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chative_identity_violations_total",
			Help: "Requests refused for referencing another customer",
		},
	)

	handoffsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chative_handoffs_total",
			Help: "Live agent handoff attempts by status",
		},
		[]string{"status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chative_http_requests_total",
			Help: "HTTP requests by path and status",
		},
		[]string{"method", "path", "status"},
	)

	registerOnce sync.Once
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		turnsTotal,
		turnDuration,
		toolCallsTotal,
		toolCallDuration,
		inferenceFailures,
		loopTruncations,
		identityViolations,
		handoffsTotal,
		httpRequestsTotal,
	}
}

// Register adds the collectors to the default registry once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(collectors()...)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordTurn(decision string, d time.Duration) {
	turnsTotal.WithLabelValues(decision).Inc()
	turnDuration.WithLabelValues(decision).Observe(d.Seconds())
}

func RecordToolCall(agent, tool, code string, d time.Duration) {
	toolCallsTotal.WithLabelValues(agent, tool, code).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func RecordInferenceFailure(agent string) {
	inferenceFailures.WithLabelValues(agent).Inc()
}

func RecordTruncation(agent string) {
	loopTruncations.WithLabelValues(agent).Inc()
}

func RecordIdentityViolation() {
	identityViolations.Inc()
}

func RecordHandoff(status string) {
	handoffsTotal.WithLabelValues(status).Inc()
}

func RecordHTTPRequest(method, path, status string) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}
