package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(toolCallsTotal, toolCallLatencyMs, toolDeniedTotal) }

var toolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_tool_calls_total",
		Help: "Tool gateway calls, labeled by tool, phase and success.",
	},
	[]string{"tool", "phase", "success"},
)

var toolCallLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gateway_tool_call_latency_ms",
		Help:    "Tool gateway call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000},
	},
	[]string{"tool"},
)

var toolDeniedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_tool_denied_total",
		Help: "Tool calls rejected by the phase whitelist.",
	},
	[]string{"tool", "phase"},
)

func ObserveToolCall(tool, phase string, d time.Duration, success bool) {
	toolCallsTotal.WithLabelValues(norm(tool), norm(phase), strconv.FormatBool(success)).Inc()
	toolCallLatencyMs.WithLabelValues(norm(tool)).Observe(float64(d.Milliseconds()))
}

func IncToolDenied(tool, phase string) {
	toolDeniedTotal.WithLabelValues(norm(tool), norm(phase)).Inc()
}
