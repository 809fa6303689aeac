// Package prometheus exports realtime session metrics in the Prometheus format.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "museum_agent"

var (
	// sessionsConnected is a gauge of sessions whose control channel is open.
	sessionsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_connected",
			Help:      "Number of sessions currently connected",
		},
	)

	// connectDuration is a histogram of connect attempt duration, from
	// CONNECTING until the attempt settles.
	connectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Duration of connect attempts in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"result"},
	)

	// connectAttemptsTotal is a counter of settled connect attempts.
	connectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of connect attempts",
		},
		[]string{"result"}, // result: success, auth_error, transport_error, aborted, error
	)

	// controlEventsTotal is a counter of control-channel messages.
	controlEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_events_total",
			Help:      "Total control channel messages by direction and type",
		},
		[]string{"direction", "type"}, // direction: client, server
	)

	// dispatchErrorsTotal is a counter of dropped inbound events.
	dispatchErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Total inbound events dropped as malformed",
		},
	)

	// agentChangesTotal is a counter of active agent changes.
	agentChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_changes_total",
			Help:      "Total active agent changes",
		},
		[]string{"from", "to", "kind", "status"}, // kind: handoff, manual
	)

	// toolCallDuration is a histogram of local tool call duration.
	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"tool"},
	)

	// toolCallsTotal is a counter of local tool calls.
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "status"}, // status: success, error
	)

	allMetrics = []prometheus.Collector{
		sessionsConnected,
		connectDuration,
		connectAttemptsTotal,
		controlEventsTotal,
		dispatchErrorsTotal,
		agentChangesTotal,
		toolCallDuration,
		toolCallsTotal,
	}
)

// RecordConnected records a session entering or leaving CONNECTED.
func RecordConnected(connected bool) {
	if connected {
		sessionsConnected.Inc()
		return
	}
	sessionsConnected.Dec()
}

// RecordConnectAttempt records a settled connect attempt.
func RecordConnectAttempt(result string, durationSeconds float64) {
	connectDuration.WithLabelValues(result).Observe(durationSeconds)
	connectAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordControlEvent records one control-channel message.
func RecordControlEvent(direction, eventType string) {
	controlEventsTotal.WithLabelValues(direction, eventType).Inc()
}

// RecordDispatchError records a dropped inbound event.
func RecordDispatchError() {
	dispatchErrorsTotal.Inc()
}

// RecordAgentChange records an agent switch or a rejected handoff.
func RecordAgentChange(from, to, kind, status string) {
	agentChangesTotal.WithLabelValues(from, to, kind, status).Inc()
}

// RecordToolCall records a tool call.
func RecordToolCall(toolName, status string, durationSeconds float64) {
	toolCallDuration.WithLabelValues(toolName).Observe(durationSeconds)
	toolCallsTotal.WithLabelValues(toolName, status).Inc()
}
