// Package prometheus exports live session metrics in the Prometheus format.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stylist_live"

var (
	// sessionsActive is a gauge of sessions between start and end.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active live sessions",
		},
	)

	// sessionsTotal counts ended sessions by final state.
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of ended live sessions",
		},
		[]string{"final_state"}, // closed, failed
	)

	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of live session duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"final_state"},
	)

	setupLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "setup_latency_seconds",
			Help:      "Time from transport open to setup acknowledgement",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	stateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of protocol state transitions",
		},
		[]string{"from", "to"},
	)

	envelopesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_sent_total",
			Help:      "Total number of outbound envelopes written to the transport",
		},
		[]string{"kind"},
	)

	envelopeBytesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelope_bytes_sent_total",
			Help:      "Total encoded bytes of outbound envelopes",
		},
		[]string{"kind"},
	)

	envelopesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_received_total",
			Help:      "Total number of inbound events decoded from the transport",
		},
		[]string{"kind"},
	)

	mediaDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_dropped_total",
			Help:      "Realtime media envelopes dropped on a full outbound queue",
		},
		[]string{"kind"},
	)

	decodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound media chunks that could not be decoded",
		},
	)

	interruptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Server interruptions that stopped playback",
		},
	)

	audioScheduledSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_scheduled_seconds_total",
			Help:      "Seconds of model audio handed to playback",
		},
	)

	turnsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_completed_total",
			Help:      "Completed conversation turns",
		},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by the service",
		},
		[]string{"type"}, // prompt, response
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors surfaced to the application",
		},
		[]string{"operation"},
	)

	goAwayTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "go_away_total",
			Help:      "Server disconnect notices received",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		setupLatency,
		stateTransitionsTotal,
		envelopesSentTotal,
		envelopeBytesSentTotal,
		envelopesReceivedTotal,
		mediaDroppedTotal,
		decodeErrorsTotal,
		interruptionsTotal,
		audioScheduledSeconds,
		turnsCompletedTotal,
		tokensTotal,
		errorsTotal,
		goAwayTotal,
	}
)

// RecordSessionStart records a session becoming active.
func RecordSessionStart(setupLatencySeconds float64) {
	sessionsActive.Inc()
	setupLatency.Observe(setupLatencySeconds)
}

// RecordSessionEnd records a session reaching closed or failed. wasActive
// reports whether the session had been counted as active.
func RecordSessionEnd(finalState string, durationSeconds float64, wasActive bool) {
	if wasActive {
		sessionsActive.Dec()
	}
	sessionsTotal.WithLabelValues(finalState).Inc()
	sessionDuration.WithLabelValues(finalState).Observe(durationSeconds)
}

// RecordStateTransition records a protocol state change.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordEnvelopeSent records an outbound envelope.
func RecordEnvelopeSent(kind string, bytes int) {
	envelopesSentTotal.WithLabelValues(kind).Inc()
	if bytes > 0 {
		envelopeBytesSentTotal.WithLabelValues(kind).Add(float64(bytes))
	}
}

// RecordEnvelopeReceived records an inbound event.
func RecordEnvelopeReceived(kind string) {
	envelopesReceivedTotal.WithLabelValues(kind).Inc()
}

// RecordMediaDropped records a dropped realtime envelope.
func RecordMediaDropped(kind string) {
	mediaDroppedTotal.WithLabelValues(kind).Inc()
}

// RecordDecodeError records undecodable inbound media.
func RecordDecodeError() {
	decodeErrorsTotal.Inc()
}

// RecordInterruption records a playback interruption.
func RecordInterruption() {
	interruptionsTotal.Inc()
}

// RecordAudioScheduled records seconds of model audio queued for playback.
func RecordAudioScheduled(seconds float64) {
	if seconds > 0 {
		audioScheduledSeconds.Add(seconds)
	}
}

// RecordTurnCompleted records a finished turn.
func RecordTurnCompleted() {
	turnsCompletedTotal.Inc()
}

// RecordTokens records token deltas.
func RecordTokens(prompt, response int) {
	if prompt > 0 {
		tokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	}
	if response > 0 {
		tokensTotal.WithLabelValues("response").Add(float64(response))
	}
}

// RecordError records an error surfaced to the application.
func RecordError(operation string) {
	errorsTotal.WithLabelValues(operation).Inc()
}

// RecordGoAway records a server disconnect notice.
func RecordGoAway() {
	goAwayTotal.Inc()
}
