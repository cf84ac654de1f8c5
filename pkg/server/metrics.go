package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay
type Metrics struct {
	// Session metrics
	activeSessions       prometheus.Gauge
	sessionsCreated      prometheus.Counter
	sessionsDisconnected prometheus.Counter
	connectionsRejected  prometheus.Counter

	// Send pipeline metrics
	sendsRejected *prometheus.CounterVec // by reason

	// Broadcast metrics
	messagesBroadcast prometheus.Counter
	broadcastFanout   prometheus.Histogram
	broadcastDuration prometheus.Histogram
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sakeva_chat_active_sessions",
				Help: "Current number of live chat connections",
			},
		),
		sessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sakeva_chat_sessions_created_total",
				Help: "Total number of chat connections admitted",
			},
		),
		sessionsDisconnected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sakeva_chat_sessions_disconnected_total",
				Help: "Total number of chat connections torn down",
			},
		),
		connectionsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sakeva_chat_connections_rejected_total",
				Help: "Total number of connections rejected by the per-address cap",
			},
		),
		sendsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sakeva_chat_sends_rejected_total",
				Help: "Total number of rejected sends by reason",
			},
			[]string{"reason"},
		),
		messagesBroadcast: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sakeva_chat_messages_broadcast_total",
				Help: "Total number of messages broadcast (unique messages, not deliveries)",
			},
		),
		broadcastFanout: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sakeva_chat_broadcast_fanout",
				Help:    "Number of clients that received each broadcast message",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		broadcastDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sakeva_chat_broadcast_duration_seconds",
				Help:    "Time taken to broadcast a message to all sessions",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordActiveSessions updates the active session count
func (m *Metrics) RecordActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// RecordSessionCreated increments the session creation counter
func (m *Metrics) RecordSessionCreated() {
	m.sessionsCreated.Inc()
}

// RecordSessionDisconnected increments the session disconnection counter
func (m *Metrics) RecordSessionDisconnected() {
	m.sessionsDisconnected.Inc()
}

// RecordConnectionRejected increments the admission rejection counter
func (m *Metrics) RecordConnectionRejected() {
	m.connectionsRejected.Inc()
}

// RecordSendRejected increments the send rejection counter for a reason
func (m *Metrics) RecordSendRejected(reason string) {
	m.sendsRejected.WithLabelValues(reason).Inc()
}

// RecordMessageBroadcast increments the broadcast counter
func (m *Metrics) RecordMessageBroadcast() {
	m.messagesBroadcast.Inc()
}

// RecordBroadcastFanout records how many clients received a broadcast
func (m *Metrics) RecordBroadcastFanout(recipientCount int) {
	m.broadcastFanout.Observe(float64(recipientCount))
}

// RecordBroadcastDuration records how long a broadcast took
func (m *Metrics) RecordBroadcastDuration(durationSeconds float64) {
	m.broadcastDuration.Observe(durationSeconds)
}
