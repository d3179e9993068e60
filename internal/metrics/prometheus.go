package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics methods are nil-safe so components can run uninstrumented in tests.
type Metrics struct {
	ConnectionsTotal prometheus.Gauge
	RoomsTotal       prometheus.Gauge
	MessagesReceived prometheus.Counter
	MessagesSent     prometheus.Counter
	EventsPublished  *prometheus.CounterVec
	JudgeVerdicts    *prometheus.CounterVec
	JudgeDuration    prometheus.Histogram
	JudgeQueueDepth  prometheus.Gauge
	KafkaMessages    *prometheus.CounterVec
	AuthFailures     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections_total",
			Help: "Total number of active WebSocket connections",
		}),
		RoomsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ws_rooms_total",
			Help: "Number of live rooms",
		}),
		MessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ws_messages_received_total",
			Help: "Total number of messages received from clients",
		}),
		MessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ws_messages_sent_total",
			Help: "Total number of messages sent to clients",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "room_events_published_total",
			Help: "Total number of events published to rooms",
		}, []string{"event_type"}),
		JudgeVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_verdicts_total",
			Help: "Total number of judged submissions by verdict",
		}, []string{"verdict"}),
		JudgeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "judge_duration_seconds",
			Help:    "Wall time spent judging one submission",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		JudgeQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "judge_queue_depth",
			Help: "Submissions waiting for a judge worker",
		}),
		KafkaMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Total number of Kafka messages processed",
		}, []string{"topic", "status"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ws_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
	}
}

func (m *Metrics) IncConnections() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
}

func (m *Metrics) DecConnections() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Dec()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.RoomsTotal.Set(float64(n))
}

func (m *Metrics) IncMessagesReceived() {
	if m == nil {
		return
	}
	m.MessagesReceived.Inc()
}

func (m *Metrics) IncMessagesSent() {
	if m == nil {
		return
	}
	m.MessagesSent.Inc()
}

func (m *Metrics) IncEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncJudgeVerdict(verdict string) {
	if m == nil {
		return
	}
	m.JudgeVerdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ObserveJudgeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.JudgeDuration.Observe(seconds)
}

func (m *Metrics) SetJudgeQueueDepth(n int) {
	if m == nil {
		return
	}
	m.JudgeQueueDepth.Set(float64(n))
}

func (m *Metrics) IncKafkaMessage(topic, status string) {
	if m == nil {
		return
	}
	m.KafkaMessages.WithLabelValues(topic, status).Inc()
}

func (m *Metrics) IncAuthFailures() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}
