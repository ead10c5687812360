package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gatelink/internal/domain"
)

// Metrics holds the Prometheus collectors a Client reports to.
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	eventsTotal       *prometheus.CounterVec
	connectionState   prometheus.Gauge
	connectsTotal     *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	reconnectGiveUps  prometheus.Counter
	queueDepth        prometheus.Gauge
	queueSent         prometheus.Counter
	queueDropped      prometheus.Counter
}

// NewMetrics registers the client collectors with reg. A nil reg gets a
// private registry, so several clients can coexist in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	const ns, sub = "gatelink", "gateway"

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "requests_total",
			Help:      "Requests sent to the gateway by method and outcome",
		}, []string{"method", "outcome"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "request_duration_seconds",
			Help:      "Time from request write to correlated response",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "events_total",
			Help:      "Events received from the gateway by name",
		}, []string{"event"}),

		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "connection_state",
			Help:      "Current connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting, 4 disconnecting)",
		}),

		connectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "connects_total",
			Help:      "Connection attempts by outcome",
		}, []string{"outcome"}),

		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnect attempts scheduled",
		}),

		reconnectGiveUps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "reconnect_giveups_total",
			Help:      "Reconnect sequences that exhausted their attempts",
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "offline_queue_depth",
			Help:      "Messages waiting in the offline queue",
		}),

		queueSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "offline_queue_sent_total",
			Help:      "Queued messages delivered by a drain pass",
		}),

		queueDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "offline_queue_dropped_total",
			Help:      "Queued messages dropped after a failed send",
		}),
	}
}

func (m *Metrics) observeState(s domain.ConnectionState) {
	m.connectionState.Set(float64(s))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
