package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the room service.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	StoreWrites     *prometheus.CounterVec
	NoOps           *prometheus.CounterVec
	RoundsCompleted prometheus.Counter
	RoomsCompleted  prometheus.Counter
	UpdateConflicts prometheus.Counter
	WSConnections   prometheus.Gauge
}

// New registers the collectors on a dedicated registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		StoreWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "room_writes_total",
				Help:      "Room document writes by operation",
			},
			[]string{"op"},
		),
		NoOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "room_noops_total",
				Help:      "Operations guarded out without a store write",
			},
			[]string{"op"},
		),
		RoundsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_completed_total",
			Help:      "Question rounds completed",
		}),
		RoomsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_completed_total",
			Help:      "Rooms that reached the completed status",
		}),
		UpdateConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_conflicts_total",
			Help:      "Transactional room updates retried after a concurrent write",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections",
		}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Write(op string) {
	if m == nil {
		return
	}
	m.StoreWrites.WithLabelValues(op).Inc()
}

func (m *Metrics) NoOp(op string) {
	if m == nil {
		return
	}
	m.NoOps.WithLabelValues(op).Inc()
}

func (m *Metrics) RoundCompleted() {
	if m == nil {
		return
	}
	m.RoundsCompleted.Inc()
}

func (m *Metrics) RoomCompleted() {
	if m == nil {
		return
	}
	m.RoomsCompleted.Inc()
}

func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.UpdateConflicts.Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
