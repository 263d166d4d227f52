package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "relay"

	kindLabelName   = "kind"
	codeLabelName   = "code"
	reasonLabelName = "reason"
)

// Disconnect reasons.
const (
	ReasonClosed = "closed"
	ReasonKicked = "kicked"
)

// Metrics groups the relay collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Sessions    prometheus.Gauge
	Registered  prometheus.Gauge
	Rooms       prometheus.Gauge
	Addresses   prometheus.Gauge
	Messages    *prometheus.CounterVec
	Errors      *prometheus.CounterVec
	Dropped     prometheus.Counter
	Disconnects *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "connected sessions",
		}),
		Registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_sessions",
			Help:      "sessions registered with an identity",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "rooms with at least one member",
		}),
		Addresses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "addresses",
			Help:      "address ids bound in the directory",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "inbound messages by kind",
		}, []string{kindLabelName}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "errors reported to senders by code",
		}, []string{codeLabelName}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "frames refused by a target connection",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "session cleanups by reason",
		}, []string{reasonLabelName}),
	}
	if reg != nil {
		reg.MustRegister(m.Sessions, m.Registered, m.Rooms, m.Addresses,
			m.Messages, m.Errors, m.Dropped, m.Disconnects)
	}
	return m
}

func (m *Metrics) SetState(sessions, registered, rooms, addresses int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(sessions))
	m.Registered.Set(float64(registered))
	m.Rooms.Set(float64(rooms))
	m.Addresses.Set(float64(addresses))
}

func (m *Metrics) Message(kind string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) Error(code string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(code).Inc()
}

func (m *Metrics) Drop() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *Metrics) Disconnect(reason string) {
	if m == nil {
		return
	}
	m.Disconnects.WithLabelValues(reason).Inc()
}
