// Package metrics exposes Prometheus counters for the intake engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/intake/internal/engine"
)

type Metrics struct {
	registry *prometheus.Registry

	SendsTotal         *prometheus.CounterVec
	SendDuration       prometheus.Histogram
	BookingsTotal      *prometheus.CounterVec
	BookingDuration    prometheus.Histogram
	AppointmentsTotal  prometheus.Counter
	ConversationsTotal prometheus.Counter
	OffersTotal        prometheus.Counter
	PersistFailures    prometheus.Counter
}

// New registers the intake collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "session",
			Name:      "sends_total",
			Help:      "Chat sends by outcome",
		}, []string{"outcome"}),
		SendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "session",
			Name:      "send_duration_seconds",
			Help:      "Backend /chat round trip duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		BookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		BookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "booking",
			Name:      "booking_duration_seconds",
			Help:      "Backend /book round trip duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		AppointmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "booking",
			Name:      "appointments_recorded_total",
			Help:      "Appointments added to the ledger",
		}),
		ConversationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "store",
			Name:      "conversations_created_total",
			Help:      "Conversations created",
		}),
		OffersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "session",
			Name:      "route_updates_total",
			Help:      "Scheduling offers set or refreshed",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Failed writes to the durable store",
		}),
	}
	reg.MustRegister(
		m.SendsTotal, m.SendDuration,
		m.BookingsTotal, m.BookingDuration,
		m.AppointmentsTotal, m.ConversationsTotal,
		m.OffersTotal, m.PersistFailures,
	)
	return m
}

// Observe updates the collectors from an engine event.
func (m *Metrics) Observe(ev engine.Event) {
	switch ev.Kind {
	case engine.EventSendCompleted:
		m.SendsTotal.WithLabelValues(ev.Outcome).Inc()
		m.SendDuration.Observe(ev.Duration.Seconds())
	case engine.EventBookingCompleted:
		m.BookingsTotal.WithLabelValues(ev.Outcome).Inc()
		m.BookingDuration.Observe(ev.Duration.Seconds())
	case engine.EventAppointmentRecorded:
		m.AppointmentsTotal.Inc()
	case engine.EventConversationCreated:
		m.ConversationsTotal.Inc()
	case engine.EventRouteChanged:
		if ev.Route != nil {
			m.OffersTotal.Inc()
		}
	case engine.EventPersistFailed:
		m.PersistFailures.Inc()
	}
}

// Attach subscribes Observe to bus.
func (m *Metrics) Attach(bus *engine.Bus) func() {
	return bus.Subscribe(m.Observe)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
