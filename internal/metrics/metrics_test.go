package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MikeSquared-Agency/intake/internal/engine"
)

func TestObserve_CountsOutcomes(t *testing.T) {
	m := New()
	bus := engine.NewBus()
	unsubscribe := m.Attach(bus)

	bus.Publish(
		engine.Event{Kind: engine.EventSendCompleted, Outcome: "success", Duration: 200 * time.Millisecond},
		engine.Event{Kind: engine.EventSendCompleted, Outcome: "failure", Duration: time.Second},
		engine.Event{Kind: engine.EventSendCompleted, Outcome: "success"},
		engine.Event{Kind: engine.EventBookingCompleted, Outcome: "confirmed"},
		engine.Event{Kind: engine.EventAppointmentRecorded, Appointment: &engine.Appointment{ID: "a1"}},
		engine.Event{Kind: engine.EventConversationCreated, ConversationID: "c1"},
		engine.Event{Kind: engine.EventRouteChanged, Route: &engine.RouteContext{ConversationID: "c1"}},
		engine.Event{Kind: engine.EventRouteChanged, ConversationID: "c1"},
		engine.Event{Kind: engine.EventPersistFailed, Text: "disk full"},
	)

	if got := testutil.ToFloat64(m.SendsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successful sends, got %v", got)
	}
	if got := testutil.ToFloat64(m.SendsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failed send, got %v", got)
	}
	if got := testutil.ToFloat64(m.BookingsTotal.WithLabelValues("confirmed")); got != 1 {
		t.Errorf("expected 1 confirmed booking, got %v", got)
	}
	if got := testutil.ToFloat64(m.AppointmentsTotal); got != 1 {
		t.Errorf("expected 1 appointment, got %v", got)
	}
	if got := testutil.ToFloat64(m.ConversationsTotal); got != 1 {
		t.Errorf("expected 1 conversation, got %v", got)
	}
	if got := testutil.ToFloat64(m.OffersTotal); got != 1 {
		t.Errorf("cleared routes must not count, got %v", got)
	}
	if got := testutil.ToFloat64(m.PersistFailures); got != 1 {
		t.Errorf("expected 1 persist failure, got %v", got)
	}

	unsubscribe()
	bus.Publish(engine.Event{Kind: engine.EventPersistFailed})
	if got := testutil.ToFloat64(m.PersistFailures); got != 1 {
		t.Errorf("expected no updates after unsubscribe, got %v", got)
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.PersistFailures.Inc()

	if got := testutil.ToFloat64(b.PersistFailures); got != 0 {
		t.Errorf("expected separate registries, got %v", got)
	}
	if n := testutil.CollectAndCount(a.SendDuration); n != 1 {
		t.Errorf("expected one histogram series, got %d", n)
	}
}
