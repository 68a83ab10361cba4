package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/intake/internal/engine"
	"github.com/MikeSquared-Agency/intake/internal/gateway"
	"github.com/MikeSquared-Agency/intake/internal/metrics"
	"github.com/MikeSquared-Agency/intake/internal/store"
)

type stubBackend struct {
	chat func(msg string) (*gateway.ChatResponse, error)
	book func(req gateway.BookRequest) (*gateway.BookResponse, error)
}

func (b *stubBackend) Chat(_ context.Context, msg string, _ []gateway.Message) (*gateway.ChatResponse, error) {
	if b.chat == nil {
		return &gateway.ChatResponse{Reply: "Geçmiş olsun."}, nil
	}
	return b.chat(msg)
}

func (b *stubBackend) Book(_ context.Context, req gateway.BookRequest) (*gateway.BookResponse, error) {
	if b.book == nil {
		return &gateway.BookResponse{OK: true, Appointment: &gateway.BookedAppointment{ID: "apt-1"}}, nil
	}
	return b.book(req)
}

func offerReply() *gateway.ChatResponse {
	return &gateway.ChatResponse{
		Reply:           "Ortopedi polikliniğine yönlendiriyorum.",
		Intent:          gateway.IntentRoute,
		Department:      gateway.Department{"name": "Ortopedi", "code": "ORT"},
		Availability:    []gateway.DoctorSlots{{Doctor: "Dr. Demir", Slots: []string{"09:00", "09:30"}}},
		HasAvailability: true,
	}
}

func newTestServer(t *testing.T, backend *stubBackend) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(context.Background(), store.NewMemory(), backend, engine.Options{Logger: logger})
	m := metrics.New()
	m.Attach(eng.Bus)
	return NewServer(8760, eng, m.Handler(), logger)
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	w := do(t, srv, "GET", "/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestStateEndpoint_Defaults(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	w := do(t, srv, "GET", "/api/v1/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var st engine.Status
	decode(t, w, &st)
	if st.View.Mode != engine.ModeChat {
		t.Errorf("expected chat view, got %q", st.View.Mode)
	}
	if st.ActiveID == "" {
		t.Error("expected an active conversation")
	}
	if st.Route != nil || st.Sending || st.Booking {
		t.Errorf("unexpected transient state: %+v", st)
	}
}

func TestConversations_CreateListGet(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	w := do(t, srv, "POST", "/api/v1/conversations", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var created engine.Conversation
	decode(t, w, &created)
	if created.Title != engine.PlaceholderTitle {
		t.Errorf("expected placeholder title, got %q", created.Title)
	}
	if len(created.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(created.Messages))
	}

	w = do(t, srv, "GET", "/api/v1/conversations", "")
	var list []engine.Conversation
	decode(t, w, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != created.ID {
		t.Errorf("expected newest first, got %s", list[0].ID)
	}

	w = do(t, srv, "GET", "/api/v1/conversations/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/v1/conversations/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestActivateConversation(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})
	first := srv.engine.Conversations.ActiveID()
	srv.engine.Conversations.Create(context.Background())
	srv.engine.View.ShowAppointments()

	w := do(t, srv, "POST", "/api/v1/conversations/"+first+"/activate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var st engine.Status
	decode(t, w, &st)
	if st.ActiveID != first {
		t.Errorf("expected active %s, got %s", first, st.ActiveID)
	}
	if st.View.Mode != engine.ModeChat {
		t.Errorf("expected chat view after activation, got %q", st.View.Mode)
	}

	w = do(t, srv, "POST", "/api/v1/conversations/nope/activate", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSendMessage_Offer(t *testing.T) {
	srv := newTestServer(t, &stubBackend{
		chat: func(string) (*gateway.ChatResponse, error) { return offerReply(), nil },
	})

	w := do(t, srv, "POST", "/api/v1/messages", `{"text":"Dizim ağrıyor"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp sendResponse
	decode(t, w, &resp)
	if resp.Outcome != engine.SendSucceeded {
		t.Errorf("expected success, got %q", resp.Outcome)
	}
	if resp.Offer == nil || resp.Offer.Department.Name() != "Ortopedi" {
		t.Fatalf("expected Ortopedi offer, got %+v", resp.Offer)
	}
	if !strings.Contains(resp.Summary, "Dr. Demir: 09:00, 09:30") {
		t.Errorf("unexpected summary %q", resp.Summary)
	}

	conv := srv.engine.Conversations.Active()
	if conv.Title != "Dizim ağrıyor" {
		t.Errorf("expected title from first user message, got %q", conv.Title)
	}
}

func TestSendMessage_Empty(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	w := do(t, srv, "POST", "/api/v1/messages", `{"text":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/v1/messages", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", w.Code)
	}
}

func TestSendMessage_TransportFailure(t *testing.T) {
	srv := newTestServer(t, &stubBackend{
		chat: func(string) (*gateway.ChatResponse, error) { return nil, errors.New("connection refused") },
	})

	w := do(t, srv, "POST", "/api/v1/messages", `{"text":"merhaba"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp sendResponse
	decode(t, w, &resp)
	if resp.Outcome != engine.SendFailed || resp.Error == "" {
		t.Errorf("expected recorded failure, got %+v", resp)
	}

	w = do(t, srv, "GET", "/api/v1/state", "")
	var st engine.Status
	decode(t, w, &st)
	if st.Banner != engine.ConnectionBanner {
		t.Errorf("expected connection banner, got %q", st.Banner)
	}

	w = do(t, srv, "DELETE", "/api/v1/banner", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if b := srv.engine.Session.Banner(); b != "" {
		t.Errorf("expected banner dismissed, got %q", b)
	}
}

func TestBook_WithoutOffer(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	w := do(t, srv, "POST", "/api/v1/bookings", `{"doctor":"Dr. Demir","slot":"09:00"}`)
	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("expected 412, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/v1/bookings", `{"doctor":"Dr. Demir"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing slot, got %d", w.Code)
	}
}

func TestBook_Confirmed(t *testing.T) {
	var got gateway.BookRequest
	srv := newTestServer(t, &stubBackend{
		chat: func(string) (*gateway.ChatResponse, error) { return offerReply(), nil },
		book: func(req gateway.BookRequest) (*gateway.BookResponse, error) {
			got = req
			return &gateway.BookResponse{OK: true, Message: "Randevunuz alındı.", Appointment: &gateway.BookedAppointment{ID: "apt-42"}}, nil
		},
	})

	do(t, srv, "POST", "/api/v1/messages", `{"text":"Dizim ağrıyor"}`)

	w := do(t, srv, "POST", "/api/v1/bookings", `{"doctor":"Dr. Demir","slot":"09:30"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp bookResponse
	decode(t, w, &resp)
	if resp.Outcome != engine.BookConfirmed {
		t.Fatalf("expected confirmed, got %q", resp.Outcome)
	}
	if resp.Message != engine.SuccessMarker+"Randevunuz alındı." {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if got.Department.Code() != "ORT" || got.Doctor != "Dr. Demir" || got.Slot != "09:30" {
		t.Errorf("unexpected book request %+v", got)
	}

	w = do(t, srv, "GET", "/api/v1/appointments", "")
	var appts []engine.Appointment
	decode(t, w, &appts)
	if len(appts) != 1 || appts[0].ID != "apt-42" || appts[0].Department != "Ortopedi" {
		t.Errorf("unexpected ledger %+v", appts)
	}
}

func TestSetView(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	w := do(t, srv, "POST", "/api/v1/view", `{"mode":"appointments"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var v engine.View
	decode(t, w, &v)
	if v.Mode != engine.ModeAppointments || v.ConversationID != "" {
		t.Errorf("unexpected view %+v", v)
	}

	w = do(t, srv, "POST", "/api/v1/view", `{"mode":"chat"}`)
	decode(t, w, &v)
	if v.Mode != engine.ModeChat || v.ConversationID != srv.engine.Conversations.ActiveID() {
		t.Errorf("unexpected view %+v", v)
	}

	w = do(t, srv, "POST", "/api/v1/view", `{"mode":"settings"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown mode, got %d", w.Code)
	}
}

func TestSetDraft(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	w := do(t, srv, "PUT", "/api/v1/draft", `{"text":"başım"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if d := srv.engine.Session.Draft(); d != "başım" {
		t.Errorf("expected draft stored, got %q", d)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})
	do(t, srv, "POST", "/api/v1/messages", `{"text":"merhaba"}`)

	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `intake_session_sends_total{outcome="success"} 1`) {
		t.Errorf("expected send counter in metrics output")
	}
}
