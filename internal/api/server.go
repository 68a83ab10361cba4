package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/intake/internal/engine"
)

type Server struct {
	router  *chi.Mux
	port    int
	engine  *engine.Engine
	logger  *slog.Logger
	httpSrv *http.Server
}

// NewServer exposes eng over HTTP. metrics may be nil.
func NewServer(port int, eng *engine.Engine, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		engine: eng,
		logger: logger,
	}

	router.Get("/health", s.health)
	if metrics != nil {
		router.Method(http.MethodGet, "/metrics", metrics)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.state)

		r.Get("/conversations", s.listConversations)
		r.Post("/conversations", s.createConversation)
		r.Get("/conversations/{id}", s.getConversation)
		r.Post("/conversations/{id}/activate", s.activateConversation)

		r.Post("/messages", s.sendMessage)
		r.Put("/draft", s.setDraft)

		r.Post("/bookings", s.book)
		r.Get("/appointments", s.listAppointments)

		r.Post("/view", s.setView)
		r.Delete("/banner", s.dismissBanner)
	})

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Conversations.List())
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	id := s.engine.Conversations.Create(r.Context())
	conv, err := s.engine.Conversations.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.engine.Conversations.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// activateConversation mirrors a sidebar click: the conversation becomes
// active and the chat view is shown.
func (s *Server) activateConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.View.ShowChat(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

type sendRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Outcome        engine.SendOutcome   `json:"outcome"`
	ConversationID string               `json:"conversationId"`
	Reply          string               `json:"reply,omitempty"`
	Offer          *engine.RouteContext `json:"offer,omitempty"`
	Summary        string               `json:"summary,omitempty"`
	Error          string               `json:"error,omitempty"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	// The round trip is recorded even if the caller hangs up.
	res, err := s.engine.Session.Send(context.WithoutCancel(r.Context()), req.Text)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := sendResponse{
		Outcome:        res.Outcome,
		ConversationID: res.ConversationID,
		Reply:          res.Reply,
		Offer:          res.Offer,
		Summary:        res.Offer.Summary(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) setDraft(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	s.engine.Session.SetDraft(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

type bookRequest struct {
	Doctor string `json:"doctor"`
	Slot   string `json:"slot"`
}

type bookResponse struct {
	Outcome     engine.BookOutcome  `json:"outcome"`
	Message     string              `json:"message"`
	Appointment *engine.Appointment `json:"appointment,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func (s *Server) book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.Doctor == "" || req.Slot == "" {
		writeError(w, http.StatusBadRequest, errors.New("doctor and slot are required"))
		return
	}

	res, err := s.engine.Booking.Book(context.WithoutCancel(r.Context()), req.Doctor, req.Slot)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := bookResponse{
		Outcome:     res.Outcome,
		Message:     res.Message,
		Appointment: res.Appointment,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Booking.Appointments())
}

type viewRequest struct {
	Mode           engine.ViewMode `json:"mode"`
	ConversationID string          `json:"conversationId,omitempty"`
}

func (s *Server) setView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	switch req.Mode {
	case engine.ModeAppointments:
		s.engine.View.ShowAppointments()
	case engine.ModeChat:
		if err := s.engine.View.ShowChat(r.Context(), req.ConversationID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown view mode %q", req.Mode))
		return
	}
	writeJSON(w, http.StatusOK, s.engine.View.Current())
}

func (s *Server) dismissBanner(w http.ResponseWriter, r *http.Request) {
	s.engine.Session.DismissBanner()
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrSendInFlight), errors.Is(err, engine.ErrBookingInFlight):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoOffer):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
