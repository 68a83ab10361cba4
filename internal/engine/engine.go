// Package engine is the client-side state engine of the intake chat widget:
// conversation threads, scheduling offers, slot booking and their durable
// persistence.
//
// Every controller shares one owned State. Local transitions run under its
// lock and are persisted before the lock is released; the remote /chat and
// /book calls run with the lock released. Observers subscribe to the Bus and
// receive events after each committed change.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/intake/internal/store"
)

type Options struct {
	Logger *slog.Logger
	// KeyPrefix namespaces the persisted keys, e.g. per patient.
	KeyPrefix string
	// Patient is forwarded on every booking request.
	Patient string
	Now     func() time.Time
	NewID   func() string
}

// Engine wires the controllers around a single State.
type Engine struct {
	Conversations *ConversationStore
	Session       *SessionController
	Booking       *BookingFlow
	View          *ViewModeController
	Bus           *Bus

	st *State
}

// New loads persisted state from kv and returns a ready engine. Loading never
// fails; corrupt or missing entries fall back to defaults.
func New(ctx context.Context, kv store.Store, backend Backend, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = NewConversationID
	}

	persist := NewPersistence(kv, opts.KeyPrefix, logger)
	snap := persist.Load(ctx, newID, now)
	bus := NewBus()
	st := newState(snap, persist, bus, logger, now, newID)

	// Write back whatever Load repaired so the store matches memory.
	st.lock()
	st.saveLocked(ctx)
	st.unlock()

	logger.Info("engine state loaded",
		"conversations", len(snap.Conversations),
		"active_conversation", snap.ActiveID,
		"appointments", len(snap.Appointments),
	)

	return &Engine{
		Conversations: &ConversationStore{st: st},
		Session:       &SessionController{st: st, backend: backend},
		Booking:       &BookingFlow{st: st, backend: backend, patient: opts.Patient},
		View:          &ViewModeController{st: st},
		Bus:           bus,
		st:            st,
	}
}

// Status is a read-only view of the transient state a UI renders.
type Status struct {
	View     View          `json:"view"`
	ActiveID string        `json:"activeConversationId"`
	Route    *RouteContext `json:"route,omitempty"`
	Summary  string        `json:"summary,omitempty"`
	Banner   string        `json:"banner,omitempty"`
	Draft    string        `json:"draft,omitempty"`
	Sending  bool          `json:"sending"`
	Booking  bool          `json:"booking"`
}

func (e *Engine) Status() Status {
	s := e.st
	s.lock()
	defer s.unlock()
	return Status{
		View:     s.viewLocked(),
		ActiveID: s.activeID,
		Route:    s.route.clone(),
		Summary:  s.route.Summary(),
		Banner:   s.banner,
		Draft:    s.draft,
		Sending:  s.sending,
		Booking:  s.booking,
	}
}

// Snapshot returns a copy of the durable state.
func (e *Engine) Snapshot() Snapshot {
	s := e.st
	s.lock()
	defer s.unlock()
	return s.snapshotLocked()
}

// NewConversationID returns a UUIDv7 string. Its lexical order follows
// creation time, which is what List sorts on.
func NewConversationID() string {
	return uuid.Must(uuid.NewV7()).String()
}
