package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// State is the single owned copy of everything the controllers mutate. All
// fields are guarded by mu; remote calls are made with mu released.
type State struct {
	mu sync.Mutex

	conversations map[string]*Conversation
	activeID      string
	route         *RouteContext
	ledger        []Appointment
	view          ViewMode

	sending bool
	booking bool
	banner  string
	draft   string

	pending []Event

	persist *Persistence
	bus     *Bus
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

func newState(snap Snapshot, persist *Persistence, bus *Bus, logger *slog.Logger, now func() time.Time, newID func() string) *State {
	s := &State{
		conversations: make(map[string]*Conversation, len(snap.Conversations)),
		activeID:      snap.ActiveID,
		ledger:        append([]Appointment{}, snap.Appointments...),
		view:          ModeChat,
		persist:       persist,
		bus:           bus,
		logger:        logger,
		now:           now,
		newID:         newID,
	}
	for i := range snap.Conversations {
		c := snap.Conversations[i].clone()
		s.conversations[c.ID] = &c
	}
	return s
}

func (s *State) lock() { s.mu.Lock() }

// unlock queues pending events while the state is still held, so the bus sees
// them in commit order, then delivers them after releasing it.
func (s *State) unlock() {
	events := s.pending
	s.pending = nil
	s.bus.enqueue(events)
	s.mu.Unlock()
	s.bus.drain()
}

func (s *State) emit(ev Event) {
	ev.At = s.now()
	s.pending = append(s.pending, ev)
}

func (s *State) today() string { return s.now().Format(dateLayout) }

// saveLocked writes the durable state. Failures are logged and reported as an
// event; in-memory state stays authoritative.
func (s *State) saveLocked(ctx context.Context) {
	if s.persist == nil {
		return
	}
	if err := s.persist.Save(ctx, s.snapshotLocked()); err != nil {
		s.logger.Error("failed to persist state", "error", err)
		s.emit(Event{Kind: EventPersistFailed, Text: err.Error()})
	}
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Conversations: s.listLocked(),
		ActiveID:      s.activeID,
		Appointments:  append([]Appointment{}, s.ledger...),
	}
}

// listLocked returns copies of all conversations, newest first.
func (s *State) listLocked() []Conversation {
	out := make([]Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *State) setRouteLocked(r *RouteContext) {
	s.route = r
	s.emit(Event{Kind: EventRouteChanged, ConversationID: r.ConversationID, Route: r.clone()})
}

func (s *State) clearRouteLocked() {
	if s.route == nil {
		return
	}
	convID := s.route.ConversationID
	s.route = nil
	s.emit(Event{Kind: EventRouteChanged, ConversationID: convID})
}

func (s *State) setBannerLocked(text string) {
	if s.banner == text {
		return
	}
	s.banner = text
	s.emit(Event{Kind: EventBannerChanged, Text: text})
}
