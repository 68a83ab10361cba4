package engine

import "context"

type ViewMode string

const (
	ModeChat         ViewMode = "chat"
	ModeAppointments ViewMode = "appointments"
)

// View is the current screen. ConversationID is set only in chat mode.
type View struct {
	Mode           ViewMode `json:"mode"`
	ConversationID string   `json:"conversationId,omitempty"`
}

// ViewModeController switches between the chat and the appointment list.
// Every switch drops the current offer.
type ViewModeController struct {
	st *State
}

func (v *ViewModeController) Current() View {
	s := v.st
	s.lock()
	defer s.unlock()
	return s.viewLocked()
}

func (v *ViewModeController) ShowAppointments() {
	s := v.st
	s.lock()
	defer s.unlock()
	s.clearRouteLocked()
	s.setModeLocked(ModeAppointments)
}

// ShowChat returns to the chat view. An empty id keeps the active
// conversation; otherwise the given conversation becomes active.
func (v *ViewModeController) ShowChat(ctx context.Context, id string) error {
	s := v.st
	s.lock()
	defer s.unlock()

	if id != "" && id != s.activeID {
		if err := s.setActiveLocked(id); err != nil {
			return err
		}
		s.saveLocked(ctx)
	}
	s.clearRouteLocked()
	s.setModeLocked(ModeChat)
	return nil
}

func (s *State) viewLocked() View {
	if s.view == ModeAppointments {
		return View{Mode: ModeAppointments}
	}
	return View{Mode: ModeChat, ConversationID: s.activeID}
}

func (s *State) setModeLocked(mode ViewMode) {
	if s.view == mode {
		return
	}
	s.view = mode
	s.emit(Event{Kind: EventViewChanged, View: mode})
}
