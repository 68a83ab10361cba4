package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/intake/internal/gateway"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a message is already being sent")
)

const (
	NoReplyMessage    = "Cevap alınamadı."
	ConnectionFailure = "Bağlantı hatası veya sunucu çalışmıyor."
	ConnectionBanner  = "İstek gönderilemedi. Sunucu çalışıyor mu?"
)

type SendOutcome string

const (
	SendSucceeded SendOutcome = "success"
	SendFailed    SendOutcome = "failure"
)

// SendResult reports how an accepted send ended. Err carries the transport
// failure, already recovered into the transcript.
type SendResult struct {
	Outcome        SendOutcome
	ConversationID string
	Reply          string
	Offer          *RouteContext
	Err            error
}

// SessionController turns user input into chat round trips. At most one send
// is in flight at a time.
type SessionController struct {
	st      *State
	backend Backend
}

// Send appends text to the active conversation, asks the backend for a reply
// and records it. Empty input and overlapping sends are rejected without any
// state change; every other failure is recovered into the transcript.
func (c *SessionController) Send(ctx context.Context, text string) (SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrEmptyMessage
	}

	s := c.st
	s.lock()
	if s.sending {
		s.unlock()
		return SendResult{}, ErrSendInFlight
	}
	s.sending = true
	s.setBannerLocked("")
	if s.view == ModeAppointments {
		s.clearRouteLocked()
		s.setModeLocked(ModeChat)
	}

	convID := s.activeID
	prior := append([]Message{}, s.conversations[convID].Messages...)
	_ = s.appendLocked(convID, Message{Role: RoleUser, Content: text})
	s.emit(Event{Kind: EventSendStarted, ConversationID: convID})
	s.saveLocked(ctx)
	s.unlock()

	started := time.Now()
	resp, err := c.backend.Chat(ctx, text, toWire(prior))
	elapsed := time.Since(started)

	s.lock()
	defer s.unlock()
	s.sending = false
	isActive := s.activeID == convID

	if err != nil {
		s.logger.Warn("chat request failed", "conversation_id", convID, "error", err)
		_ = s.appendLocked(convID, Message{Role: RoleAssistant, Content: ConnectionFailure})
		s.setBannerLocked(ConnectionBanner)
		if isActive {
			s.clearRouteLocked()
		}
		s.emit(Event{Kind: EventSendCompleted, ConversationID: convID, Outcome: string(SendFailed), Duration: elapsed})
		s.saveLocked(ctx)
		return SendResult{Outcome: SendFailed, ConversationID: convID, Err: err}, nil
	}

	if resp == nil {
		resp = &gateway.ChatResponse{}
	}
	result := SendResult{Outcome: SendSucceeded, ConversationID: convID}

	// An offer only exists for the conversation on screen. A reply for a
	// conversation the user has left, or one arriving while the appointment
	// list is shown, leaves the offer alone.
	if isActive && s.view == ModeChat {
		if resp.IsRouteOffer() {
			s.setRouteLocked(&RouteContext{
				ConversationID: convID,
				Department:     resp.Department,
				Availability:   cloneAvailability(resp.Availability),
			})
			result.Offer = s.route.clone()
		} else {
			s.clearRouteLocked()
		}
	}

	reply := resp.Reply
	if strings.TrimSpace(reply) == "" {
		reply = NoReplyMessage
	}
	_ = s.appendLocked(convID, Message{Role: RoleAssistant, Content: reply})
	result.Reply = reply

	s.draft = ""
	s.emit(Event{Kind: EventSendCompleted, ConversationID: convID, Outcome: string(SendSucceeded), Duration: elapsed})
	s.saveLocked(ctx)

	s.logger.Info("chat reply recorded",
		"conversation_id", convID,
		"intent", resp.Intent,
		"offer", result.Offer != nil,
		"duration", elapsed,
	)
	return result, nil
}

// Sending reports whether a send is in flight.
func (c *SessionController) Sending() bool {
	s := c.st
	s.lock()
	defer s.unlock()
	return s.sending
}

// Banner returns the current error notice, or "".
func (c *SessionController) Banner() string {
	s := c.st
	s.lock()
	defer s.unlock()
	return s.banner
}

func (c *SessionController) DismissBanner() {
	s := c.st
	s.lock()
	defer s.unlock()
	s.setBannerLocked("")
}

// SetDraft stores the text the user is typing. It is cleared by a successful
// send and kept after a failed one.
func (c *SessionController) SetDraft(text string) {
	s := c.st
	s.lock()
	defer s.unlock()
	s.draft = text
}

func (c *SessionController) Draft() string {
	s := c.st
	s.lock()
	defer s.unlock()
	return s.draft
}

// Route returns a copy of the active offer, or nil.
func (c *SessionController) Route() *RouteContext {
	s := c.st
	s.lock()
	defer s.unlock()
	return s.route.clone()
}

// Backend is the remote collaborator behind /chat and /book.
type Backend interface {
	Chat(ctx context.Context, message string, history []gateway.Message) (*gateway.ChatResponse, error)
	Book(ctx context.Context, req gateway.BookRequest) (*gateway.BookResponse, error)
}
