package engine

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("conversation not found")

// ConversationStore owns the conversation threads and the active pointer.
// Conversations are never deleted.
type ConversationStore struct {
	st *State
}

// Create allocates an empty conversation and makes it active.
func (cs *ConversationStore) Create(ctx context.Context) string {
	s := cs.st
	s.lock()
	defer s.unlock()

	id := s.createLocked()
	s.saveLocked(ctx)
	return id
}

// SetActive switches the active conversation and drops any offer.
func (cs *ConversationStore) SetActive(ctx context.Context, id string) error {
	s := cs.st
	s.lock()
	defer s.unlock()

	if err := s.setActiveLocked(id); err != nil {
		return err
	}
	s.saveLocked(ctx)
	return nil
}

// Append adds msg to the conversation and persists the result.
func (cs *ConversationStore) Append(ctx context.Context, id string, msg Message) error {
	s := cs.st
	s.lock()
	defer s.unlock()

	if err := s.appendLocked(id, msg); err != nil {
		return err
	}
	s.saveLocked(ctx)
	return nil
}

// List returns all conversations, newest first.
func (cs *ConversationStore) List() []Conversation {
	s := cs.st
	s.lock()
	defer s.unlock()
	return s.listLocked()
}

func (cs *ConversationStore) Get(id string) (Conversation, error) {
	s := cs.st
	s.lock()
	defer s.unlock()

	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.clone(), nil
}

func (cs *ConversationStore) ActiveID() string {
	s := cs.st
	s.lock()
	defer s.unlock()
	return s.activeID
}

func (cs *ConversationStore) Active() Conversation {
	s := cs.st
	s.lock()
	defer s.unlock()
	return s.conversations[s.activeID].clone()
}

func (s *State) createLocked() string {
	id := s.newID()
	for s.conversations[id] != nil {
		id = s.newID()
	}
	s.conversations[id] = &Conversation{
		ID:       id,
		Title:    PlaceholderTitle,
		Date:     s.today(),
		Messages: []Message{},
	}
	s.emit(Event{Kind: EventConversationCreated, ConversationID: id})

	s.activeID = id
	s.clearRouteLocked()
	s.emit(Event{Kind: EventConversationActive, ConversationID: id})
	s.logger.Debug("conversation created", "conversation_id", id)
	return id
}

func (s *State) setActiveLocked(id string) error {
	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.clearRouteLocked()
	if s.activeID != id {
		s.activeID = id
		s.emit(Event{Kind: EventConversationActive, ConversationID: id})
	}
	return nil
}

func (s *State) appendLocked(id string, msg Message) error {
	c, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if msg.Role == RoleUser && !hasUserMessage(c.Messages) {
		c.Title = titleFrom(msg.Content)
	}
	c.Messages = append(c.Messages, msg)
	c.LastMessage = msg.Content
	c.Date = s.today()

	m := msg
	s.emit(Event{Kind: EventMessageAppended, ConversationID: id, Message: &m})
	return nil
}

func hasUserMessage(msgs []Message) bool {
	for _, m := range msgs {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}
