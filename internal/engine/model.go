package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/intake/internal/gateway"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is immutable once appended.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Conversation is one chat thread. LastMessage and Date always mirror the
// most recently appended message.
type Conversation struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	LastMessage string    `json:"lastMessage" yaml:"lastMessage"`
	Date        string    `json:"date" yaml:"date"`
	Messages    []Message `json:"messages" yaml:"messages"`
}

// UnmarshalJSON accepts numeric ids as well as strings; older widget builds
// stored timestamps.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type wire Conversation
	var w struct {
		wire
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Conversation(w.wire)
	c.ID = decodeID(w.ID)
	return nil
}

func (c *Conversation) clone() Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

type AppointmentStatus string

const StatusConfirmed AppointmentStatus = "Confirmed"

// Appointment is created once per successful booking and never changes.
type Appointment struct {
	ID         string            `json:"id" yaml:"id"`
	Doctor     string            `json:"doctor" yaml:"doctor"`
	Department string            `json:"department" yaml:"department"`
	Slot       string            `json:"slot" yaml:"slot"`
	Date       string            `json:"date" yaml:"date"`
	Time       string            `json:"time" yaml:"time"`
	Status     AppointmentStatus `json:"status" yaml:"status"`
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	type wire Appointment
	var w struct {
		wire
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Appointment(w.wire)
	a.ID = decodeID(w.ID)
	return nil
}

// decodeID returns the string form of a JSON string or number id. Any other
// shape yields "", which loading treats as a missing id.
func decodeID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}

// RouteContext is the scheduling offer currently shown for the active
// conversation. It is never persisted.
type RouteContext struct {
	ConversationID string                `json:"conversationId"`
	Department     gateway.Department    `json:"department"`
	Availability   []gateway.DoctorSlots `json:"availability"`
}

func (r *RouteContext) clone() *RouteContext {
	if r == nil {
		return nil
	}
	out := &RouteContext{
		ConversationID: r.ConversationID,
		Department:     make(gateway.Department, len(r.Department)),
		Availability:   cloneAvailability(r.Availability),
	}
	for k, v := range r.Department {
		out.Department[k] = v
	}
	return out
}

// Summary renders the department and the first three slots per doctor.
func (r *RouteContext) Summary() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "→ Poliklinik: %s", r.Department.Name())
	for _, row := range r.Availability {
		slots := row.Slots
		if len(slots) > 3 {
			slots = slots[:3]
		}
		fmt.Fprintf(&b, "\n- %s: %s", row.Doctor, strings.Join(slots, ", "))
	}
	return b.String()
}

func cloneAvailability(rows []gateway.DoctorSlots) []gateway.DoctorSlots {
	out := make([]gateway.DoctorSlots, len(rows))
	for i, row := range rows {
		out[i] = gateway.DoctorSlots{Doctor: row.Doctor, Slots: append([]string{}, row.Slots...)}
	}
	return out
}

const (
	PlaceholderTitle = "Yeni Sohbet"
	WelcomeMessage   = "Merhaba! Şikâyetinizi yazın, size uygun polikliniği ve randevu saatlerini önereyim."

	titleMaxRunes = 30
	dateLayout    = "2006-01-02"
)

// titleFrom derives a conversation title from its first user message.
func titleFrom(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleMaxRunes]) + "..."
}

func toWire(msgs []Message) []gateway.Message {
	out := make([]gateway.Message, len(msgs))
	for i, m := range msgs {
		out[i] = gateway.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
