package gateway

import (
	"bytes"
	"encoding/json"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Department is the backend's department object. It is kept as a generic map
// so it can be echoed back to /book exactly as it was received.
type Department map[string]any

// Name returns the department's display name, or "" when absent.
func (d Department) Name() string { return d.str("name") }

// Code returns the department's routing code ("code" or "id").
func (d Department) Code() string {
	if c := d.str("code"); c != "" {
		return c
	}
	return d.str("id")
}

func (d Department) str(key string) string {
	if d == nil {
		return ""
	}
	s, _ := d[key].(string)
	return s
}

// DoctorSlots is one row of an availability list.
type DoctorSlots struct {
	Doctor string   `json:"doctor"`
	Slots  []string `json:"slots"`
}

type chatRequest struct {
	Message string    `json:"message"`
	History []Message `json:"history"`
}

// ChatResponse is the decoded /chat reply. HasAvailability reports whether the
// availability field was a JSON array, as opposed to absent, null or some
// other shape.
type ChatResponse struct {
	Reply           string
	Intent          string
	Source          string
	Department      Department
	Availability    []DoctorSlots
	HasAvailability bool
}

type chatResponseWire struct {
	Reply        string          `json:"reply"`
	Intent       string          `json:"intent"`
	Source       string          `json:"source"`
	Department   Department      `json:"department"`
	Availability json.RawMessage `json:"availability"`
}

func (c *ChatResponse) UnmarshalJSON(data []byte) error {
	var w chatResponseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = ChatResponse{
		Reply:      w.Reply,
		Intent:     w.Intent,
		Source:     w.Source,
		Department: w.Department,
	}
	c.Availability, c.HasAvailability = decodeAvailability(w.Availability)
	return nil
}

func (c ChatResponse) MarshalJSON() ([]byte, error) {
	w := struct {
		Reply        string        `json:"reply"`
		Intent       string        `json:"intent,omitempty"`
		Source       string        `json:"source,omitempty"`
		Department   Department    `json:"department,omitempty"`
		Availability []DoctorSlots `json:"availability,omitempty"`
	}{c.Reply, c.Intent, c.Source, c.Department, c.Availability}
	return json.Marshal(w)
}

// IsRouteOffer reports whether the reply proposes a department with at least
// one row of availability.
func (c *ChatResponse) IsRouteOffer() bool {
	return c.Intent == IntentRoute && c.Department != nil && c.HasAvailability && len(c.Availability) > 0
}

// IntentRoute marks a reply that carries a scheduling offer.
const IntentRoute = "route"

// BookRequest is the /book request body.
type BookRequest struct {
	Department Department `json:"department"`
	Doctor     string     `json:"doctor"`
	Slot       string     `json:"slot"`
	Patient    string     `json:"patient"`
}

// BookedAppointment is the backend's record of a successful booking.
type BookedAppointment struct {
	ID     string `json:"id"`
	Doctor string `json:"doctor"`
	Slot   string `json:"slot"`
}

// BookResponse is the decoded /book reply. OK=false is a business rejection.
type BookResponse struct {
	OK              bool
	Message         string
	Error           string
	Appointment     *BookedAppointment
	Availability    []DoctorSlots
	HasAvailability bool
}

type bookResponseWire struct {
	OK           bool               `json:"ok"`
	Message      string             `json:"message"`
	Error        string             `json:"error"`
	Appointment  *BookedAppointment `json:"appointment"`
	Availability json.RawMessage    `json:"availability"`
}

func (b *BookResponse) UnmarshalJSON(data []byte) error {
	var w bookResponseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = BookResponse{
		OK:          w.OK,
		Message:     w.Message,
		Error:       w.Error,
		Appointment: w.Appointment,
	}
	b.Availability, b.HasAvailability = decodeAvailability(w.Availability)
	return nil
}

func (b BookResponse) MarshalJSON() ([]byte, error) {
	w := struct {
		OK           bool               `json:"ok"`
		Message      string             `json:"message,omitempty"`
		Error        string             `json:"error,omitempty"`
		Appointment  *BookedAppointment `json:"appointment,omitempty"`
		Availability []DoctorSlots      `json:"availability,omitempty"`
	}{b.OK, b.Message, b.Error, b.Appointment, b.Availability}
	return json.Marshal(w)
}

// HealthResponse is the backend's /health reply.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
}

// decodeAvailability accepts only a JSON array; anything else yields false.
func decodeAvailability(raw json.RawMessage) ([]DoctorSlots, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var rows []DoctorSlots
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false
	}
	if rows == nil {
		rows = []DoctorSlots{}
	}
	for i := range rows {
		if rows[i].Slots == nil {
			rows[i].Slots = []string{}
		}
	}
	return rows, true
}
