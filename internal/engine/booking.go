package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/intake/internal/gateway"
)

var (
	ErrNoOffer         = errors.New("no scheduling offer is active")
	ErrBookingInFlight = errors.New("a booking is already in progress")
)

const (
	SuccessMarker    = "✅ "
	BookingRejected  = "Rezervasyon yapılamadı."
	BookingFailure   = "Rezervasyon sırasında hata oluştu."
	bookingRequested = "Randevu talebi: %s – %s"
	bookingCreated   = "Randevu oluşturuldu: %s – %s"
)

type BookOutcome string

const (
	BookConfirmed BookOutcome = "confirmed"
	BookRejected  BookOutcome = "rejected"
	BookError     BookOutcome = "error"
)

// BookResult reports how an accepted booking ended.
type BookResult struct {
	Outcome     BookOutcome
	Appointment *Appointment
	Message     string
	Err         error
}

// BookingFlow books a slot from the active offer. At most one booking is in
// flight at a time.
type BookingFlow struct {
	st      *State
	backend Backend
	patient string
}

// Book reserves slot with doctor in the offered department. Without an
// active offer nothing happens and ErrNoOffer is returned.
func (b *BookingFlow) Book(ctx context.Context, doctor, slot string) (BookResult, error) {
	s := b.st
	s.lock()
	if s.route == nil || s.route.Department == nil {
		s.unlock()
		return BookResult{}, ErrNoOffer
	}
	if s.booking {
		s.unlock()
		return BookResult{}, ErrBookingInFlight
	}
	s.booking = true
	offer := s.route.clone()
	convID := offer.ConversationID
	s.emit(Event{Kind: EventBookingStarted, ConversationID: convID, Text: doctor + " " + slot})
	s.unlock()

	started := time.Now()
	resp, err := b.backend.Book(ctx, gateway.BookRequest{
		Department: offer.Department,
		Doctor:     doctor,
		Slot:       slot,
		Patient:    b.patient,
	})
	elapsed := time.Since(started)

	s.lock()
	defer s.unlock()
	s.booking = false

	var result BookResult
	switch {
	case err != nil:
		s.logger.Error("booking request failed", "conversation_id", convID, "doctor", doctor, "slot", slot, "error", err)
		_ = s.appendLocked(convID, Message{Role: RoleAssistant, Content: BookingFailure})
		result = BookResult{Outcome: BookError, Message: BookingFailure, Err: err}

	case resp == nil || !resp.OK:
		reason := BookingRejected
		if resp != nil {
			reason = firstNonEmpty(resp.Error, resp.Message, BookingRejected)
		}
		s.logger.Info("booking rejected", "conversation_id", convID, "doctor", doctor, "slot", slot, "reason", reason)
		_ = s.appendLocked(convID, Message{Role: RoleAssistant, Content: reason})
		result = BookResult{Outcome: BookRejected, Message: reason}

	default:
		confirmation := SuccessMarker + firstNonEmpty(resp.Message, fmt.Sprintf(bookingCreated, doctor, slot))
		_ = s.appendLocked(convID, Message{Role: RoleUser, Content: fmt.Sprintf(bookingRequested, doctor, slot)})
		_ = s.appendLocked(convID, Message{Role: RoleAssistant, Content: confirmation})

		appt := s.recordAppointmentLocked(resp, offer.Department, doctor, slot)

		if resp.HasAvailability && s.route != nil && s.route.ConversationID == convID {
			s.route.Availability = cloneAvailability(resp.Availability)
			s.emit(Event{Kind: EventRouteChanged, ConversationID: convID, Route: s.route.clone()})
		}

		s.logger.Info("appointment booked",
			"conversation_id", convID,
			"appointment_id", appt.ID,
			"doctor", doctor,
			"slot", slot,
		)
		result = BookResult{Outcome: BookConfirmed, Appointment: &appt, Message: confirmation}
	}

	s.emit(Event{Kind: EventBookingCompleted, ConversationID: convID, Outcome: string(result.Outcome), Duration: elapsed})
	s.saveLocked(ctx)
	return result, nil
}

// Booking reports whether a booking is in flight.
func (b *BookingFlow) Booking() bool {
	s := b.st
	s.lock()
	defer s.unlock()
	return s.booking
}

// Appointments returns the ledger, newest first.
func (b *BookingFlow) Appointments() []Appointment {
	s := b.st
	s.lock()
	defer s.unlock()
	return append([]Appointment{}, s.ledger...)
}

func (s *State) recordAppointmentLocked(resp *gateway.BookResponse, dept gateway.Department, doctor, slot string) Appointment {
	id := ""
	if resp.Appointment != nil {
		id = resp.Appointment.ID
	}
	if id == "" || s.hasAppointmentLocked(id) {
		id = uuid.NewString()
	}

	date, clock := splitSlot(slot, s.today())
	appt := Appointment{
		ID:         id,
		Doctor:     doctor,
		Department: dept.Name(),
		Slot:       slot,
		Date:       date,
		Time:       clock,
		Status:     StatusConfirmed,
	}
	s.ledger = append([]Appointment{appt}, s.ledger...)
	a := appt
	s.emit(Event{Kind: EventAppointmentRecorded, Appointment: &a})
	return appt
}

func (s *State) hasAppointmentLocked(id string) bool {
	for _, a := range s.ledger {
		if a.ID == id {
			return true
		}
	}
	return false
}

// splitSlot separates "2006-01-02 15:04" labels into date and time. Bare time
// labels are dated today.
func splitSlot(slot, today string) (string, string) {
	slot = strings.TrimSpace(slot)
	if t, err := time.Parse("2006-01-02 15:04", slot); err == nil {
		return t.Format(dateLayout), t.Format("15:04")
	}
	return today, slot
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
