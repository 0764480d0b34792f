package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	"github.com/clinicdesk/clinicdesk/internal/routing"
	"github.com/clinicdesk/clinicdesk/internal/store"
)

// Booking outcome strings. The coordinator's completion-signal check keys on
// these, so they are constants rather than ad hoc text.
const (
	bookedReplyFmt      = "Great! Your appointment is booked for %s at %s with Dr. %s. See you then! Appointment successfully booked."
	cancelledReply      = "Appointment successfully cancelled."
	rescheduledReplyFmt = "Appointment successfully rescheduled to %s at %s with Dr. %s."
)

// bookingIntent is what the patient wants done.
type bookingIntent int

const (
	intentBook bookingIntent = iota
	intentCancel
	intentReschedule
)

// BookingHandler executes booking, cancel and reschedule mutations against
// the appointment store.
type BookingHandler struct {
	schedule  store.Schedule
	extractor *Extractor
	logger    *slog.Logger
}

// NewBookingHandler creates the mutation handler.
func NewBookingHandler(schedule store.Schedule, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{
		schedule:  schedule,
		extractor: NewExtractor(),
		logger:    logger,
	}
}

// Name returns the handler's routing actor.
func (h *BookingHandler) Name() domain.Actor {
	return domain.ActorBooking
}

// Handle performs the requested mutation and appends one assistant turn. The
// whole conversation is scanned for date, time and doctor so a bare "yes"
// confirmation books the slot that was last offered, instead of asking
// again. On success the pending query carries the booking-complete marker
// for the coordinator's completion check.
func (h *BookingHandler) Handle(ctx context.Context, s domain.ConversationSession) (domain.ConversationSession, error) {
	if h.alreadyActed(s) {
		h.logger.Debug("booking handler skipping re-run", "patient_id", s.PatientID)
		return s, nil
	}

	intent := inferBookingIntent(s)
	ents := h.extractor.Extract(s.PendingQuery)
	if ents.Date == "" || ents.Time == "" || ents.DoctorName == "" {
		// Confirmations and partial messages lean on the conversation for
		// the slot that was discussed.
		full := h.extractor.ExtractFromLog(s.Log)
		if ents.Date == "" {
			ents.Date, ents.SecondDate = full.Date, full.SecondDate
		}
		if ents.Time == "" {
			ents.Time, ents.SecondTime = full.Time, full.SecondTime
		}
		if ents.DoctorName == "" {
			ents.DoctorName = full.DoctorName
		}
	}

	reply, completed := h.perform(ctx, intent, ents, s.PatientID)

	s = s.Append(domain.AssistantTurn(domain.ActorBooking, reply))
	if completed {
		s.PendingQuery = routing.BookingCompleteMarker
	} else {
		s.PendingQuery = ""
	}
	return s, nil
}

// alreadyActed reports whether this handler already completed an action for
// the current exchange.
func (h *BookingHandler) alreadyActed(s domain.ConversationSession) bool {
	if s.PendingQuery == routing.BookingCompleteMarker {
		return true
	}
	own, ok := s.LastProducedBy(domain.ActorBooking)
	if !ok {
		return false
	}
	if !strings.Contains(strings.ToUpper(own.Text), "SUCCESSFULLY") {
		return false
	}
	last, _ := s.LastTurn()
	return last.IsAssistant() && last.Producer == domain.ActorBooking
}

// perform runs the mutation and returns the reply plus whether the booking
// action completed.
func (h *BookingHandler) perform(ctx context.Context, intent bookingIntent, ents Entities, patientID string) (string, bool) {
	switch intent {
	case intentCancel:
		if ents.Date == "" || ents.Time == "" || ents.DoctorName == "" {
			return "I need the date, time and doctor of the appointment you want to cancel.", false
		}
		err := h.schedule.Cancel(ctx, ents.Date, ents.Time, ents.DoctorName, patientID)
		if errors.Is(err, store.ErrNoSuchAppointment) {
			return "You do not have any appointment with these details.", false
		}
		if err != nil {
			h.logger.Error("cancel failed", "patient_id", patientID, "error", err)
			return "Sorry, I couldn't cancel that right now. Please try again.", false
		}
		return cancelledReply, true

	case intentReschedule:
		newDate, newTime := ents.SecondDate, ents.SecondTime
		if newDate == "" {
			newDate = ents.Date
		}
		if newTime == "" {
			newTime = ents.Time
		}
		if ents.Date == "" || ents.Time == "" || newDate == "" || newTime == "" || ents.DoctorName == "" {
			return "To reschedule I need the current appointment and the new date and time. What should I move it to?", false
		}
		err := h.schedule.Reschedule(ctx, ents.Date, ents.Time, newDate, newTime, ents.DoctorName, patientID)
		if errors.Is(err, store.ErrSlotUnavailable) {
			return "Desired new date has no available slots.", false
		}
		if errors.Is(err, store.ErrNoSuchAppointment) {
			return "You do not have any appointment with these details.", false
		}
		if err != nil {
			h.logger.Error("reschedule failed", "patient_id", patientID, "error", err)
			return "Sorry, I couldn't reschedule that right now. Please try again.", false
		}
		return fmt.Sprintf(rescheduledReplyFmt, newDate, formatAMPM(newTime), doctorTitle(ents.DoctorName)), true

	default:
		if ents.Date == "" || ents.Time == "" || ents.DoctorName == "" {
			return "Happy to book that. Which date, time and doctor would you like?", false
		}
		err := h.schedule.Book(ctx, ents.Date, ents.Time, ents.DoctorName, patientID)
		if errors.Is(err, store.ErrSlotUnavailable) {
			return "No available appointments for that time.", false
		}
		if err != nil {
			h.logger.Error("book failed", "patient_id", patientID, "error", err)
			return "Sorry, I couldn't book that right now. Please try again.", false
		}
		return fmt.Sprintf(bookedReplyFmt, ents.Date, formatAMPM(ents.Time), doctorTitle(ents.DoctorName)), true
	}
}

// inferBookingIntent picks the mutation from the most recent user text that
// names one; bare confirmations inherit the intent discussed earlier.
func inferBookingIntent(s domain.ConversationSession) bookingIntent {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].Actor != domain.ActorUser {
			continue
		}
		text := strings.ToLower(s.Log[i].Text)
		if isConfirmation(text) {
			continue
		}
		switch {
		case strings.Contains(text, "reschedule"), strings.Contains(text, "move my appointment"):
			return intentReschedule
		case strings.Contains(text, "cancel"):
			return intentCancel
		case strings.Contains(text, "book"), strings.Contains(text, "schedule"), strings.Contains(text, "appointment"):
			return intentBook
		}
	}
	return intentBook
}
