// Package handlers implements the specialized actors the coordinator routes
// to: an information handler for availability lookups and a booking handler
// for mutations. Both satisfy the routing.Handler contract: consume the
// session, call domain tools, append exactly one assistant turn, adjust the
// pending query, and hand control back. Tool failures degrade to a
// best-effort reply; no error crosses the coordinator boundary for control
// flow.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	"github.com/clinicdesk/clinicdesk/internal/routing"
	"github.com/clinicdesk/clinicdesk/internal/store"
)

const degradedReply = "Sorry, I couldn't look that up right now. Please try again in a moment."

// InformationHandler answers availability questions using read-only
// schedule queries.
type InformationHandler struct {
	schedule  store.Schedule
	extractor *Extractor
	logger    *slog.Logger
}

// NewInformationHandler creates the availability lookup handler.
func NewInformationHandler(schedule store.Schedule, logger *slog.Logger) *InformationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InformationHandler{
		schedule:  schedule,
		extractor: NewExtractor(),
		logger:    logger,
	}
}

// Name returns the handler's routing actor.
func (h *InformationHandler) Name() domain.Actor {
	return domain.ActorInformation
}

// Handle answers the pending availability question with one assistant turn.
// If this handler already answered and no new user input arrived, the
// session is forwarded unchanged — a second defense under the coordinator's
// duplicate-answer check.
func (h *InformationHandler) Handle(ctx context.Context, s domain.ConversationSession) (domain.ConversationSession, error) {
	if h.alreadyAnswered(s) {
		h.logger.Debug("information handler skipping re-answer", "patient_id", s.PatientID)
		return s, nil
	}

	query := s.PendingQuery
	if query == "" {
		query = s.LastUserText()
	}
	ents := h.extractor.Extract(query)
	if ents.Date == "" || (ents.DoctorName == "" && ents.Specialization == "") {
		// The day's context may live earlier in the conversation.
		prior := h.extractor.ExtractFromLog(s.Log)
		if ents.Date == "" {
			ents.Date = prior.Date
		}
		if ents.DoctorName == "" && ents.Specialization == "" {
			ents.DoctorName, ents.Specialization = prior.DoctorName, prior.Specialization
		}
	}

	reply := h.answer(ctx, ents)

	s = s.Append(domain.AssistantTurn(domain.ActorInformation, reply))
	s.PendingQuery = ""
	return s, nil
}

// alreadyAnswered reports whether the handler's own last turn already
// answered the current pending query.
func (h *InformationHandler) alreadyAnswered(s domain.ConversationSession) bool {
	own, ok := s.LastProducedBy(domain.ActorInformation)
	if !ok {
		return false
	}
	upper := strings.ToUpper(own.Text)
	answered := false
	for _, marker := range routing.StaleAnswerMarkers {
		if strings.Contains(upper, marker) {
			answered = true
			break
		}
	}
	if !answered {
		return false
	}
	// No new user input since our answer: either the pending query was
	// consumed, or the log still ends with our own turn.
	if s.PendingQuery == "" {
		return true
	}
	last, _ := s.LastTurn()
	return last.IsAssistant() && last.Producer == domain.ActorInformation
}

// answer runs the appropriate availability tool and formats the reply.
func (h *InformationHandler) answer(ctx context.Context, ents Entities) string {
	switch {
	case ents.Date == "":
		return "What date would you like to come in? You can say something like 01-02-2025."

	case ents.Time != "" && (ents.DoctorName != "" || ents.Specialization != ""):
		status, err := h.schedule.CheckSlot(ctx, ents.Date, ents.Time, ents.DoctorName, ents.Specialization)
		if err != nil {
			h.logger.Error("slot check failed", "date", ents.Date, "time", ents.Time, "error", err)
			return degradedReply
		}
		return formatSlotCheck(ents, status)

	case ents.DoctorName != "":
		times, err := h.schedule.Availability(ctx, ents.Date, ents.DoctorName)
		if err != nil {
			h.logger.Error("availability lookup failed", "date", ents.Date, "doctor", ents.DoctorName, "error", err)
			return degradedReply
		}
		if len(times) == 0 {
			return fmt.Sprintf("Sorry, Dr. %s has no availability on %s. Want me to check another day?", doctorTitle(ents.DoctorName), ents.Date)
		}
		return fmt.Sprintf("Dr. %s has slots at %s on %s. Which one works for you?", doctorTitle(ents.DoctorName), joinTimes(times), ents.Date)

	case ents.Specialization != "":
		byDoctor, err := h.schedule.AvailabilityBySpecialization(ctx, ents.Date, ents.Specialization)
		if err != nil {
			h.logger.Error("specialization lookup failed", "date", ents.Date, "specialization", ents.Specialization, "error", err)
			return degradedReply
		}
		if len(byDoctor) == 0 {
			return fmt.Sprintf("No availability in the entire day for %s on %s.", strings.ReplaceAll(ents.Specialization, "_", " "), ents.Date)
		}
		return fmt.Sprintf("%s. Which doctor do you prefer?", formatDoctorSlots(byDoctor))

	default:
		return "Which doctor or specialization should I check for you?"
	}
}

func formatSlotCheck(ents Entities, status domain.SlotStatus) string {
	timeDisplay := formatAMPM(ents.Time)
	if status.Available {
		doctor := ents.DoctorName
		if doctor == "" && len(status.Doctors) > 0 {
			doctor = status.Doctors[0]
		}
		return fmt.Sprintf("Yes! That time is available. So that's %s at %s with Dr. %s, right? Should I go ahead and book it?",
			ents.Date, timeDisplay, doctorTitle(doctor))
	}
	if len(status.Alternatives) == 0 {
		return fmt.Sprintf("Sorry, %s isn't available on %s and I don't see any other openings that day.", timeDisplay, ents.Date)
	}
	return fmt.Sprintf("Sorry, %s isn't available on that day. But I have these times: %s. Which one works for you?",
		timeDisplay, formatDoctorSlots(status.Alternatives))
}
