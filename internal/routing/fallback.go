package routing

import (
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	"github.com/clinicdesk/clinicdesk/internal/oracle"
)

// Fallback reasoning strings surfaced in LastReasoning when the oracle could
// not produce a structured decision.
const (
	reasonInferredBooking      = "oracle unavailable, inferred booking intent"
	reasonInferredAvailability = "oracle unavailable, inferred availability intent"
	reasonNoIntent             = "oracle unavailable, no intent inferred"
)

// inferDecision recovers a routing decision from the most recent user turn
// when the oracle failed. It scans for booking intent first, then
// availability intent, and defaults to finishing so the state machine never
// blocks on oracle failure.
func inferDecision(s domain.ConversationSession) oracle.Decision {
	userText := strings.ToLower(s.LastUserText())
	if userText == "" {
		return oracle.Finish(reasonNoIntent)
	}
	if containsAny(userText, BookingIntentKeywords) {
		return oracle.Routed(domain.ActorBooking, reasonInferredBooking)
	}
	if containsAny(userText, AvailabilityIntentKeywords) {
		return oracle.Routed(domain.ActorInformation, reasonInferredAvailability)
	}
	return oracle.Finish(reasonNoIntent)
}
