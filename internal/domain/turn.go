// Package domain contains core domain types for the clinicdesk application.
package domain

import "strings"

// Actor identifies who authored a turn or who a routing decision targets.
type Actor string

const (
	// ActorUser is the patient side of the conversation.
	ActorUser Actor = "user"
	// ActorAssistant marks turns produced by any handler.
	ActorAssistant Actor = "assistant"

	// ActorInformation is the availability lookup handler.
	ActorInformation Actor = "information"
	// ActorBooking is the booking/cancel/reschedule handler.
	ActorBooking Actor = "booking"
	// ActorCoordinator is the routing state machine itself.
	ActorCoordinator Actor = "coordinator"
)

// IsRoutable reports whether the actor is a dispatch target.
func (a Actor) IsRoutable() bool {
	return a == ActorInformation || a == ActorBooking
}

// Turn is one atomic message in the conversation log. Immutable once appended.
type Turn struct {
	Actor Actor  `json:"actor"`
	Text  string `json:"text"`
	// Producer names the handler that authored an assistant turn, if any.
	Producer Actor `json:"producer,omitempty"`
}

// IsAssistant reports whether the turn was authored by a handler.
func (t Turn) IsAssistant() bool {
	return t.Actor == ActorAssistant
}

// TrimmedText returns the turn text with surrounding whitespace removed.
// Duplicate-answer detection compares trimmed text byte for byte.
func (t Turn) TrimmedText() string {
	return strings.TrimSpace(t.Text)
}

// UserTurn builds a user-authored turn.
func UserTurn(text string) Turn {
	return Turn{Actor: ActorUser, Text: text}
}

// AssistantTurn builds an assistant turn attributed to the given producer.
func AssistantTurn(producer Actor, text string) Turn {
	return Turn{Actor: ActorAssistant, Text: text, Producer: producer}
}
