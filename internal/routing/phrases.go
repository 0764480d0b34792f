package routing

import "strings"

// Phrase vocabularies used by the termination checks and the keyword
// fallback. They are ordered, case-insensitive substring matchers kept as
// data so tests can enumerate them exhaustively. Matching is done against
// upper-cased text for the completion/stale sets and lower-cased text for
// the intent sets, mirroring how the vocabulary was collected.

// BookingCompleteMarker is the side-channel value a handler writes to the
// session's pending query after a successful booking action.
const BookingCompleteMarker = "BOOKING_COMPLETE"

// CompletionPhrases signal that a booking action finished. Most specific
// first; either phrase order is covered for each outcome.
var CompletionPhrases = []string{
	"APPOINTMENT SUCCESSFULLY BOOKED",
	"SUCCESSFULLY BOOKED",
	"BOOKED SUCCESSFULLY",
	"SUCCESSFULLY CANCELLED",
	"CANCELLED SUCCESSFULLY",
	"SUCCESSFULLY RESCHEDULED",
	"RESCHEDULED SUCCESSFULLY",
	"YOUR APPOINTMENT IS BOOKED",
	"SEE YOU THEN",
}

// StaleAnswerMarkers indicate an assistant turn that already answered the
// user: offered slots, asked which one, asked to confirm, and so on.
var StaleAnswerMarkers = []string{
	"AVAILABLE",
	"NOT AVAILABLE",
	"ISN'T AVAILABLE",
	"ISN'T",
	"ALTERNATIVES",
	"SLOTS",
	"OPTIONS",
	"BOOKED",
	"SUCCESSFULLY",
	"WHICH ONE",
	"WOULD YOU LIKE",
	"PREFER",
}

// BookingIntentKeywords route a user message to the booking handler when the
// oracle is unavailable.
var BookingIntentKeywords = []string{
	"book", "appointment", "schedule", "cancel", "reschedule",
}

// AvailabilityIntentKeywords route a user message to the information handler
// when the oracle is unavailable.
var AvailabilityIntentKeywords = []string{
	"available", "availability", "slot", "time", "when",
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
