package routing

import (
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/domain"
)

// Terminal reasoning strings. The reasoning field is the only way a caller
// distinguishes a resolved query from a designed early stop, so these are
// stable values rather than free text.
const (
	ReasonBudgetExhausted = "turn budget exhausted"
	ReasonRepeatedRouting = "repeated routing detected"
	ReasonDuplicateAnswer = "duplicate answer detected"
	ReasonActionCompleted = "action completed"
	ReasonStaleAnswer     = "answer already provided, no new input"
	ReasonHighTurnCount   = "high turn count, preventing loop"
	ReasonStepBudget      = "step budget exhausted"
)

// checkInput is everything a termination predicate may inspect. Predicates
// are pure: no oracle, no store, no clock.
type checkInput struct {
	Session domain.ConversationSession
	// PrevQuery is the pending query captured at the prior evaluation.
	PrevQuery string
	// HavePrev is false on the first evaluation of a session.
	HavePrev bool
	// Prospective is the actor about to be routed to, when known. Empty
	// during the pre-oracle pass.
	Prospective domain.Actor
	// MaxTurns is the turn budget (check 1).
	MaxTurns int
}

// terminationCheck is one ordered predicate. It returns the terminal
// reasoning and true when the session must stop.
type terminationCheck struct {
	name string
	fn   func(checkInput) (string, bool)
}

// terminationChecks run in order before any oracle consultation. The
// ordering (budget > repeat-route > duplicate > completion > stale >
// high-turn) is the documented tie-break; it is policy, so reordering this
// slice is the only change needed to tune it.
var terminationChecks = []terminationCheck{
	{name: "budget", fn: checkBudget},
	{name: "repeated-route", fn: checkRepeatedRoute},
	{name: "duplicate-answer", fn: checkDuplicateAnswer},
	{name: "completion-signal", fn: checkCompletionSignal},
	{name: "stale-answer", fn: checkStaleAnswer},
	{name: "high-turn", fn: checkHighTurn},
}

// checkBudget bounds worst-case cost regardless of oracle behavior.
func checkBudget(in checkInput) (string, bool) {
	if in.Session.TurnCount > in.MaxTurns {
		return ReasonBudgetExhausted, true
	}
	return "", false
}

// checkRepeatedRoute treats routing to the same handler again after several
// turns as a stall. It only fires once a prospective actor is known.
func checkRepeatedRoute(in checkInput) (string, bool) {
	if in.Prospective == "" {
		return "", false
	}
	if in.Session.TurnCount > 3 && in.Session.LastRoutedActor == in.Prospective {
		return ReasonRepeatedRouting, true
	}
	return "", false
}

// checkDuplicateAnswer catches a handler re-emitting the same response
// because the oracle re-routed it without new user input.
func checkDuplicateAnswer(in checkInput) (string, bool) {
	prev, last, ok := in.Session.LastTwoTurns()
	if !ok {
		return "", false
	}
	if prev.IsAssistant() && last.IsAssistant() && prev.TrimmedText() == last.TrimmedText() {
		return ReasonDuplicateAnswer, true
	}
	return "", false
}

// checkCompletionSignal terminates once a booking outcome is visible, either
// in the last assistant text or through the side-channel marker a handler
// set on the pending query.
func checkCompletionSignal(in checkInput) (string, bool) {
	if in.Session.PendingQuery == BookingCompleteMarker {
		return ReasonActionCompleted, true
	}
	last, ok := in.Session.LastTurn()
	if !ok || !last.IsAssistant() {
		return "", false
	}
	if containsAny(strings.ToUpper(last.Text), CompletionPhrases) {
		return ReasonActionCompleted, true
	}
	return "", false
}

// checkStaleAnswer fires when the assistant already answered (offered slots,
// asked which one, asked to confirm) and the user has supplied nothing new.
func checkStaleAnswer(in checkInput) (string, bool) {
	if in.Session.TurnCount <= 3 {
		return "", false
	}
	last, ok := in.Session.LastTurn()
	if !ok || !last.IsAssistant() {
		return "", false
	}
	if !containsAny(strings.ToUpper(last.Text), StaleAnswerMarkers) {
		return "", false
	}
	pending := in.Session.PendingQuery
	if pending == "" || (in.HavePrev && pending == in.PrevQuery) {
		return ReasonStaleAnswer, true
	}
	return "", false
}

// checkHighTurn is the last safety net: past five turns with the assistant
// having spoken last, stop regardless of content.
func checkHighTurn(in checkInput) (string, bool) {
	if in.Session.TurnCount <= 5 {
		return "", false
	}
	if last, ok := in.Session.LastTurn(); ok && last.IsAssistant() {
		return ReasonHighTurnCount, true
	}
	return "", false
}

// runChecks evaluates the ordered pipeline and returns the first verdict.
func runChecks(in checkInput) (string, bool) {
	for _, c := range terminationChecks {
		if reason, stop := c.fn(in); stop {
			return reason, true
		}
	}
	return "", false
}
