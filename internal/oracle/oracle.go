// Package oracle adapts the external conversation classifier that proposes
// the next actor for a session. The classifier is nondeterministic and can
// fail to produce a parseable decision, so every outcome is folded into a
// closed Decision variant; callers never see an error.
package oracle

import (
	"context"

	"github.com/clinicdesk/clinicdesk/internal/domain"
)

// Kind discriminates the decision variant.
type Kind int

const (
	// KindFailed means no structured decision could be obtained. The
	// coordinator recovers with its keyword-inference fallback.
	KindFailed Kind = iota
	// KindRouted carries a chosen handler actor.
	KindRouted
	// KindFinish means the classifier considers the query resolved.
	KindFinish
)

// Decision is the classifier's routing proposal.
type Decision struct {
	Kind      Kind
	Actor     domain.Actor
	Reasoning string
}

// Routed builds a dispatch decision.
func Routed(actor domain.Actor, reasoning string) Decision {
	return Decision{Kind: KindRouted, Actor: actor, Reasoning: reasoning}
}

// Finish builds a terminal decision.
func Finish(reasoning string) Decision {
	return Decision{Kind: KindFinish, Reasoning: reasoning}
}

// Failed builds the failure decision.
func Failed() Decision {
	return Decision{Kind: KindFailed}
}

// Oracle classifies a conversation and proposes the next actor. Decide must
// be side-effect-free with respect to session state: it only inspects the
// materialized turn view plus the patient identity.
type Oracle interface {
	Decide(ctx context.Context, view []domain.Turn, patientID string) Decision
}
