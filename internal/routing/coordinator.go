// Package routing implements the coordinator state machine that drives a
// conversation between the information and booking handlers. On every
// evaluation it runs an ordered pipeline of termination checks before
// consulting the decision oracle, guaranteeing the session terminates even
// when the oracle fails, repeats itself, or ping-pongs between handlers.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	"github.com/clinicdesk/clinicdesk/internal/oracle"
)

// State is the coordinator's position in the routing cycle.
type State string

const (
	// StateRouting is the evaluation state entered before each decision.
	StateRouting State = "ROUTING"
	// StateDelegated means a handler is executing.
	StateDelegated State = "DELEGATED"
	// StateTerminated is terminal.
	StateTerminated State = "TERMINATED"
)

// Status classifies a terminal outcome for the caller.
type Status string

const (
	// StatusResolved means the user's query was answered or the booking
	// action completed.
	StatusResolved Status = "success"
	// StatusEnded means a designed early stop fired; the reasoning field
	// says which one.
	StatusEnded Status = "ended"
)

// Outcome is the terminal result of driving a session.
type Outcome struct {
	Status    Status `json:"status"`
	Reasoning string `json:"reasoning"`
}

// Handler is the uniform contract every specialized handler satisfies: take
// the session, optionally invoke domain tools, append exactly one assistant
// turn, adjust the pending query, and return control. A handler never
// terminates the session and never routes to another handler.
type Handler interface {
	Name() domain.Actor
	Handle(ctx context.Context, s domain.ConversationSession) (domain.ConversationSession, error)
}

// ErrMalformedSession rejects sessions that cannot enter ROUTING: missing
// identity or an empty log.
var ErrMalformedSession = errors.New("malformed session: identity and a non-empty log are required")

// Config bounds the coordinator.
type Config struct {
	// MaxTurns is the turn budget enforced by the budget check.
	MaxTurns int
	// MaxSteps is the hard driver ceiling, independent of MaxTurns, guarding
	// against handler misbehavior bypassing the evaluation checks.
	MaxSteps int
}

// DefaultConfig returns the production budgets.
func DefaultConfig() Config {
	return Config{MaxTurns: 8, MaxSteps: 30}
}

// Coordinator owns the routing state machine for one service instance. It is
// stateless across sessions; a session is driven by exactly one goroutine.
type Coordinator struct {
	oracle   oracle.Oracle
	handlers map[domain.Actor]Handler
	cfg      Config
	logger   *slog.Logger
}

// NewCoordinator wires the oracle and handlers into a coordinator.
func NewCoordinator(o oracle.Oracle, handlers []Handler, cfg Config, logger *slog.Logger) (*Coordinator, error) {
	if o == nil {
		return nil, errors.New("oracle is required")
	}
	if cfg.MaxTurns <= 0 || cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("invalid budgets: max_turns=%d max_steps=%d", cfg.MaxTurns, cfg.MaxSteps)
	}
	if logger == nil {
		logger = slog.Default()
	}
	hm := make(map[domain.Actor]Handler, len(handlers))
	for _, h := range handlers {
		if !h.Name().IsRoutable() {
			return nil, fmt.Errorf("handler %q is not a routable actor", h.Name())
		}
		hm[h.Name()] = h
	}
	return &Coordinator{oracle: o, handlers: hm, cfg: cfg, logger: logger}, nil
}

// evaluation is the result of one pass through ROUTING.
type evaluation struct {
	state     State
	actor     domain.Actor
	reasoning string
	resolved  bool // true when the terminal outcome answers the user
}

// evaluate performs one ROUTING entry: increment the turn counter, run the
// termination pipeline, then consult the oracle (or the keyword fallback)
// and vet the prospective route. It never mutates prior turns.
func (c *Coordinator) evaluate(ctx context.Context, s domain.ConversationSession, prevQuery string, havePrev bool) (domain.ConversationSession, evaluation) {
	s.TurnCount++

	in := checkInput{
		Session:   s,
		PrevQuery: prevQuery,
		HavePrev:  havePrev,
		MaxTurns:  c.cfg.MaxTurns,
	}
	if reason, stop := runChecks(in); stop {
		s.LastRoutedActor = domain.ActorCoordinator
		s.LastReasoning = reason
		return s, evaluation{
			state:     StateTerminated,
			reasoning: reason,
			resolved:  reason == ReasonActionCompleted,
		}
	}

	dec := c.oracle.Decide(ctx, s.Log, s.PatientID)
	if dec.Kind == oracle.KindFailed {
		c.logger.Warn("oracle failed, using keyword inference",
			"patient_id", s.PatientID, "turn_count", s.TurnCount)
		dec = inferDecision(s)
	}

	switch dec.Kind {
	case oracle.KindFinish:
		s.LastRoutedActor = domain.ActorCoordinator
		s.LastReasoning = dec.Reasoning
		return s, evaluation{
			state:     StateTerminated,
			reasoning: dec.Reasoning,
			resolved:  dec.Reasoning != reasonNoIntent,
		}
	case oracle.KindRouted:
		in.Prospective = dec.Actor
		if reason, stop := checkRepeatedRoute(in); stop {
			s.LastRoutedActor = domain.ActorCoordinator
			s.LastReasoning = reason
			return s, evaluation{state: StateTerminated, reasoning: reason}
		}
		s.LastRoutedActor = dec.Actor
		s.LastReasoning = dec.Reasoning
		return s, evaluation{state: StateDelegated, actor: dec.Actor, reasoning: dec.Reasoning}
	default:
		// Unreachable: inferDecision never fails. Kept total anyway.
		s.LastRoutedActor = domain.ActorCoordinator
		s.LastReasoning = reasonNoIntent
		return s, evaluation{state: StateTerminated, reasoning: reasonNoIntent}
	}
}

// Run drives the session to a terminal state.
func (c *Coordinator) Run(ctx context.Context, s domain.ConversationSession) (domain.ConversationSession, Outcome, error) {
	return c.RunObserved(ctx, s, nil)
}

// RunObserved drives the session to a terminal state, invoking onTurn for
// every assistant turn a handler appends. onTurn may be nil.
func (c *Coordinator) RunObserved(ctx context.Context, s domain.ConversationSession, onTurn func(domain.Turn)) (domain.ConversationSession, Outcome, error) {
	if s.PatientID == "" || len(s.Log) == 0 {
		return s, Outcome{}, ErrMalformedSession
	}

	var (
		prevQuery string
		havePrev  bool
	)
	for step := 0; step < c.cfg.MaxSteps; step++ {
		curQuery := s.PendingQuery

		var ev evaluation
		s, ev = c.evaluate(ctx, s, prevQuery, havePrev)
		prevQuery, havePrev = curQuery, true

		c.logger.Debug("coordinator evaluation",
			"patient_id", s.PatientID,
			"step", step,
			"turn_count", s.TurnCount,
			"state", string(ev.state),
			"actor", string(ev.actor),
			"reasoning", ev.reasoning,
		)

		if ev.state == StateTerminated {
			status := StatusEnded
			if ev.resolved {
				status = StatusResolved
			}
			return s, Outcome{Status: status, Reasoning: ev.reasoning}, nil
		}

		h, ok := c.handlers[ev.actor]
		if !ok {
			// No such handler registered; treat like a stall rather than
			// erroring across the boundary.
			s.LastRoutedActor = domain.ActorCoordinator
			s.LastReasoning = ReasonRepeatedRouting
			return s, Outcome{Status: StatusEnded, Reasoning: ReasonRepeatedRouting}, nil
		}

		before := len(s.Log)
		next, err := h.Handle(ctx, s)
		if err != nil {
			// Handlers degrade internally; this is the outer guard for ones
			// that do not.
			c.logger.Error("handler failed", "actor", string(ev.actor), "error", err)
			next = s.Append(domain.AssistantTurn(ev.actor, "Sorry, I couldn't complete that. Please try again."))
			next.PendingQuery = ""
		}
		s = next
		if onTurn != nil {
			for _, t := range s.Log[before:] {
				onTurn(t)
			}
		}
	}

	s.LastReasoning = ReasonStepBudget
	return s, Outcome{Status: StatusEnded, Reasoning: ReasonStepBudget}, nil
}
