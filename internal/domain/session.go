package domain

// ConversationSession is the envelope threaded between the coordinator and
// handlers for one resolution of a conversation. It is passed and returned by
// value; every step produces a new session rather than mutating a shared one.
type ConversationSession struct {
	PatientID       string `json:"patient_id"`
	Log             []Turn `json:"log"`
	TurnCount       int    `json:"turn_count"`
	LastRoutedActor Actor  `json:"last_routed_actor,omitempty"`
	PendingQuery    string `json:"pending_query,omitempty"`
	LastReasoning   string `json:"last_reasoning,omitempty"`
}

// NewSession seeds a session from the persisted prior log plus the new user
// turn. The prior log is copied so the caller's slice is never aliased.
func NewSession(patientID string, prior []Turn, userText string) ConversationSession {
	log := make([]Turn, 0, len(prior)+1)
	log = append(log, prior...)
	log = append(log, UserTurn(userText))
	return ConversationSession{
		PatientID:    patientID,
		Log:          log,
		PendingQuery: userText,
	}
}

// Append returns a copy of the session with the turn added. The receiver's
// log is never modified in place.
func (s ConversationSession) Append(t Turn) ConversationSession {
	log := make([]Turn, len(s.Log), len(s.Log)+1)
	copy(log, s.Log)
	s.Log = append(log, t)
	return s
}

// LastTurn returns the most recent turn, if any.
func (s ConversationSession) LastTurn() (Turn, bool) {
	if len(s.Log) == 0 {
		return Turn{}, false
	}
	return s.Log[len(s.Log)-1], true
}

// LastTwoTurns returns the two most recent turns, newest last.
func (s ConversationSession) LastTwoTurns() (Turn, Turn, bool) {
	if len(s.Log) < 2 {
		return Turn{}, Turn{}, false
	}
	return s.Log[len(s.Log)-2], s.Log[len(s.Log)-1], true
}

// LastUserText returns the text of the most recent user turn, or "".
func (s ConversationSession) LastUserText() string {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].Actor == ActorUser {
			return s.Log[i].Text
		}
	}
	return ""
}

// LastProducedBy returns the most recent assistant turn authored by the given
// producer, if any.
func (s ConversationSession) LastProducedBy(producer Actor) (Turn, bool) {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].IsAssistant() && s.Log[i].Producer == producer {
			return s.Log[i], true
		}
	}
	return Turn{}, false
}

// StoredMessage is a serialized conversation log entry, persisted between
// exchanges as role/content pairs.
type StoredMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToStored converts the log into persistable role/content messages. Producer
// attribution is an in-flight routing detail and is not persisted.
func ToStored(log []Turn) []StoredMessage {
	out := make([]StoredMessage, 0, len(log))
	for _, t := range log {
		out = append(out, StoredMessage{Role: string(t.Actor), Content: t.Text})
	}
	return out
}

// FromStored rebuilds a turn log from persisted role/content messages.
// Unknown roles are skipped rather than failing the replay.
func FromStored(msgs []StoredMessage) []Turn {
	out := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		switch Actor(m.Role) {
		case ActorUser:
			out = append(out, UserTurn(m.Content))
		case ActorAssistant:
			out = append(out, Turn{Actor: ActorAssistant, Text: m.Content})
		}
	}
	return out
}
