package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	"github.com/clinicdesk/clinicdesk/internal/identity"
	"github.com/clinicdesk/clinicdesk/internal/routing"
)

// conversationRequest is the body of POST /api/conversations. The client may
// carry its own history; when omitted, the persisted log is replayed.
type conversationRequest struct {
	Message             string                 `json:"message"`
	ConversationHistory []domain.StoredMessage `json:"conversation_history,omitempty"`
}

// conversationResponse mirrors the request/response contract of the chat UI.
type conversationResponse struct {
	Response            string                 `json:"response"`
	ConversationHistory []domain.StoredMessage `json:"conversation_history"`
	Status              routing.Status         `json:"status"`
	Reasoning           string                 `json:"reasoning,omitempty"`
	ExchangeID          string                 `json:"exchange_id"`
}

// HandleConversation runs one user message through the coordinator and
// returns the assistant's reply together with the updated history.
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	patientID := identity.PatientIDFromContext(r.Context())
	if patientID == "" {
		Error(w, http.StatusBadRequest, "patient identity required")
		return
	}

	var req conversationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	exchangeID := uuid.NewString()
	log := h.logger.With("exchange_id", exchangeID, "patient_id", patientID)

	prior := domain.FromStored(req.ConversationHistory)
	if req.ConversationHistory == nil {
		stored, err := h.schedule.GetConversation(r.Context(), patientID)
		if err != nil {
			log.Error("failed to load conversation", "error", err)
			Error(w, http.StatusInternalServerError, "failed to load conversation")
			return
		}
		prior = domain.FromStored(stored)
	}

	session := domain.NewSession(patientID, prior, req.Message)
	final, outcome, err := h.coordinator.Run(r.Context(), session)
	if errors.Is(err, routing.ErrMalformedSession) {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error("coordinator run failed", "error", err)
		Error(w, http.StatusInternalServerError, "conversation failed")
		return
	}

	history := domain.ToStored(final.Log)
	if err := h.schedule.SaveConversation(r.Context(), patientID, history); err != nil {
		// The reply already exists; losing persistence is worth a warning,
		// not a failed exchange.
		log.Warn("failed to persist conversation", "error", err)
	}

	log.Info("conversation exchange complete",
		"status", string(outcome.Status),
		"reasoning", outcome.Reasoning,
		"turn_count", final.TurnCount,
	)

	JSON(w, http.StatusOK, conversationResponse{
		Response:            lastAssistantText(final),
		ConversationHistory: history,
		Status:              outcome.Status,
		Reasoning:           outcome.Reasoning,
		ExchangeID:          exchangeID,
	})
}

// lastAssistantText returns the text of the newest assistant turn, or a
// fallback when the session ended before any handler replied.
func lastAssistantText(s domain.ConversationSession) string {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].IsAssistant() {
			return s.Log[i].Text
		}
	}
	return "I'm not sure how to help with that. I can check appointment availability or book, cancel and reschedule appointments."
}
