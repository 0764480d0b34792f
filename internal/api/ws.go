package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	"github.com/clinicdesk/clinicdesk/internal/identity"
	"github.com/clinicdesk/clinicdesk/internal/routing"
	"github.com/clinicdesk/clinicdesk/internal/store"
)

// ChatSocketHandler handles WebSocket-based chat sessions. Each incoming user
// message is driven through the coordinator, with handler replies streamed to
// the client as they are produced instead of waiting for the terminal state.
type ChatSocketHandler struct {
	coordinator    *routing.Coordinator
	schedule       store.Schedule
	allowedOrigins []string
	logger         *slog.Logger
}

// NewChatSocketHandler creates a new chat WebSocket handler.
func NewChatSocketHandler(coordinator *routing.Coordinator, schedule store.Schedule, allowedOrigins []string, logger *slog.Logger) *ChatSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatSocketHandler{
		coordinator:    coordinator,
		schedule:       schedule,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// chatInMessage is what the client sends over the socket.
type chatInMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// chatOutMessage is what the server streams back.
type chatOutMessage struct {
	Type      string `json:"type"`
	Producer  string `json:"producer,omitempty"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *ChatSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	patientID := identity.PatientIDFromContext(r.Context())
	if patientID == "" {
		http.Error(w, "patient identity required", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns(),
	})
	if err != nil {
		h.logger.Error("failed to accept websocket", "error", err, "patient_id", patientID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("failed to close websocket", "error", closeErr, "patient_id", patientID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.logger.Info("chat session started", "patient_id", patientID, "ip", r.RemoteAddr)

	stored, err := h.schedule.GetConversation(ctx, patientID)
	if err != nil {
		h.logger.Error("failed to load conversation", "error", err, "patient_id", patientID)
		h.writeJSON(ws, chatOutMessage{Type: "error", Error: "failed to load conversation"})
		return
	}
	prior := domain.FromStored(stored)

	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("websocket closed by client", "patient_id", patientID)
			} else {
				h.logger.Warn("websocket read error", "error", err, "patient_id", patientID)
			}
			return
		}

		var msg chatInMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.writeJSON(ws, chatOutMessage{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "ping":
			h.writeJSON(ws, chatOutMessage{Type: "pong"})
		case "message":
			prior = h.runExchange(ctx, ws, patientID, prior, msg.Content)
		default:
			h.writeJSON(ws, chatOutMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

// runExchange drives one user message through the coordinator, streaming each
// assistant turn to the socket, and returns the updated log.
func (h *ChatSocketHandler) runExchange(ctx context.Context, ws *websocket.Conn, patientID string, prior []domain.Turn, text string) []domain.Turn {
	text = strings.TrimSpace(text)
	if text == "" {
		h.writeJSON(ws, chatOutMessage{Type: "error", Error: "message is required"})
		return prior
	}

	session := domain.NewSession(patientID, prior, text)
	final, outcome, err := h.coordinator.RunObserved(ctx, session, func(t domain.Turn) {
		h.writeJSON(ws, chatOutMessage{
			Type:     "turn",
			Producer: string(t.Producer),
			Content:  t.Text,
		})
	})
	if err != nil {
		h.logger.Error("coordinator run failed", "error", err, "patient_id", patientID)
		h.writeJSON(ws, chatOutMessage{Type: "error", Error: "conversation failed"})
		return prior
	}

	h.writeJSON(ws, chatOutMessage{
		Type:      "done",
		Status:    string(outcome.Status),
		Reasoning: outcome.Reasoning,
	})

	if err := h.schedule.SaveConversation(ctx, patientID, domain.ToStored(final.Log)); err != nil {
		h.logger.Warn("failed to persist conversation", "error", err, "patient_id", patientID)
	}
	return final.Log
}

func (h *ChatSocketHandler) originPatterns() []string {
	if len(h.allowedOrigins) == 0 {
		return []string{"*"}
	}
	return h.allowedOrigins
}

func (h *ChatSocketHandler) writeJSON(ws *websocket.Conn, v chatOutMessage) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Debug("failed to marshal socket message", "error", err)
		return
	}
	if err := ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		h.logger.Debug("websocket write error", "error", err)
	}
}
