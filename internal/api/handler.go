// Package api provides HTTP handlers for the clinicdesk API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/clinicdesk/internal/routing"
	"github.com/clinicdesk/clinicdesk/internal/store"
)

// maxBodyBytes bounds request bodies; conversation payloads are small.
const maxBodyBytes = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	coordinator *routing.Coordinator
	schedule    store.Schedule
	logger      *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(coordinator *routing.Coordinator, schedule store.Schedule, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		coordinator: coordinator,
		schedule:    schedule,
		logger:      logger,
	}
}

// RegisterRoutes mounts the API endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/conversations", h.HandleConversation)
		r.Get("/schedule/{date}", h.HandleSchedule)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
