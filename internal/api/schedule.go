package api

import (
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/clinicdesk/internal/domain"
)

// Schedule dates travel as DD-MM-YYYY throughout the system.
var dateParamPattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// dayView is the availability of every doctor on one date.
type dayView struct {
	Date    string              `json:"date"`
	Doctors map[string][]string `json:"doctors"`
}

// HandleSchedule returns the open slots for every doctor on the given day.
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !dateParamPattern.MatchString(date) {
		Error(w, http.StatusBadRequest, "date must be DD-MM-YYYY")
		return
	}

	view := dayView{Date: date, Doctors: make(map[string][]string, len(domain.Doctors))}
	for _, doctor := range domain.Doctors {
		times, err := h.schedule.Availability(r.Context(), date, doctor)
		if err != nil {
			h.logger.Error("schedule day view failed", "date", date, "doctor", doctor, "error", err)
			Error(w, http.StatusInternalServerError, "failed to load schedule")
			return
		}
		view.Doctors[doctor] = times
	}

	JSON(w, http.StatusOK, view)
}
