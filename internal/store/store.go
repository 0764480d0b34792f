// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/clinicdesk/clinicdesk/internal/domain"
)

// Sentinel errors surfaced by booking mutations.
var (
	// ErrSlotUnavailable means the requested slot is taken or does not exist.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrNoSuchAppointment means no booking matches the given details.
	ErrNoSuchAppointment = errors.New("no appointment with these details")
)

// Schedule is the appointment store contract consumed by the handlers. The
// implementation must serialize conflicting check-then-book operations per
// slot; callers get ErrSlotUnavailable instead of a double booking.
type Schedule interface {
	// Availability returns the free times (HH:MM, sorted) for a doctor on a
	// date (DD-MM-YYYY). Empty means no availability that day.
	Availability(ctx context.Context, date, doctorName string) ([]string, error)

	// AvailabilityBySpecialization returns free times per doctor for a
	// specialization on a date.
	AvailabilityBySpecialization(ctx context.Context, date, specialization string) (map[string][]string, error)

	// CheckSlot checks a specific date+time for a doctor or a
	// specialization and returns nearby alternatives when unavailable.
	CheckSlot(ctx context.Context, date, timeOfDay, doctorName, specialization string) (domain.SlotStatus, error)

	// Book marks the slot unavailable for the patient. Returns
	// ErrSlotUnavailable if it was already taken.
	Book(ctx context.Context, date, timeOfDay, doctorName, patientID string) error

	// Cancel frees a slot previously booked by the patient. Returns
	// ErrNoSuchAppointment when the booking does not match.
	Cancel(ctx context.Context, date, timeOfDay, doctorName, patientID string) error

	// Reschedule moves a booking to a new slot transactionally: the new slot
	// is verified and taken before the old one is released.
	Reschedule(ctx context.Context, oldDate, oldTime, newDate, newTime, doctorName, patientID string) error

	// Seed populates the schedule with open slots for the given dates.
	// Existing slots are left untouched.
	Seed(ctx context.Context, dates []string) error

	// GetConversation returns the persisted turn log for a patient, or nil.
	GetConversation(ctx context.Context, patientID string) ([]domain.StoredMessage, error)

	// SaveConversation replaces the persisted turn log for a patient.
	SaveConversation(ctx context.Context, patientID string, log []domain.StoredMessage) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close closes the underlying database.
	Close() error
}
