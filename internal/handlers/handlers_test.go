package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/clinicdesk/clinicdesk/internal/domain"
	"github.com/clinicdesk/clinicdesk/internal/routing"
	"github.com/clinicdesk/clinicdesk/internal/store"
)

// fakeSchedule implements store.Schedule with per-method hooks. Unset hooks
// return empty results.
type fakeSchedule struct {
	availabilityFn func(date, doctor string) ([]string, error)
	bySpecFn       func(date, spec string) (map[string][]string, error)
	checkSlotFn    func(date, timeOfDay, doctor, spec string) (domain.SlotStatus, error)
	bookFn         func(date, timeOfDay, doctor, patientID string) error
	cancelFn       func(date, timeOfDay, doctor, patientID string) error
	rescheduleFn   func(oldDate, oldTime, newDate, newTime, doctor, patientID string) error
}

func (f *fakeSchedule) Availability(_ context.Context, date, doctor string) ([]string, error) {
	if f.availabilityFn == nil {
		return nil, nil
	}
	return f.availabilityFn(date, doctor)
}

func (f *fakeSchedule) AvailabilityBySpecialization(_ context.Context, date, spec string) (map[string][]string, error) {
	if f.bySpecFn == nil {
		return nil, nil
	}
	return f.bySpecFn(date, spec)
}

func (f *fakeSchedule) CheckSlot(_ context.Context, date, timeOfDay, doctor, spec string) (domain.SlotStatus, error) {
	if f.checkSlotFn == nil {
		return domain.SlotStatus{}, nil
	}
	return f.checkSlotFn(date, timeOfDay, doctor, spec)
}

func (f *fakeSchedule) Book(_ context.Context, date, timeOfDay, doctor, patientID string) error {
	if f.bookFn == nil {
		return nil
	}
	return f.bookFn(date, timeOfDay, doctor, patientID)
}

func (f *fakeSchedule) Cancel(_ context.Context, date, timeOfDay, doctor, patientID string) error {
	if f.cancelFn == nil {
		return nil
	}
	return f.cancelFn(date, timeOfDay, doctor, patientID)
}

func (f *fakeSchedule) Reschedule(_ context.Context, oldDate, oldTime, newDate, newTime, doctor, patientID string) error {
	if f.rescheduleFn == nil {
		return nil
	}
	return f.rescheduleFn(oldDate, oldTime, newDate, newTime, doctor, patientID)
}

func (f *fakeSchedule) Seed(_ context.Context, _ []string) error { return nil }

func (f *fakeSchedule) GetConversation(_ context.Context, _ string) ([]domain.StoredMessage, error) {
	return nil, nil
}

func (f *fakeSchedule) SaveConversation(_ context.Context, _ string, _ []domain.StoredMessage) error {
	return nil
}

func (f *fakeSchedule) Ping(_ context.Context) error { return nil }
func (f *fakeSchedule) Close() error                 { return nil }

var _ store.Schedule = (*fakeSchedule)(nil)

func TestInformationHandlerDoctorAvailability(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{
		availabilityFn: func(date, doctor string) ([]string, error) {
			if date != "01-02-2025" || doctor != "john doe" {
				t.Errorf("Availability(%q, %q), want (01-02-2025, john doe)", date, doctor)
			}
			return []string{"08:00", "08:30", "10:00"}, nil
		},
	}
	h := NewInformationHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "when is dr. doe available on 01-02-2025?")
	got, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(got.Log) != len(s.Log)+1 {
		t.Fatalf("appended %d turns, want exactly 1", len(got.Log)-len(s.Log))
	}
	last, _ := got.LastTurn()
	want := "Dr. John Doe has slots at 8 AM, 8:30 AM, or 10 AM on 01-02-2025. Which one works for you?"
	if last.Text != want {
		t.Errorf("reply = %q, want %q", last.Text, want)
	}
	if got.PendingQuery != "" {
		t.Errorf("pending query = %q, want consumed", got.PendingQuery)
	}
}

func TestInformationHandlerSlotCheckAvailable(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{
		checkSlotFn: func(_, _, _, _ string) (domain.SlotStatus, error) {
			return domain.SlotStatus{Available: true}, nil
		},
	}
	h := NewInformationHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "is dr. doe free at 10:00 on 01-02-2025?")
	got, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	last, _ := got.LastTurn()
	want := "Yes! That time is available. So that's 01-02-2025 at 10 AM with Dr. John Doe, right? Should I go ahead and book it?"
	if last.Text != want {
		t.Errorf("reply = %q, want %q", last.Text, want)
	}
}

func TestInformationHandlerSlotCheckAlternatives(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{
		checkSlotFn: func(_, _, _, _ string) (domain.SlotStatus, error) {
			return domain.SlotStatus{
				Available:    false,
				Alternatives: map[string][]string{"john doe": {"08:00", "09:00"}},
			}, nil
		},
	}
	h := NewInformationHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "is dr. doe free at 10:00 on 01-02-2025?")
	got, _ := h.Handle(context.Background(), s)
	last, _ := got.LastTurn()
	if !strings.Contains(last.Text, "isn't available on that day") {
		t.Errorf("reply = %q, want unavailable with alternatives", last.Text)
	}
	if !strings.Contains(last.Text, "8 AM, or 9 AM") {
		t.Errorf("reply = %q, want alternative times listed", last.Text)
	}
}

func TestInformationHandlerNoSpecializationAvailability(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{
		bySpecFn: func(_, spec string) (map[string][]string, error) {
			if spec != "oral_surgeon" {
				t.Errorf("spec = %q, want oral_surgeon", spec)
			}
			return nil, nil
		},
	}
	h := NewInformationHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "any oral surgeon free on 01-02-2025?")
	got, _ := h.Handle(context.Background(), s)
	last, _ := got.LastTurn()
	want := "No availability in the entire day for oral surgeon on 01-02-2025."
	if last.Text != want {
		t.Errorf("reply = %q, want %q", last.Text, want)
	}
}

func TestInformationHandlerAsksForMissingDate(t *testing.T) {
	t.Parallel()

	h := NewInformationHandler(&fakeSchedule{}, nil)
	s := domain.NewSession("123456789", nil, "is dr. doe around?")
	got, _ := h.Handle(context.Background(), s)
	last, _ := got.LastTurn()
	if !strings.Contains(last.Text, "What date") {
		t.Errorf("reply = %q, want a date prompt", last.Text)
	}
}

func TestInformationHandlerDegradesOnStoreError(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{
		availabilityFn: func(_, _ string) ([]string, error) {
			return nil, errors.New("db closed")
		},
	}
	h := NewInformationHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "when is dr. doe available on 01-02-2025?")
	got, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v, store failures must degrade, not propagate", err)
	}
	last, _ := got.LastTurn()
	if last.Text != degradedReply {
		t.Errorf("reply = %q, want %q", last.Text, degradedReply)
	}
}

func TestInformationHandlerSkipsReAnswer(t *testing.T) {
	t.Parallel()

	calls := 0
	sched := &fakeSchedule{
		availabilityFn: func(_, _ string) ([]string, error) {
			calls++
			return []string{"08:00"}, nil
		},
	}
	h := NewInformationHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "when is dr. doe available on 01-02-2025?")
	s, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	// Re-dispatch without new user input: the session comes back untouched.
	again, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(again.Log) != len(s.Log) {
		t.Errorf("re-dispatch appended %d turns, want 0", len(again.Log)-len(s.Log))
	}
	if calls != 1 {
		t.Errorf("store calls = %d, want 1", calls)
	}
}

func TestBookingHandlerBooksDirectRequest(t *testing.T) {
	t.Parallel()

	var booked []string
	sched := &fakeSchedule{
		bookFn: func(date, timeOfDay, doctor, patientID string) error {
			booked = []string{date, timeOfDay, doctor, patientID}
			return nil
		},
	}
	h := NewBookingHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "book me with dr. doe at 10:00 on 01-02-2025")
	got, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	want := []string{"01-02-2025", "10:00", "john doe", "123456789"}
	for i := range want {
		if booked[i] != want[i] {
			t.Fatalf("Book() args = %v, want %v", booked, want)
		}
	}
	last, _ := got.LastTurn()
	if !strings.Contains(last.Text, "Appointment successfully booked") {
		t.Errorf("reply = %q, want success confirmation", last.Text)
	}
	if got.PendingQuery != routing.BookingCompleteMarker {
		t.Errorf("pending query = %q, want the completion marker", got.PendingQuery)
	}
}

func TestBookingHandlerBooksFromConfirmation(t *testing.T) {
	t.Parallel()

	var booked []string
	sched := &fakeSchedule{
		bookFn: func(date, timeOfDay, doctor, patientID string) error {
			booked = []string{date, timeOfDay, doctor}
			return nil
		},
	}
	h := NewBookingHandler(sched, nil)

	// The slot details live earlier in the conversation; "yes" carries none.
	prior := []domain.Turn{
		domain.UserTurn("can I book dr. doe at 10:00 on 01-02-2025?"),
		domain.AssistantTurn(domain.ActorInformation,
			"Yes! That time is available. So that's 01-02-2025 at 10 AM with Dr. John Doe, right? Should I go ahead and book it?"),
	}
	s := domain.NewSession("123456789", prior, "yes")
	got, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	want := []string{"01-02-2025", "10:00", "john doe"}
	for i := range want {
		if booked[i] != want[i] {
			t.Fatalf("Book() args = %v, want %v", booked, want)
		}
	}
	if got.PendingQuery != routing.BookingCompleteMarker {
		t.Errorf("pending query = %q, want the completion marker", got.PendingQuery)
	}
}

func TestBookingHandlerSlotTaken(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{
		bookFn: func(_, _, _, _ string) error { return store.ErrSlotUnavailable },
	}
	h := NewBookingHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "book me with dr. doe at 10:00 on 01-02-2025")
	got, _ := h.Handle(context.Background(), s)
	last, _ := got.LastTurn()
	if last.Text != "No available appointments for that time." {
		t.Errorf("reply = %q", last.Text)
	}
	if got.PendingQuery == routing.BookingCompleteMarker {
		t.Error("failed booking must not set the completion marker")
	}
}

func TestBookingHandlerCancel(t *testing.T) {
	t.Parallel()

	cancelled := false
	sched := &fakeSchedule{
		cancelFn: func(date, timeOfDay, doctor, patientID string) error {
			cancelled = true
			return nil
		},
	}
	h := NewBookingHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "cancel my appointment with dr. doe at 10:00 on 01-02-2025")
	got, _ := h.Handle(context.Background(), s)
	if !cancelled {
		t.Fatal("Cancel() was not called")
	}
	last, _ := got.LastTurn()
	if last.Text != cancelledReply {
		t.Errorf("reply = %q, want %q", last.Text, cancelledReply)
	}
}

func TestBookingHandlerCancelUnknownAppointment(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{
		cancelFn: func(_, _, _, _ string) error { return store.ErrNoSuchAppointment },
	}
	h := NewBookingHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "cancel my appointment with dr. doe at 10:00 on 01-02-2025")
	got, _ := h.Handle(context.Background(), s)
	last, _ := got.LastTurn()
	if last.Text != "You do not have any appointment with these details." {
		t.Errorf("reply = %q", last.Text)
	}
}

func TestBookingHandlerReschedule(t *testing.T) {
	t.Parallel()

	var moved []string
	sched := &fakeSchedule{
		rescheduleFn: func(oldDate, oldTime, newDate, newTime, doctor, patientID string) error {
			moved = []string{oldDate, oldTime, newDate, newTime, doctor}
			return nil
		},
	}
	h := NewBookingHandler(sched, nil)

	s := domain.NewSession("123456789", nil,
		"reschedule my dr. doe appointment from 01-02-2025 at 10:00 to 05-02-2025 at 14:30")
	got, _ := h.Handle(context.Background(), s)
	want := []string{"01-02-2025", "10:00", "05-02-2025", "14:30", "john doe"}
	for i := range want {
		if moved[i] != want[i] {
			t.Fatalf("Reschedule() args = %v, want %v", moved, want)
		}
	}
	last, _ := got.LastTurn()
	if !strings.Contains(last.Text, "successfully rescheduled") {
		t.Errorf("reply = %q, want reschedule confirmation", last.Text)
	}
}

func TestBookingHandlerAsksForMissingDetails(t *testing.T) {
	t.Parallel()

	h := NewBookingHandler(&fakeSchedule{}, nil)
	s := domain.NewSession("123456789", nil, "I want to book an appointment")
	got, _ := h.Handle(context.Background(), s)
	last, _ := got.LastTurn()
	if !strings.Contains(last.Text, "Which date, time and doctor") {
		t.Errorf("reply = %q, want a prompt for details", last.Text)
	}
	if got.PendingQuery == routing.BookingCompleteMarker {
		t.Error("incomplete request must not set the completion marker")
	}
}

func TestBookingHandlerSkipsAfterCompletion(t *testing.T) {
	t.Parallel()

	calls := 0
	sched := &fakeSchedule{
		bookFn: func(_, _, _, _ string) error {
			calls++
			return nil
		},
	}
	h := NewBookingHandler(sched, nil)

	s := domain.NewSession("123456789", nil, "book me with dr. doe at 10:00 on 01-02-2025")
	s, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	again, err := h.Handle(context.Background(), s)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(again.Log) != len(s.Log) {
		t.Errorf("re-dispatch appended %d turns, want 0", len(again.Log)-len(s.Log))
	}
	if calls != 1 {
		t.Errorf("Book() calls = %d, want 1", calls)
	}
}
