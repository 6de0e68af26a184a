package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/phone-assistant/internal/automation"
	"github.com/wolfman30/phone-assistant/internal/booking"
)

type fakeScheduler struct {
	slots      []booking.Slot
	err        error
	lastAppt   booking.Appointment
	lastCust   booking.Customer
	lastID     string
	lastReason string
	lastStart  time.Time
	lastEnd    time.Time
	lastDur    int
}

func (f *fakeScheduler) Name() string { return "fake" }

func (f *fakeScheduler) CheckAvailability(_ context.Context, _ time.Time, d int) ([]booking.Slot, error) {
	f.lastDur = d
	return f.slots, f.err
}

func (f *fakeScheduler) BookAppointment(_ context.Context, appt booking.Appointment, cust booking.Customer) (string, error) {
	f.lastAppt, f.lastCust = appt, cust
	if f.err != nil {
		return "", f.err
	}
	return "appt-1", nil
}

func (f *fakeScheduler) CancelAppointment(_ context.Context, id, reason string) error {
	f.lastID, f.lastReason = id, reason
	return f.err
}

func (f *fakeScheduler) RescheduleAppointment(_ context.Context, id string, start, end time.Time) error {
	f.lastID, f.lastStart, f.lastEnd = id, start, end
	return f.err
}

type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) AppointmentBooked(context.Context, string, booking.Appointment, booking.Customer) error {
	n.events = append(n.events, "booked")
	return nil
}

func (n *fakeNotifier) AppointmentCancelled(context.Context, string, string) error {
	n.events = append(n.events, "cancelled")
	return automation.ErrNotConfigured
}

func (n *fakeNotifier) AppointmentRescheduled(context.Context, string, time.Time, time.Time) error {
	n.events = append(n.events, "rescheduled")
	return nil
}

func (n *fakeNotifier) CustomerCreated(context.Context, booking.Customer) error {
	n.events = append(n.events, "customer")
	return nil
}

type fakeStats struct {
	statuses []string
}

func (s *fakeStats) RecordAppointment(_ context.Context, status string) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func newSchedulingRouter(sched *fakeScheduler, notifier *fakeNotifier, stats *fakeStats) http.Handler {
	cfg := SchedulingHandlerConfig{DefaultDuration: 60}
	if sched != nil {
		cfg.Scheduler = sched
	}
	if notifier != nil {
		cfg.Notifier = notifier
	}
	if stats != nil {
		cfg.Stats = stats
	}
	h := NewSchedulingHandler(cfg)
	r := chi.NewRouter()
	r.Get("/scheduling/availability", h.Availability)
	r.Post("/scheduling/book", h.Book)
	r.Delete("/scheduling/appointment/{id}", h.Cancel)
	r.Patch("/scheduling/appointment/{id}", h.Reschedule)
	r.Get("/scheduling/services", h.Services)
	return r
}

func TestSchedulingAvailability(t *testing.T) {
	sched := &fakeScheduler{slots: []booking.Slot{{
		Start: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
	}}}
	router := newSchedulingRouter(sched, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduling/availability?date=2024-06-01&service=consultation", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if sched.lastDur != 30 {
		t.Fatalf("duration = %d, want consultation length", sched.lastDur)
	}
	var resp struct {
		Slots []map[string]any `json:"available_slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 1 || resp.Slots[0]["start_time"] != "09:00" {
		t.Fatalf("slots = %v", resp.Slots)
	}
}

func TestSchedulingAvailabilityBadDate(t *testing.T) {
	router := newSchedulingRouter(&fakeScheduler{}, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduling/availability?date=tomorrow", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSchedulingBackendFailureIsGeneric503(t *testing.T) {
	sched := &fakeScheduler{err: errors.New("crm API returned 500: stack trace")}
	router := newSchedulingRouter(sched, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduling/availability?date=2024-06-01", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "stack trace") {
		t.Fatalf("backend detail leaked: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"scheduling unavailable"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestSchedulingBook(t *testing.T) {
	sched := &fakeScheduler{}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}
	router := newSchedulingRouter(sched, notifier, stats)

	body := `{"customer":{"name":"Jane Doe","phone":"+15551234567"},"service":"full_service","date":"2024-06-01","time":"10:00"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/book", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"appointment_id":"appt-1"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if sched.lastAppt.Duration() != time.Hour {
		t.Fatalf("duration = %s", sched.lastAppt.Duration())
	}
	if sched.lastCust.Name != "Jane Doe" {
		t.Fatalf("customer = %+v", sched.lastCust)
	}
	if strings.Join(notifier.events, ",") != "booked,customer" {
		t.Fatalf("events = %v", notifier.events)
	}
	if len(stats.statuses) != 1 || stats.statuses[0] != "scheduled" {
		t.Fatalf("stats = %v", stats.statuses)
	}
}

func TestSchedulingBookValidation(t *testing.T) {
	router := newSchedulingRouter(&fakeScheduler{}, nil, nil)
	cases := []string{
		`not json`,
		`{"customer":{"name":""},"date":"2024-06-01","time":"10:00"}`,
		`{"customer":{"name":"Jane"},"date":"06/01/2024","time":"10:00"}`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduling/book", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestSchedulingCancelAndReschedule(t *testing.T) {
	sched := &fakeScheduler{}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}
	router := newSchedulingRouter(sched, notifier, stats)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/scheduling/appointment/a1?reason=sick", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	if sched.lastID != "a1" || sched.lastReason != "sick" {
		t.Fatalf("cancel = %s %s", sched.lastID, sched.lastReason)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/scheduling/appointment/a1", strings.NewReader(`{"date":"2024-06-03","time":"14:00","duration":30}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !sched.lastStart.Equal(time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)) || sched.lastEnd.Sub(sched.lastStart) != 30*time.Minute {
		t.Fatalf("reschedule = %s - %s", sched.lastStart, sched.lastEnd)
	}
	if strings.Join(stats.statuses, ",") != "cancelled,rescheduled" {
		t.Fatalf("stats = %v", stats.statuses)
	}
}

func TestSchedulingWithoutBackend(t *testing.T) {
	router := newSchedulingRouter(nil, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/scheduling/appointment/a1", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduling/services", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Consultation") {
		t.Fatalf("services status = %d body = %s", rec.Code, rec.Body.String())
	}
}
