package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/phone-assistant/internal/automation"
	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/internal/voiceai"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

// bookingNotifier is the slice of the automation client used after writes.
type bookingNotifier interface {
	voiceai.EventNotifier
	CustomerCreated(ctx context.Context, customer booking.Customer) error
}

type appointmentRecorder interface {
	RecordAppointment(ctx context.Context, status string) error
}

// SchedulingHandlerConfig wires SchedulingHandler.
type SchedulingHandlerConfig struct {
	Scheduler       booking.Adapter
	Services        voiceai.ServiceSource
	Notifier        bookingNotifier
	Stats           appointmentRecorder
	Location        *time.Location
	DefaultDuration int
	Logger          *logging.Logger
}

// SchedulingHandler serves the operator scheduling endpoints against the
// configured booking backend.
type SchedulingHandler struct {
	scheduler       booking.Adapter
	services        voiceai.ServiceSource
	notifier        bookingNotifier
	stats           appointmentRecorder
	loc             *time.Location
	defaultDuration int
	logger          *logging.Logger
}

func NewSchedulingHandler(cfg SchedulingHandlerConfig) *SchedulingHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 60
	}
	if cfg.Services == nil {
		cfg.Services = voiceai.StaticServices(voiceai.DefaultServices)
	}
	return &SchedulingHandler{
		scheduler:       cfg.Scheduler,
		services:        cfg.Services,
		notifier:        cfg.Notifier,
		stats:           cfg.Stats,
		loc:             cfg.Location,
		defaultDuration: cfg.DefaultDuration,
		logger:          cfg.Logger,
	}
}

// Availability handles GET /scheduling/availability?date=YYYY-MM-DD&service=name.
func (h *SchedulingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	day, err := time.ParseInLocation("2006-01-02", date, h.loc)
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if h.scheduler == nil {
		unavailable(w, "scheduling")
		return
	}
	duration := h.duration(r.Context(), r.URL.Query().Get("service"), r.URL.Query().Get("duration"))

	slots, err := h.scheduler.CheckAvailability(r.Context(), day, duration)
	if err != nil {
		h.logger.Error("availability check failed", "backend", h.scheduler.Name(), "date", date, "error", err)
		unavailable(w, "scheduling")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"date":            date,
		"duration":        duration,
		"available_slots": voiceai.FormatSlots(slots, h.loc),
	})
}

type bookRequest struct {
	Customer struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
		Notes string `json:"notes"`
	} `json:"customer"`
	Service  string `json:"service"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Notes    string `json:"notes"`
}

// Book handles POST /scheduling/book.
func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		jsonError(w, "customer.name is required", http.StatusBadRequest)
		return
	}
	if req.Service == "" {
		req.Service = "Consultation"
	}
	start, err := booking.ParseDateTime(req.Date, req.Time, h.loc)
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD and time HH:MM", http.StatusBadRequest)
		return
	}
	duration := req.Duration
	if duration <= 0 {
		duration = h.duration(r.Context(), req.Service, "")
	}
	appt := booking.Appointment{
		ServiceType: req.Service,
		StartTime:   start,
		EndTime:     start.Add(time.Duration(duration) * time.Minute),
		Notes:       req.Notes,
	}
	if err := appt.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.scheduler == nil {
		unavailable(w, "scheduling")
		return
	}
	customer := booking.Customer{
		Name:  req.Customer.Name,
		Phone: req.Customer.Phone,
		Email: req.Customer.Email,
		Notes: req.Customer.Notes,
	}

	id, err := h.scheduler.BookAppointment(r.Context(), appt, customer)
	if err != nil {
		h.logger.Error("booking failed", "backend", h.scheduler.Name(), "error", err)
		unavailable(w, "scheduling")
		return
	}
	h.record(r.Context(), "scheduled")
	if h.notifier != nil {
		h.notify("appointment_booked", h.notifier.AppointmentBooked(r.Context(), id, appt, customer))
		h.notify("customer_created", h.notifier.CustomerCreated(r.Context(), customer))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":        true,
		"appointment_id": id,
		"start_time":     appt.StartTime.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
	})
}

// Cancel handles DELETE /scheduling/appointment/{id}. The reason may be given
// as a query parameter.
func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		jsonError(w, "appointment id is required", http.StatusBadRequest)
		return
	}
	if h.scheduler == nil {
		unavailable(w, "scheduling")
		return
	}
	reason := r.URL.Query().Get("reason")
	if err := h.scheduler.CancelAppointment(r.Context(), id, reason); err != nil {
		h.logger.Error("cancellation failed", "backend", h.scheduler.Name(), "appointment_id", id, "error", err)
		unavailable(w, "scheduling")
		return
	}
	h.record(r.Context(), "cancelled")
	if h.notifier != nil {
		h.notify("appointment_cancelled", h.notifier.AppointmentCancelled(r.Context(), id, reason))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "appointment_id": id})
}

type rescheduleRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Service  string `json:"service"`
	Duration int    `json:"duration"`
}

// Reschedule handles PATCH /scheduling/appointment/{id}.
func (h *SchedulingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	start, err := booking.ParseDateTime(req.Date, req.Time, h.loc)
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD and time HH:MM", http.StatusBadRequest)
		return
	}
	if h.scheduler == nil {
		unavailable(w, "scheduling")
		return
	}
	duration := req.Duration
	if duration <= 0 {
		duration = h.duration(r.Context(), req.Service, "")
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	if err := h.scheduler.RescheduleAppointment(r.Context(), id, start, end); err != nil {
		h.logger.Error("reschedule failed", "backend", h.scheduler.Name(), "appointment_id", id, "error", err)
		unavailable(w, "scheduling")
		return
	}
	h.record(r.Context(), "rescheduled")
	if h.notifier != nil {
		h.notify("appointment_rescheduled", h.notifier.AppointmentRescheduled(r.Context(), id, start, end))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"appointment_id": id,
		"start_time":     start.Format(time.RFC3339),
		"end_time":       end.Format(time.RFC3339),
	})
}

// Services handles GET /scheduling/services.
func (h *SchedulingHandler) Services(w http.ResponseWriter, r *http.Request) {
	services, err := h.services.Services(r.Context())
	if err != nil {
		h.logger.Error("service catalog failed", "error", err)
		unavailable(w, "services")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "services": services})
}

func (h *SchedulingHandler) duration(ctx context.Context, service, explicit string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(explicit)); err == nil && n > 0 {
		return n
	}
	if service != "" {
		if services, err := h.services.Services(ctx); err == nil {
			if svc, ok := voiceai.FindService(services, service); ok && svc.DurationMinutes > 0 {
				return svc.DurationMinutes
			}
		}
	}
	return h.defaultDuration
}

func (h *SchedulingHandler) record(ctx context.Context, status string) {
	if h.stats == nil {
		return
	}
	if err := h.stats.RecordAppointment(ctx, status); err != nil {
		h.logger.Warn("failed to record appointment stats", "status", status, "error", err)
	}
}

func (h *SchedulingHandler) notify(event string, err error) {
	if err == nil || isNotConfigured(err) {
		return
	}
	h.logger.Warn("automation trigger failed", "event", event, "error", err)
}

func isNotConfigured(err error) bool {
	return errors.Is(err, automation.ErrNotConfigured)
}
