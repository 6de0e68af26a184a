package voiceai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/phone-assistant/internal/automation"
	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const (
	FuncBookAppointment       = "book_appointment"
	FuncCheckAvailability     = "check_availability"
	FuncGetServices           = "get_services"
	FuncGetPricing            = "get_pricing"
	FuncCancelAppointment     = "cancel_appointment"
	FuncRescheduleAppointment = "reschedule_appointment"

	statusScheduled   = "scheduled"
	statusCancelled   = "cancelled"
	statusRescheduled = "rescheduled"
)

// ErrUnknownFunction is returned by Execute for a function name it does not handle.
var ErrUnknownFunction = errors.New("voiceai: unknown function")

// CallTracker records booking outcomes against calls.
type CallTracker interface {
	MarkBooked(ctx context.Context, callID, appointmentID string) error
	RecordAppointment(ctx context.Context, status string) error
}

// EventNotifier forwards booking events to automation workflows.
type EventNotifier interface {
	AppointmentBooked(ctx context.Context, appointmentID string, appt booking.Appointment, customer booking.Customer) error
	AppointmentCancelled(ctx context.Context, appointmentID, reason string) error
	AppointmentRescheduled(ctx context.Context, appointmentID string, start, end time.Time) error
}

// FunctionsConfig wires the dispatcher. Scheduler is required; the rest are
// optional.
type FunctionsConfig struct {
	Scheduler       booking.Adapter
	Services        ServiceSource
	Calls           CallTracker
	Notifier        EventNotifier
	Location        *time.Location
	DefaultDuration int
	Logger          *logging.Logger
}

// Functions executes assistant tool calls against the scheduling backend.
type Functions struct {
	scheduler       booking.Adapter
	services        ServiceSource
	calls           CallTracker
	notifier        EventNotifier
	loc             *time.Location
	defaultDuration int
	logger          *logging.Logger
}

// NewFunctions builds the dispatcher.
func NewFunctions(cfg FunctionsConfig) *Functions {
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
		cfg.Services = StaticServices(DefaultServices)
	}
	return &Functions{
		scheduler:       cfg.Scheduler,
		services:        cfg.Services,
		calls:           cfg.Calls,
		notifier:        cfg.Notifier,
		loc:             cfg.Location,
		defaultDuration: cfg.DefaultDuration,
		logger:          cfg.Logger,
	}
}

// Execute runs the named function for callID. Business failures come back as
// a result with status "error" so the assistant can tell the caller; only an
// unknown function name returns an error.
func (f *Functions) Execute(ctx context.Context, callID, name string, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	f.logger.Info("voice function call", "function", name, "call_id", callID)

	switch name {
	case FuncBookAppointment:
		return f.bookAppointment(ctx, callID, args), nil
	case FuncCheckAvailability:
		return f.checkAvailability(ctx, args), nil
	case FuncGetServices:
		return f.getServices(ctx), nil
	case FuncGetPricing:
		return f.getPricing(ctx, args), nil
	case FuncCancelAppointment:
		return f.cancelAppointment(ctx, args), nil
	case FuncRescheduleAppointment:
		return f.rescheduleAppointment(ctx, args), nil
	default:
		f.logger.Warn("unknown voice function", "function", name, "call_id", callID)
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
}

func (f *Functions) bookAppointment(ctx context.Context, callID string, args map[string]any) map[string]any {
	name := argString(args, "customer_name")
	phone := argString(args, "customer_phone")
	service := argString(args, "service_type")
	date := argString(args, "preferred_date")
	clock := argString(args, "preferred_time")
	if name == "" || phone == "" || service == "" || date == "" || clock == "" {
		return failure("Missing required booking information")
	}
	if f.scheduler == nil {
		return failure("Scheduling is not available")
	}

	start, err := booking.ParseDateTime(date, clock, f.loc)
	if err != nil {
		return failure("Invalid date or time format")
	}
	duration := f.durationFor(ctx, service, args)
	appt := booking.Appointment{
		ServiceType: service,
		StartTime:   start,
		EndTime:     start.Add(time.Duration(duration) * time.Minute),
		Notes:       argString(args, "notes"),
	}
	if err := appt.Validate(); err != nil {
		return failure("Invalid appointment details")
	}
	customer := booking.Customer{Name: name, Phone: phone, Email: argString(args, "customer_email")}

	id, err := f.scheduler.BookAppointment(ctx, appt, customer)
	if err != nil {
		f.logger.Error("voice booking failed", "call_id", callID, "backend", f.scheduler.Name(), "error", err)
		return failure("Failed to book appointment")
	}

	if f.calls != nil {
		if err := f.calls.MarkBooked(ctx, callID, id); err != nil {
			f.logger.Warn("failed to mark call booked", "call_id", callID, "error", err)
		}
		f.recordStatus(ctx, statusScheduled)
	}
	if f.notifier != nil {
		f.notify("appointment_booked", f.notifier.AppointmentBooked(ctx, id, appt, customer))
	}

	return map[string]any{
		"status":         "success",
		"appointment_id": id,
		"message":        fmt.Sprintf("Appointment booked successfully for %s on %s at %s", name, date, clock),
	}
}

func (f *Functions) checkAvailability(ctx context.Context, args map[string]any) map[string]any {
	date := argString(args, "date")
	if date == "" {
		return failure("Date is required")
	}
	if f.scheduler == nil {
		return failure("Scheduling is not available")
	}
	day, err := time.ParseInLocation("2006-01-02", date, f.loc)
	if err != nil {
		return failure("Invalid date format, expected YYYY-MM-DD")
	}
	duration := f.durationFor(ctx, argString(args, "service_type"), args)

	slots, err := f.scheduler.CheckAvailability(ctx, day, duration)
	if err != nil {
		f.logger.Error("voice availability check failed", "backend", f.scheduler.Name(), "error", err)
		return failure("Failed to check availability")
	}
	return map[string]any{
		"status":          "success",
		"date":            date,
		"available_slots": FormatSlots(slots, f.loc),
	}
}

func (f *Functions) getServices(ctx context.Context) map[string]any {
	services, err := f.catalog(ctx)
	if err != nil {
		return failure("Failed to get services")
	}
	return map[string]any{"status": "success", "services": services}
}

func (f *Functions) getPricing(ctx context.Context, args map[string]any) map[string]any {
	services, err := f.catalog(ctx)
	if err != nil {
		return failure("Failed to get pricing")
	}
	if name := argString(args, "service_type"); name != "" {
		if svc, ok := FindService(services, name); ok {
			return map[string]any{"status": "success", "service": svc.Name, "price": formatPrice(svc.Price)}
		}
	}
	pricing := make(map[string]string, len(services))
	for _, svc := range services {
		pricing[svc.Name] = formatPrice(svc.Price)
	}
	return map[string]any{"status": "success", "pricing": pricing}
}

func (f *Functions) cancelAppointment(ctx context.Context, args map[string]any) map[string]any {
	id := argString(args, "appointment_id")
	if id == "" {
		return failure("Appointment ID is required")
	}
	if f.scheduler == nil {
		return failure("Scheduling is not available")
	}
	reason := argString(args, "reason")
	if err := f.scheduler.CancelAppointment(ctx, id, reason); err != nil {
		f.logger.Error("voice cancellation failed", "appointment_id", id, "error", err)
		return failure("Failed to cancel appointment")
	}
	f.recordStatus(ctx, statusCancelled)
	if f.notifier != nil {
		f.notify("appointment_cancelled", f.notifier.AppointmentCancelled(ctx, id, reason))
	}
	return map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Appointment %s cancelled successfully", id),
	}
}

func (f *Functions) rescheduleAppointment(ctx context.Context, args map[string]any) map[string]any {
	id := argString(args, "appointment_id")
	date := argString(args, "new_date")
	clock := argString(args, "new_time")
	if id == "" || date == "" || clock == "" {
		return failure("Missing required fields for rescheduling")
	}
	if f.scheduler == nil {
		return failure("Scheduling is not available")
	}
	start, err := booking.ParseDateTime(date, clock, f.loc)
	if err != nil {
		return failure("Invalid date or time format")
	}
	end := start.Add(time.Duration(f.durationFor(ctx, argString(args, "service_type"), args)) * time.Minute)

	if err := f.scheduler.RescheduleAppointment(ctx, id, start, end); err != nil {
		f.logger.Error("voice reschedule failed", "appointment_id", id, "error", err)
		return failure("Failed to reschedule appointment")
	}
	f.recordStatus(ctx, statusRescheduled)
	if f.notifier != nil {
		f.notify("appointment_rescheduled", f.notifier.AppointmentRescheduled(ctx, id, start, end))
	}
	return map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Appointment %s rescheduled to %s at %s", id, date, clock),
	}
}

// durationFor resolves the appointment length: an explicit "duration"
// argument, then the catalog entry for service, then the configured default.
func (f *Functions) durationFor(ctx context.Context, service string, args map[string]any) int {
	if d := argInt(args, "duration"); d > 0 {
		return d
	}
	if service != "" {
		if services, err := f.catalog(ctx); err == nil {
			if svc, ok := FindService(services, service); ok && svc.DurationMinutes > 0 {
				return svc.DurationMinutes
			}
		}
	}
	return f.defaultDuration
}

func (f *Functions) catalog(ctx context.Context) ([]Service, error) {
	services, err := f.services.Services(ctx)
	if err != nil {
		f.logger.Warn("service catalog unavailable, using defaults", "error", err)
		return DefaultServices, nil
	}
	return services, nil
}

func (f *Functions) recordStatus(ctx context.Context, status string) {
	if f.calls == nil {
		return
	}
	if err := f.calls.RecordAppointment(ctx, status); err != nil {
		f.logger.Warn("failed to record appointment stats", "status", status, "error", err)
	}
}

func (f *Functions) notify(event string, err error) {
	if err == nil || errors.Is(err, automation.ErrNotConfigured) {
		return
	}
	f.logger.Warn("automation trigger failed", "event", event, "error", err)
}

// FormatSlots renders slots as HH:MM pairs in loc. Slots the backend returned
// without parseable times are passed through as received.
func FormatSlots(slots []booking.Slot, loc *time.Location) []map[string]any {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]map[string]any, 0, len(slots))
	for _, slot := range slots {
		if slot.Start.IsZero() {
			if slot.Raw != nil {
				out = append(out, slot.Raw)
			}
			continue
		}
		out = append(out, map[string]any{
			"start_time": slot.Start.In(loc).Format("15:04"),
			"end_time":   slot.End.In(loc).Format("15:04"),
			"available":  true,
		})
	}
	return out
}

func failure(msg string) map[string]any {
	return map[string]any{"status": "error", "error": msg}
}

func formatPrice(p float64) string {
	return "$" + strconv.FormatFloat(p, 'f', -1, 64) + "/session"
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
