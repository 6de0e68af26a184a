package automation

import (
	"context"
	"time"

	"github.com/wolfman30/phone-assistant/internal/booking"
)

const (
	EventAppointmentBooked      = "appointment_booked"
	EventAppointmentCancelled   = "appointment_cancelled"
	EventAppointmentRescheduled = "appointment_rescheduled"
	EventCustomerCreated        = "customer_created"
	EventCallEnded              = "call_ended"
	EventNotification           = "notification"
)

// AppointmentBooked announces a new booking.
func (c *Client) AppointmentBooked(ctx context.Context, appointmentID string, appt booking.Appointment, customer booking.Customer) error {
	return c.Trigger(ctx, EventAppointmentBooked, map[string]any{
		"appointment_id":   appointmentID,
		"customer_name":    customer.Name,
		"customer_phone":   customer.Phone,
		"customer_email":   customer.Email,
		"service_type":     appt.ServiceType,
		"appointment_date": appt.StartTime.Format("2006-01-02"),
		"appointment_time": appt.StartTime.Format("15:04"),
		"start_time":       appt.StartTime.Format(time.RFC3339),
		"end_time":         appt.EndTime.Format(time.RFC3339),
		"notes":            appt.Notes,
		"booking_source":   "phone_call",
	})
}

// AppointmentCancelled announces a cancellation.
func (c *Client) AppointmentCancelled(ctx context.Context, appointmentID, reason string) error {
	return c.Trigger(ctx, EventAppointmentCancelled, map[string]any{
		"appointment_id":      appointmentID,
		"cancellation_reason": reason,
	})
}

// AppointmentRescheduled announces new times for an appointment.
func (c *Client) AppointmentRescheduled(ctx context.Context, appointmentID string, start, end time.Time) error {
	return c.Trigger(ctx, EventAppointmentRescheduled, map[string]any{
		"appointment_id": appointmentID,
		"start_time":     start.Format(time.RFC3339),
		"end_time":       end.Format(time.RFC3339),
	})
}

// CustomerCreated announces a first-time caller.
func (c *Client) CustomerCreated(ctx context.Context, customer booking.Customer) error {
	return c.Trigger(ctx, EventCustomerCreated, map[string]any{
		"customer_id":    customer.ID,
		"customer_name":  customer.Name,
		"customer_phone": customer.Phone,
		"customer_email": customer.Email,
	})
}

// CallEnded announces the end of a voice call.
func (c *Client) CallEnded(ctx context.Context, callID, provider string, durationSeconds int, summary, outcome string) error {
	return c.Trigger(ctx, EventCallEnded, map[string]any{
		"call_id":          callID,
		"voice_provider":   provider,
		"duration_seconds": durationSeconds,
		"summary":          summary,
		"outcome":          outcome,
	})
}

// Notify sends a free-form notification to the workflow.
func (c *Client) Notify(ctx context.Context, kind, message, recipient, priority string) error {
	if priority == "" {
		priority = "normal"
	}
	return c.Trigger(ctx, EventNotification, map[string]any{
		"type":      kind,
		"message":   message,
		"recipient": recipient,
		"priority":  priority,
	})
}
