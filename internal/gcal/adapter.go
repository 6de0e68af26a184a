package gcal

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/phone-assistant/internal/booking"
)

// Adapter exposes a Google Calendar as a booking backend.
type Adapter struct {
	client *Client
}

func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

var _ booking.Adapter = (*Adapter)(nil)

// Name returns "google_calendar".
func (a *Adapter) Name() string { return "google_calendar" }

func (a *Adapter) CheckAvailability(ctx context.Context, date time.Time, durationMinutes int) ([]booking.Slot, error) {
	return a.client.FindAvailableSlots(ctx, date, durationMinutes)
}

// BookAppointment creates an event titled "<service> - <name>" with the
// caller's details in the description.
func (a *Adapter) BookAppointment(ctx context.Context, appt booking.Appointment, customer booking.Customer) (string, error) {
	notes := appt.Notes
	if notes == "" {
		notes = "None"
	}
	ev, err := a.client.CreateEvent(ctx, EventInput{
		Title: fmt.Sprintf("%s - %s", appt.ServiceType, customer.Name),
		Description: fmt.Sprintf("%s\n\nCustomer: %s\nPhone: %s\nEmail: %s\nNotes: %s",
			booking.Description(appt.ServiceType), customer.Name, customer.Phone, customer.Email, notes),
		Start:         appt.StartTime,
		End:           appt.EndTime,
		AttendeeEmail: customer.Email,
	})
	if err != nil {
		return "", err
	}
	return ev.Id, nil
}

// CancelAppointment deletes the event. Calendar events carry no cancellation
// reason, so it is only logged.
func (a *Adapter) CancelAppointment(ctx context.Context, id, reason string) error {
	if err := a.client.DeleteEvent(ctx, id); err != nil {
		return err
	}
	if reason != "" {
		a.client.logger.Info("gcal event cancelled", "event_id", id, "reason", reason)
	}
	return nil
}

func (a *Adapter) RescheduleAppointment(ctx context.Context, id string, start, end time.Time) error {
	_, err := a.client.MoveEvent(ctx, id, start, end)
	return err
}
