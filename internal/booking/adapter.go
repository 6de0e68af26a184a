// Package booking defines the scheduling model shared by every backend the
// phone assistant can book into (CRM, Google Calendar, Cal.com).
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceTag marks every record the assistant writes to an external system.
const SourceTag = "phone_call_assistant"

// ErrInvalidAppointment is returned when an appointment cannot be booked as given.
var ErrInvalidAppointment = errors.New("booking: invalid appointment")

// Customer is the caller as collected during a phone call.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
	Notes string
}

// Appointment is a booking request or an existing booking.
type Appointment struct {
	ID          string
	CustomerID  string
	ServiceType string
	StartTime   time.Time
	EndTime     time.Time
	Notes       string
	Status      string
}

// Duration returns the appointment length.
func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// Validate checks the fields every backend needs.
func (a Appointment) Validate() error {
	if strings.TrimSpace(a.ServiceType) == "" {
		return fmt.Errorf("%w: service type required", ErrInvalidAppointment)
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return fmt.Errorf("%w: start and end time required", ErrInvalidAppointment)
	}
	if !a.EndTime.After(a.StartTime) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidAppointment)
	}
	return nil
}

// Slot is one bookable window.
type Slot struct {
	Start           time.Time
	End             time.Time
	DurationMinutes int
	// Raw keeps the backend record when the backend returns more than times.
	Raw map[string]any
}

// Adapter is implemented by every scheduling backend.
type Adapter interface {
	// Name returns the backend identifier (e.g. "crm", "google_calendar", "calcom").
	Name() string

	// CheckAvailability lists open slots on the given day.
	CheckAvailability(ctx context.Context, date time.Time, durationMinutes int) ([]Slot, error)

	// BookAppointment books the appointment for the customer and returns the
	// backend's appointment identifier.
	BookAppointment(ctx context.Context, appt Appointment, customer Customer) (string, error)

	CancelAppointment(ctx context.Context, id, reason string) error
	RescheduleAppointment(ctx context.Context, id string, start, end time.Time) error
}

// Title formats the display title used for appointments: "<name> - <service>".
func Title(customerName, serviceType string) string {
	return fmt.Sprintf("%s - %s", customerName, serviceType)
}

// Description formats the appointment description written to backends.
func Description(serviceType string) string {
	return "Phone call appointment for " + serviceType
}
