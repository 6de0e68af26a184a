package crm

import (
	"context"
	"time"

	"github.com/wolfman30/phone-assistant/internal/booking"
)

// Adapter exposes the CRM as a booking backend.
type Adapter struct {
	client *Client
}

// NewAdapter wraps client as a booking.Adapter.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

var _ booking.Adapter = (*Adapter)(nil)

// Name returns "crm".
func (a *Adapter) Name() string { return "crm" }

// CheckAvailability maps CRM slot records to slots. Records whose times
// cannot be parsed are kept with zero times and the raw record attached.
func (a *Adapter) CheckAvailability(ctx context.Context, date time.Time, durationMinutes int) ([]booking.Slot, error) {
	records, err := a.client.CheckAvailability(ctx, date, durationMinutes)
	if err != nil {
		return nil, err
	}
	slots := make([]booking.Slot, 0, len(records))
	for _, rec := range records {
		slot := booking.Slot{DurationMinutes: durationMinutes, Raw: rec}
		slot.Start = parseRecordTime(rec, "start_time", "start")
		slot.End = parseRecordTime(rec, "end_time", "end")
		if slot.DurationMinutes <= 0 && !slot.Start.IsZero() && slot.End.After(slot.Start) {
			slot.DurationMinutes = int(slot.End.Sub(slot.Start) / time.Minute)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (a *Adapter) BookAppointment(ctx context.Context, appt booking.Appointment, customer booking.Customer) (string, error) {
	return a.client.BookAppointmentFromPhoneCall(ctx, appt, customer)
}

func (a *Adapter) CancelAppointment(ctx context.Context, id, reason string) error {
	return a.client.CancelAppointment(ctx, id, reason)
}

func (a *Adapter) RescheduleAppointment(ctx context.Context, id string, start, end time.Time) error {
	return a.client.RescheduleAppointment(ctx, id, start.Format(time.RFC3339), end.Format(time.RFC3339))
}

func parseRecordTime(rec Record, keys ...string) time.Time {
	for _, key := range keys {
		raw := rec.String(key)
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
