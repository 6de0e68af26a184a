package calcom

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/phone-assistant/internal/booking"
)

// ErrNoEventTypes is returned when the account has nothing bookable.
var ErrNoEventTypes = errors.New("calcom: no event types available")

// Adapter exposes Cal.com as a booking backend.
type Adapter struct {
	client *Client
	// eventTypeID is used for availability; zero means the first event type.
	eventTypeID int
}

// NewAdapter wraps client. eventTypeID may be zero.
func NewAdapter(client *Client, eventTypeID int) *Adapter {
	return &Adapter{client: client, eventTypeID: eventTypeID}
}

var _ booking.Adapter = (*Adapter)(nil)

// Name returns "calcom".
func (a *Adapter) Name() string { return "calcom" }

func (a *Adapter) CheckAvailability(ctx context.Context, date time.Time, durationMinutes int) ([]booking.Slot, error) {
	eventTypeID := a.eventTypeID
	if eventTypeID == 0 {
		types, err := a.client.GetEventTypes(ctx)
		if err != nil {
			return nil, err
		}
		if len(types) == 0 {
			return nil, ErrNoEventTypes
		}
		eventTypeID = types[0].ID
	}
	raw, err := a.client.GetAvailability(ctx, eventTypeID, date)
	if err != nil {
		return nil, err
	}
	slots := make([]booking.Slot, 0, len(raw))
	for _, s := range raw {
		start := parseTime(s.Start)
		if start.IsZero() {
			start = parseTime(s.Time)
		}
		end := parseTime(s.End)
		if end.IsZero() && !start.IsZero() && durationMinutes > 0 {
			end = start.Add(time.Duration(durationMinutes) * time.Minute)
		}
		slots = append(slots, booking.Slot{Start: start, End: end, DurationMinutes: durationMinutes})
	}
	return slots, nil
}

// BookAppointment picks the event type whose title contains the service type,
// falling back to the first event type.
func (a *Adapter) BookAppointment(ctx context.Context, appt booking.Appointment, customer booking.Customer) (string, error) {
	types, err := a.client.GetEventTypes(ctx)
	if err != nil {
		return "", err
	}
	eventType, ok := MatchEventType(types, appt.ServiceType)
	if !ok {
		return "", ErrNoEventTypes
	}
	created, err := a.client.CreateBooking(ctx, newBookingRequest(eventType.ID, appt, customer))
	if err != nil {
		return "", err
	}
	return strconv.Itoa(created.ID), nil
}

func (a *Adapter) CancelAppointment(ctx context.Context, id, reason string) error {
	return a.client.CancelBooking(ctx, id, reason)
}

func (a *Adapter) RescheduleAppointment(ctx context.Context, id string, start, end time.Time) error {
	return a.client.RescheduleBooking(ctx, id, start.Format(time.RFC3339), end.Format(time.RFC3339))
}

// MatchEventType returns the first event type whose title contains
// serviceType (case-insensitive), or the first event type.
func MatchEventType(types []EventType, serviceType string) (EventType, bool) {
	if len(types) == 0 {
		return EventType{}, false
	}
	needle := strings.ToLower(strings.TrimSpace(serviceType))
	if needle != "" {
		for _, et := range types {
			if strings.Contains(strings.ToLower(et.Title), needle) {
				return et, true
			}
		}
	}
	return types[0], true
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
