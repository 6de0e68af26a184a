// Package gcal books phone-call appointments into a Google Calendar.
package gcal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const (
	defaultOpenHour  = 9
	defaultCloseHour = 17
	slotStep         = 30 * time.Minute
)

// Config selects the calendar and the bookable hours.
type Config struct {
	CredentialsPath string
	CalendarID      string
	Location        *time.Location
	OpenHour        int
	CloseHour       int
}

// EventInput describes an event to create.
type EventInput struct {
	Title         string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	Location      string
}

// Client wraps the Calendar v3 API for one calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
	openHour   int
	closeHour  int
	logger     *logging.Logger
	now        func() time.Time
}

// NewClient builds a calendar client. Credentials come from cfg.CredentialsPath
// unless opts already supply authentication.
func NewClient(ctx context.Context, cfg Config, logger *logging.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	clientOpts := []option.ClientOption{option.WithScopes(calendar.CalendarScope)}
	if path := strings.TrimSpace(cfg.CredentialsPath); path != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(path))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcal: new service: %w", err)
	}

	c := &Client{
		svc:        svc,
		calendarID: cfg.CalendarID,
		loc:        cfg.Location,
		openHour:   cfg.OpenHour,
		closeHour:  cfg.CloseHour,
		logger:     logger,
		now:        time.Now,
	}
	if c.calendarID == "" {
		c.calendarID = "primary"
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.openHour == 0 && c.closeHour == 0 {
		c.openHour, c.closeHour = defaultOpenHour, defaultCloseHour
	}
	return c, nil
}

// CreateEvent inserts an event with email (24h) and popup (10m) reminders.
func (c *Client) CreateEvent(ctx context.Context, in EventInput) (*calendar.Event, error) {
	title := in.Title
	if title == "" {
		title = "Phone Call Appointment"
	}
	ev := &calendar.Event{
		Summary:     title,
		Description: in.Description,
		Location:    in.Location,
		Start:       c.eventTime(in.Start),
		End:         c.eventTime(in.End),
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 10},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if in.AttendeeEmail != "" {
		ev.Attendees = []*calendar.EventAttendee{{Email: in.AttendeeEmail}}
	}

	created, err := c.svc.Events.Insert(c.calendarID, ev).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: create event: %w", err)
	}
	c.logger.Info("gcal event created", "event_id", created.Id)
	return created, nil
}

// GetEvent fetches an event by ID.
func (c *Client) GetEvent(ctx context.Context, id string) (*calendar.Event, error) {
	ev, err := c.svc.Events.Get(c.calendarID, id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: get event: %w", err)
	}
	return ev, nil
}

// MoveEvent changes an event's start and end.
func (c *Client) MoveEvent(ctx context.Context, id string, start, end time.Time) (*calendar.Event, error) {
	patch := &calendar.Event{Start: c.eventTime(start), End: c.eventTime(end)}
	ev, err := c.svc.Events.Patch(c.calendarID, id, patch).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: move event: %w", err)
	}
	c.logger.Info("gcal event moved", "event_id", id)
	return ev, nil
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if err := c.svc.Events.Delete(c.calendarID, id).SendUpdates("all").Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: delete event: %w", err)
	}
	c.logger.Info("gcal event deleted", "event_id", id)
	return nil
}

// BusyTimes returns the calendar's busy intervals between start and end.
func (c *Client) BusyTimes(ctx context.Context, start, end time.Time) ([]booking.Interval, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: c.calendarID}},
	}
	resp, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: freebusy: %w", err)
	}
	cal, ok := resp.Calendars[c.calendarID]
	if !ok {
		return nil, nil
	}
	busy := make([]booking.Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		s, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("gcal: parse busy start %q: %w", p.Start, err)
		}
		e, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("gcal: parse busy end %q: %w", p.End, err)
		}
		busy = append(busy, booking.Interval{Start: s, End: e})
	}
	return busy, nil
}

// FindAvailableSlots returns free slots of the given length within business
// hours on date, stepping every 30 minutes.
func (c *Client) FindAvailableSlots(ctx context.Context, date time.Time, durationMinutes int) ([]booking.Slot, error) {
	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	y, m, d := date.In(c.loc).Date()
	open := time.Date(y, m, d, c.openHour, 0, 0, 0, c.loc)
	closeAt := time.Date(y, m, d, c.closeHour, 0, 0, 0, c.loc)

	busy, err := c.BusyTimes(ctx, open, closeAt)
	if err != nil {
		return nil, err
	}
	return booking.FreeSlots(open, closeAt, time.Duration(durationMinutes)*time.Minute, slotStep, busy), nil
}

// IsFree reports whether nothing is booked between start and end.
func (c *Client) IsFree(ctx context.Context, start, end time.Time) (bool, error) {
	busy, err := c.BusyTimes(ctx, start, end)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if booking.Overlaps(start, end, b.Start, b.End) {
			return false, nil
		}
	}
	return true, nil
}

// UpcomingEvents lists the next n events from now.
func (c *Client) UpcomingEvents(ctx context.Context, n int64) ([]*calendar.Event, error) {
	events, err := c.svc.Events.List(c.calendarID).
		TimeMin(c.now().Format(time.RFC3339)).
		MaxResults(n).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: list events: %w", err)
	}
	return events.Items, nil
}

func (c *Client) eventTime(t time.Time) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: c.loc.String(),
	}
}
