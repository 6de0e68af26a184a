// Package calcom books phone-call appointments into Cal.com.
package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const (
	defaultBaseURL = "https://api.cal.com/v1"
	defaultTimeout = 30 * time.Second
)

// Client wraps the Cal.com v1 REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logging.Logger
}

// NewClient constructs a Cal.com REST client.
func NewClient(apiKey, baseURL string, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

// GetEventTypes lists the account's event types.
func (c *Client) GetEventTypes(ctx context.Context) ([]EventType, error) {
	var wrapped struct {
		EventTypes []EventType `json:"event_types"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/event-types", nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get event types: %w", err)
	}
	return wrapped.EventTypes, nil
}

// GetAvailability lists open slots for an event type on a day.
func (c *Client) GetAvailability(ctx context.Context, eventTypeID int, date time.Time) ([]Slot, error) {
	q := url.Values{}
	q.Set("eventTypeId", strconv.Itoa(eventTypeID))
	q.Set("date", date.Format("2006-01-02"))

	var wrapped struct {
		Availability []Slot `json:"availability"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/availability?"+q.Encode(), nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	return wrapped.Availability, nil
}

// CreateBooking creates a booking.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*Booking, error) {
	var out Booking
	if err := c.doJSON(ctx, http.MethodPost, "/bookings", req, &out); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	c.logger.Info("calcom booking created", "booking_id", out.ID, "event_type_id", req.EventTypeID)
	return &out, nil
}

// GetBooking fetches a booking by ID.
func (c *Client) GetBooking(ctx context.Context, id string) (*Booking, error) {
	var out Booking
	if err := c.doJSON(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &out, nil
}

// CancelBooking cancels a booking with an optional reason.
func (c *Client) CancelBooking(ctx context.Context, id, reason string) error {
	body := map[string]string{"reason": reason}
	if err := c.doJSON(ctx, http.MethodDelete, "/bookings/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	c.logger.Info("calcom booking cancelled", "booking_id", id)
	return nil
}

// RescheduleBooking moves a booking to new ISO-8601 start/end times.
func (c *Client) RescheduleBooking(ctx context.Context, id, start, end string) error {
	body := map[string]string{"start": start, "end": end}
	if err := c.doJSON(ctx, http.MethodPatch, "/bookings/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("reschedule booking: %w", err)
	}
	c.logger.Info("calcom booking rescheduled", "booking_id", id)
	return nil
}

// GetProfile returns the authenticated user.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.doJSON(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &out, nil
}

// FindAvailableSlots collects slots for the next days starting at from.
func (c *Client) FindAvailableSlots(ctx context.Context, eventTypeID int, from time.Time, days int) ([]Slot, error) {
	var out []Slot
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		slots, err := c.GetAvailability(ctx, eventTypeID, day)
		if err != nil {
			return out, err
		}
		for _, s := range slots {
			s.Date = day.Format("2006-01-02")
			out = append(out, s)
		}
	}
	return out, nil
}

func newBookingRequest(eventTypeID int, appt booking.Appointment, customer booking.Customer) BookingRequest {
	return BookingRequest{
		EventTypeID: eventTypeID,
		Start:       appt.StartTime.Format(time.RFC3339),
		End:         appt.EndTime.Format(time.RFC3339),
		Attendee: Attendee{
			Name:     customer.Name,
			Email:    customer.Email,
			TimeZone: "UTC",
		},
		Metadata: map[string]string{
			"phone":  customer.Phone,
			"notes":  appt.Notes,
			"source": booking.SourceTag,
		},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("calcom API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return fmt.Errorf("calcom API returned %d: %s", resp.StatusCode, msg)
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
