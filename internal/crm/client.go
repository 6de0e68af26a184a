// Package crm talks to the customer CRM's REST API: customer lookup and
// creation, the appointment lifecycle, availability, services and call
// activity logging.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/internal/observability/metrics"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultDuration = 60
	maxErrorBody    = 300
)

var crmTracer = otel.Tracer("phone-assistant.internal.crm")

// Config carries the CRM endpoint and credentials.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client is a CRM REST client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logging.Logger
	metrics    *metrics.CRMMetrics
	now        func() time.Time
	closeOnce  sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics records per-operation counters and latency.
func WithMetrics(m *metrics.CRMMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithClock overrides the source of the timestamps stamped onto payloads.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a client with one pooled connection set that every operation reuses.
func New(cfg Config, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	c := &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     cfg.APIKey,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases pooled connections. Requests already in flight finish normally.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.httpClient.CloseIdleConnections()
	})
}

// CreateCustomer creates a customer tagged with the assistant source.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	customFields := in.CustomFields
	if customFields == nil {
		customFields = map[string]any{}
	}
	payload := customerPayload{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Source:       booking.SourceTag,
		CreatedAt:    c.timestamp(),
		CustomFields: customFields,
		Notes:        in.Notes,
	}

	var out Customer
	err := c.run(ctx, "create_customer", func(ctx context.Context) error {
		return c.doJSON(ctx, "create_customer", http.MethodPost, "/customers", nil, payload, &out)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("crm customer created", "customer_id", out.ID)
	return &out, nil
}

// GetCustomer fetches a customer by ID.
func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var out Customer
	err := c.run(ctx, "get_customer", func(ctx context.Context) error {
		return c.doJSON(ctx, "get_customer", http.MethodGet, "/customers/"+url.PathEscape(id), nil, nil, &out)
	}, attribute.String("crm.customer_id", id))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindCustomerByPhone returns the first customer matching phone.
func (c *Client) FindCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	return c.searchCustomer(ctx, "find_customer_by_phone", "phone", phone)
}

// FindCustomerByEmail returns the first customer matching email.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	return c.searchCustomer(ctx, "find_customer_by_email", "email", email)
}

func (c *Client) searchCustomer(ctx context.Context, op, field, value string) (*Customer, error) {
	q := url.Values{}
	q.Set(field, value)

	var match *Customer
	err := c.run(ctx, op, func(ctx context.Context) error {
		var wrapped struct {
			Customers []Customer `json:"customers"`
		}
		if err := c.doJSON(ctx, op, http.MethodGet, "/customers/search", q, nil, &wrapped); err != nil {
			return err
		}
		if len(wrapped.Customers) == 0 {
			return &Error{Op: op, Err: ErrNotFound}
		}
		// Multiple matches are possible; the CRM's first entry is taken as authoritative.
		match = &wrapped.Customers[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("crm customer found", "by", field, "customer_id", match.ID)
	return match, nil
}

// UpdateCustomer applies a partial update and stamps updated_at.
func (c *Client) UpdateCustomer(ctx context.Context, id string, fields map[string]any) error {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["updated_at"] = c.timestamp()

	err := c.run(ctx, "update_customer", func(ctx context.Context) error {
		return c.doJSON(ctx, "update_customer", http.MethodPatch, "/customers/"+url.PathEscape(id), nil, payload, nil)
	}, attribute.String("crm.customer_id", id))
	if err != nil {
		return err
	}
	c.logger.Info("crm customer updated", "customer_id", id)
	return nil
}

// CreateAppointment creates an appointment. Status is always "scheduled" and
// the source is always the assistant tag, whatever the input carries.
func (c *Client) CreateAppointment(ctx context.Context, in AppointmentInput) (*Appointment, error) {
	payload := make(map[string]any, len(in.Extra)+11)
	for k, v := range in.Extra {
		payload[k] = v
	}
	customFields := in.CustomFields
	if customFields == nil {
		customFields = map[string]any{}
	}
	payload["customer_id"] = in.CustomerID
	payload["title"] = in.Title
	payload["description"] = in.Description
	payload["start_time"] = in.StartTime
	payload["end_time"] = in.EndTime
	payload["service_type"] = in.ServiceType
	payload["status"] = StatusScheduled
	payload["source"] = booking.SourceTag
	payload["created_at"] = c.timestamp()
	payload["notes"] = in.Notes
	payload["custom_fields"] = customFields

	var out Appointment
	err := c.run(ctx, "create_appointment", func(ctx context.Context) error {
		return c.doJSON(ctx, "create_appointment", http.MethodPost, "/appointments", nil, payload, &out)
	}, attribute.String("crm.customer_id", in.CustomerID), attribute.String("crm.service_type", in.ServiceType))
	if err != nil {
		return nil, err
	}
	c.logger.Info("crm appointment created", "appointment_id", out.ID, "customer_id", in.CustomerID)
	return &out, nil
}

// GetAppointment fetches an appointment by ID.
func (c *Client) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	var out Appointment
	err := c.run(ctx, "get_appointment", func(ctx context.Context) error {
		return c.doJSON(ctx, "get_appointment", http.MethodGet, "/appointments/"+url.PathEscape(id), nil, nil, &out)
	}, attribute.String("crm.appointment_id", id))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelAppointment marks an appointment cancelled with the given reason.
func (c *Client) CancelAppointment(ctx context.Context, id, reason string) error {
	payload := cancelPayload{
		Status:             StatusCancelled,
		CancellationReason: reason,
		CancelledAt:        c.timestamp(),
	}
	err := c.run(ctx, "cancel_appointment", func(ctx context.Context) error {
		return c.doJSON(ctx, "cancel_appointment", http.MethodPatch, "/appointments/"+url.PathEscape(id), nil, payload, nil)
	}, attribute.String("crm.appointment_id", id))
	if err != nil {
		return err
	}
	c.logger.Info("crm appointment cancelled", "appointment_id", id)
	return nil
}

// RescheduleAppointment moves an appointment to new ISO-8601 start/end times.
func (c *Client) RescheduleAppointment(ctx context.Context, id, start, end string) error {
	payload := reschedulePayload{
		StartTime:     start,
		EndTime:       end,
		Status:        StatusRescheduled,
		RescheduledAt: c.timestamp(),
	}
	err := c.run(ctx, "reschedule_appointment", func(ctx context.Context) error {
		return c.doJSON(ctx, "reschedule_appointment", http.MethodPatch, "/appointments/"+url.PathEscape(id), nil, payload, nil)
	}, attribute.String("crm.appointment_id", id))
	if err != nil {
		return err
	}
	c.logger.Info("crm appointment rescheduled", "appointment_id", id)
	return nil
}

// GetCustomerAppointments lists a customer's appointments. The slice is
// never nil, even on error.
func (c *Client) GetCustomerAppointments(ctx context.Context, customerID string) ([]Appointment, error) {
	q := url.Values{}
	q.Set("customer_id", customerID)

	var wrapped struct {
		Appointments []Appointment `json:"appointments"`
	}
	err := c.run(ctx, "get_customer_appointments", func(ctx context.Context) error {
		return c.doJSON(ctx, "get_customer_appointments", http.MethodGet, "/appointments", q, nil, &wrapped)
	}, attribute.String("crm.customer_id", customerID))
	if err != nil || wrapped.Appointments == nil {
		return []Appointment{}, err
	}
	c.logger.Info("crm appointments listed", "customer_id", customerID, "count", len(wrapped.Appointments))
	return wrapped.Appointments, nil
}

// CheckAvailability lists open slots on date for the given duration in
// minutes (60 when not positive). The slice is never nil.
func (c *Client) CheckAvailability(ctx context.Context, date time.Time, durationMinutes int) ([]Record, error) {
	if durationMinutes <= 0 {
		durationMinutes = defaultDuration
	}
	day := date.Format("2006-01-02")
	q := url.Values{}
	q.Set("date", day)
	q.Set("duration", fmt.Sprintf("%d", durationMinutes))

	var wrapped struct {
		Slots []Record `json:"available_slots"`
	}
	err := c.run(ctx, "check_availability", func(ctx context.Context) error {
		return c.doJSON(ctx, "check_availability", http.MethodGet, "/availability", q, nil, &wrapped)
	}, attribute.String("crm.date", day), attribute.Int("crm.duration_minutes", durationMinutes))
	if err != nil || wrapped.Slots == nil {
		return []Record{}, err
	}
	c.logger.Info("crm availability retrieved", "date", day, "count", len(wrapped.Slots))
	return wrapped.Slots, nil
}

// GetServices lists the services offered. The slice is never nil.
func (c *Client) GetServices(ctx context.Context) ([]Record, error) {
	var wrapped struct {
		Services []Record `json:"services"`
	}
	err := c.run(ctx, "get_services", func(ctx context.Context) error {
		return c.doJSON(ctx, "get_services", http.MethodGet, "/services", nil, nil, &wrapped)
	})
	if err != nil || wrapped.Services == nil {
		return []Record{}, err
	}
	return wrapped.Services, nil
}

// LogCallActivity records an inbound call against a customer.
func (c *Client) LogCallActivity(ctx context.Context, activity CallActivity) error {
	payload := activityPayload{
		CustomerID: activity.CustomerID,
		CallID:     activity.CallID,
		Direction:  directionInbound,
		Duration:   activity.Duration,
		Summary:    activity.Summary,
		Outcome:    activity.Outcome,
		CreatedAt:  c.timestamp(),
		Source:     booking.SourceTag,
	}
	err := c.run(ctx, "log_call_activity", func(ctx context.Context) error {
		return c.doJSON(ctx, "log_call_activity", http.MethodPost, "/activities", nil, payload, nil)
	}, attribute.String("crm.customer_id", activity.CustomerID), attribute.String("crm.call_id", activity.CallID))
	if err != nil {
		return err
	}
	c.logger.Info("crm call activity logged", "customer_id", activity.CustomerID, "call_id", activity.CallID)
	return nil
}

// run wraps one CRM operation with a span, metrics and the single failure log line.
func (c *Client) run(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := crmTracer.Start(ctx, "crm."+op)
	defer span.End()
	span.SetAttributes(attrs...)

	start := time.Now()
	err := fn(ctx)
	c.record(span, op, time.Since(start), err)
	return err
}

func (c *Client) record(span trace.Span, op string, elapsed time.Duration, err error) {
	switch {
	case err == nil:
		c.metrics.ObserveRequest(op, "ok", elapsed.Seconds())
	case IsNotFound(err):
		c.metrics.ObserveRequest(op, "not_found", elapsed.Seconds())
		c.logger.Info("crm record not found", "op", op)
	default:
		c.metrics.ObserveRequest(op, "error", elapsed.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		c.logger.Error("crm operation failed", "op", op, "error", err)
	}
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		sentinel := ErrUnexpectedStatus
		if resp.StatusCode == http.StatusNotFound {
			sentinel = ErrNotFound
		}
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: msg, Err: sentinel}
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
