package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Customer is a customer record as stored by the CRM. Every field is
// optional; CRMs routinely return partial records from search.
type Customer struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name,omitempty"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Source       string         `json:"source,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// Appointment is an appointment record as stored by the CRM.
type Appointment struct {
	ID                 string         `json:"id,omitempty"`
	CustomerID         string         `json:"customer_id,omitempty"`
	Title              string         `json:"title,omitempty"`
	Description        string         `json:"description,omitempty"`
	StartTime          string         `json:"start_time,omitempty"`
	EndTime            string         `json:"end_time,omitempty"`
	ServiceType        string         `json:"service_type,omitempty"`
	Status             string         `json:"status,omitempty"`
	Source             string         `json:"source,omitempty"`
	Notes              string         `json:"notes,omitempty"`
	CustomFields       map[string]any `json:"custom_fields,omitempty"`
	CreatedAt          string         `json:"created_at,omitempty"`
	CancelledAt        string         `json:"cancelled_at,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	RescheduledAt      string         `json:"rescheduled_at,omitempty"`
}

// UnmarshalJSON accepts numeric as well as string IDs.
func (c *Customer) UnmarshalJSON(data []byte) error {
	type plain Customer
	aux := struct {
		*plain
		ID looseID `json:"id"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.ID = string(aux.ID)
	return nil
}

// UnmarshalJSON accepts numeric as well as string IDs.
func (a *Appointment) UnmarshalJSON(data []byte) error {
	type plain Appointment
	aux := struct {
		*plain
		ID         looseID `json:"id"`
		CustomerID looseID `json:"customer_id"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.ID = string(aux.ID)
	a.CustomerID = string(aux.CustomerID)
	return nil
}

// looseID decodes a JSON string, number or null into an identifier.
type looseID string

func (id *looseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = looseID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("crm: id must be a string or number: %w", err)
		}
		*id = looseID(n.String())
	}
	return nil
}

// Record is an opaque CRM record (availability slot, service).
type Record map[string]any

// String returns the value under key when it is a string.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// CustomerInput is the caller-supplied data for creating or finding a customer.
type CustomerInput struct {
	Name         string
	Email        string
	Phone        string
	Notes        string
	CustomFields map[string]any
}

// AppointmentInput is the caller-supplied data for creating an appointment.
// StartTime and EndTime are ISO-8601 strings.
type AppointmentInput struct {
	CustomerID   string
	Title        string
	Description  string
	StartTime    string
	EndTime      string
	ServiceType  string
	Notes        string
	CustomFields map[string]any
	// Extra carries additional top-level fields for CRMs with a wider schema.
	// It cannot override status, source or created_at.
	Extra map[string]any
}

// CallActivity is a call log entry. Direction and source are fixed by the client.
type CallActivity struct {
	CustomerID string
	CallID     string
	Duration   int
	Summary    string
	Outcome    string
}

const (
	StatusScheduled   = "scheduled"
	StatusCancelled   = "cancelled"
	StatusRescheduled = "rescheduled"

	directionInbound = "inbound"
)

type customerPayload struct {
	Name         string         `json:"name"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Source       string         `json:"source"`
	CreatedAt    string         `json:"created_at"`
	CustomFields map[string]any `json:"custom_fields"`
	Notes        string         `json:"notes"`
}

type activityPayload struct {
	CustomerID string `json:"customer_id"`
	CallID     string `json:"call_id"`
	Direction  string `json:"direction"`
	Duration   int    `json:"duration"`
	Summary    string `json:"summary"`
	Outcome    string `json:"outcome"`
	CreatedAt  string `json:"created_at"`
	Source     string `json:"source"`
}

type cancelPayload struct {
	Status             string `json:"status"`
	CancellationReason string `json:"cancellation_reason"`
	CancelledAt        string `json:"cancelled_at"`
}

type reschedulePayload struct {
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	RescheduledAt string `json:"rescheduled_at"`
}
