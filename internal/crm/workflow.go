package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/phone-assistant/internal/booking"
)

const phoneCallNote = "Customer contacted via phone call assistant"

// GetOrCreateCustomer looks the customer up by phone, then by email, and
// creates it only when neither lookup returns a record. A failed lookup
// falls through exactly like an empty one.
func (c *Client) GetOrCreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	if in.Phone != "" {
		if existing, err := c.FindCustomerByPhone(ctx, in.Phone); err == nil {
			return existing, nil
		}
	}
	if in.Email != "" {
		if existing, err := c.FindCustomerByEmail(ctx, in.Email); err == nil {
			return existing, nil
		}
	}
	created, err := c.CreateCustomer(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("get or create customer: %w", err)
	}
	return created, nil
}

// BookAppointmentFromPhoneCall resolves the caller to a CRM customer and
// creates the appointment for them, returning the new appointment ID. No
// appointment is created when the customer cannot be resolved.
func (c *Client) BookAppointmentFromPhoneCall(ctx context.Context, appt booking.Appointment, customer booking.Customer) (string, error) {
	ctx, span := crmTracer.Start(ctx, "crm.book_appointment_from_phone_call")
	defer span.End()
	span.SetAttributes(attribute.String("crm.service_type", appt.ServiceType))

	crmCustomer, err := c.GetOrCreateCustomer(ctx, CustomerInput{
		Name:  customer.Name,
		Email: customer.Email,
		Phone: customer.Phone,
		Notes: phoneCallNote,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("book appointment: %w", err)
	}

	created, err := c.CreateAppointment(ctx, AppointmentInput{
		CustomerID:  crmCustomer.ID,
		Title:       booking.Title(customer.Name, appt.ServiceType),
		Description: booking.Description(appt.ServiceType),
		StartTime:   appt.StartTime.Format(time.RFC3339),
		EndTime:     appt.EndTime.Format(time.RFC3339),
		ServiceType: appt.ServiceType,
		Notes:       appt.Notes,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("book appointment: %w", err)
	}
	if created.ID == "" {
		err := &Error{Op: "book_appointment_from_phone_call", Err: ErrMissingID}
		span.RecordError(err)
		c.logger.Error("crm operation failed", "op", "book_appointment_from_phone_call", "error", err)
		return "", err
	}
	span.SetAttributes(attribute.String("crm.appointment_id", created.ID))
	return created.ID, nil
}
