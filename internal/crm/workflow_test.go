package crm

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/phone-assistant/internal/booking"
)

func TestGetOrCreateCustomer_PhoneHitShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.crm.customers = []map[string]any{{"id": "c-phone", "phone": "+1555", "email": "other@example.com"}}

	got, err := env.client.GetOrCreateCustomer(context.Background(), CustomerInput{Phone: "+1555", Email: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "c-phone", got.ID)

	calls := env.crm.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "+1555", calls[0].Query.Get("phone"))
}

func TestGetOrCreateCustomer_EmailOnlyMatchDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.crm.customers = []map[string]any{{"id": "c-email", "email": "jane@example.com"}}

	got, err := env.client.GetOrCreateCustomer(context.Background(), CustomerInput{
		Name:  "Jane Doe",
		Phone: "+15551234567",
		Email: "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "c-email", got.ID)

	calls := env.crm.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "GET /customers/search?phone=%2B15551234567", calls[0].String())
	assert.Equal(t, "GET /customers/search?email=jane%40example.com", calls[1].String())
	assert.Empty(t, env.crm.callsTo(http.MethodPost, "/customers"))
}

func TestGetOrCreateCustomer_CreatesWhenNoMatch(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.client.GetOrCreateCustomer(context.Background(), CustomerInput{Name: "Sam", Email: "sam@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", got.ID)

	calls := env.crm.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "GET /customers/search?email=sam%40example.com", calls[0].String())
	assert.Equal(t, "POST /customers", calls[1].String())
}

func TestGetOrCreateCustomer_LookupFailureFallsThrough(t *testing.T) {
	env := newTestEnv(t)
	env.crm.failReads = true

	got, err := env.client.GetOrCreateCustomer(context.Background(), CustomerInput{Name: "Sam", Phone: "+1555"})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", got.ID)
	assert.Equal(t, 1, env.failureLogCount())
}

func TestBookAppointmentFromPhoneCall_AbortsWhenCustomerUnresolved(t *testing.T) {
	env := newTestEnv(t)
	env.crm.failWrites = true
	env.crm.failReads = true

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	id, err := env.client.BookAppointmentFromPhoneCall(context.Background(),
		booking.Appointment{ServiceType: "Consultation", StartTime: start, EndTime: start.Add(30 * time.Minute)},
		booking.Customer{Name: "Nobody"},
	)
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Empty(t, env.crm.callsTo(http.MethodPost, "/appointments"))
	assert.Len(t, env.crm.callsTo(http.MethodPost, "/customers"), 1)
	assert.Equal(t, 1, env.failureLogCount())
}

func TestBookAppointmentFromPhoneCall_JaneDoe(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.client.BookAppointmentFromPhoneCall(context.Background(),
		booking.Appointment{
			ServiceType: "Consultation",
			StartTime:   time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
			EndTime:     time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		},
		booking.Customer{Name: "Jane Doe", Phone: "+15551234567"},
	)
	require.NoError(t, err)

	customers := env.crm.callsTo(http.MethodPost, "/customers")
	require.Len(t, customers, 1)
	assert.Equal(t, "Jane Doe", customers[0].Body["name"])
	assert.Equal(t, "+15551234567", customers[0].Body["phone"])
	assert.Equal(t, "Customer contacted via phone call assistant", customers[0].Body["notes"])

	appts := env.crm.callsTo(http.MethodPost, "/appointments")
	require.Len(t, appts, 1)
	body := appts[0].Body
	assert.Equal(t, "Jane Doe - Consultation", body["title"])
	assert.Equal(t, "Phone call appointment for Consultation", body["description"])
	assert.Equal(t, "scheduled", body["status"])
	assert.Equal(t, "cust-1", body["customer_id"])
	assert.Equal(t, "2024-06-01T10:00:00Z", body["start_time"])
	assert.Equal(t, "2024-06-01T10:30:00Z", body["end_time"])
	assert.Equal(t, "", body["notes"])

	assert.Equal(t, "appt-2", id)
	_, stored := env.crm.appointments[id]
	assert.True(t, stored)
}

func TestBookAppointmentFromPhoneCall_AppointmentFailure(t *testing.T) {
	env := newTestEnv(t)
	env.crm.customers = []map[string]any{{"id": "c1", "phone": "+1555"}}
	env.crm.failWrites = true

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	id, err := env.client.BookAppointmentFromPhoneCall(context.Background(),
		booking.Appointment{ServiceType: "Cleaning", StartTime: start, EndTime: start.Add(time.Hour)},
		booking.Customer{Name: "Pat", Phone: "+1555"},
	)
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Len(t, env.crm.callsTo(http.MethodPost, "/appointments"), 1)
	assert.Equal(t, 1, env.failureLogCount())
}

func TestAdapter_MapsSlotsAndDelegates(t *testing.T) {
	env := newTestEnv(t)
	env.crm.slots = []map[string]any{
		{"start_time": "2024-06-01T09:00:00Z", "end_time": "2024-06-01T10:00:00Z", "room": "A"},
		{"label": "morning"},
	}
	env.crm.appointments["a1"] = map[string]any{"id": "a1"}
	adapter := NewAdapter(env.client)
	ctx := context.Background()

	assert.Equal(t, "crm", adapter.Name())

	slots, err := adapter.CheckAvailability(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 60)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, "A", slots[0].Raw["room"])
	assert.True(t, slots[1].Start.IsZero())

	start := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	require.NoError(t, adapter.RescheduleAppointment(ctx, "a1", start, start.Add(time.Hour)))
	assert.Equal(t, "2024-06-03T14:00:00Z", env.crm.appointments["a1"]["start_time"])

	require.NoError(t, adapter.CancelAppointment(ctx, "a1", "no longer needed"))
	assert.Equal(t, "cancelled", env.crm.appointments["a1"]["status"])
}

func TestGetOrCreateCustomer_TrimsContactDetailsOnCreate(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.client.GetOrCreateCustomer(context.Background(), CustomerInput{
		Name:  "Sam",
		Phone: " +15550001111 ",
		Email: "\tsam@example.com ",
	})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", got.ID)

	calls := env.crm.recorded()
	require.Len(t, calls, 3)
	assert.Equal(t, "+15550001111", calls[0].Query.Get("phone"))
	assert.Equal(t, "sam@example.com", calls[1].Query.Get("email"))
	assert.Equal(t, "+15550001111", calls[2].Body["phone"])
	assert.Equal(t, "sam@example.com", calls[2].Body["email"])
}

func TestNumericRecordIDsDecodeAsStrings(t *testing.T) {
	env := newTestEnv(t)
	env.crm.customers = []map[string]any{{"id": 4021, "phone": "+1555", "name": "Pat"}}
	env.crm.appointments["a1"] = map[string]any{"id": 77, "customer_id": 4021, "title": "Pat - Cleaning"}
	ctx := context.Background()

	customer, err := env.client.FindCustomerByPhone(ctx, "+1555")
	require.NoError(t, err)
	assert.Equal(t, "4021", customer.ID)
	assert.Equal(t, "Pat", customer.Name)

	appt, err := env.client.GetAppointment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "77", appt.ID)
	assert.Equal(t, "4021", appt.CustomerID)
	assert.Equal(t, "Pat - Cleaning", appt.Title)
}
