package crm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/phone-assistant/pkg/logging"
)

func TestClient_SendsBearerAndJSONHeaders(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.CreateCustomer(context.Background(), CustomerInput{Name: "Jane Doe"})
	require.NoError(t, err)
	_, err = env.client.GetServices(context.Background())
	require.NoError(t, err)

	for _, call := range env.crm.recorded() {
		assert.Equal(t, "Bearer test-key", call.Auth, call.String())
		assert.Equal(t, "application/json", call.ContentType, call.String())
	}
}

func TestClient_CreateCustomer_FillsDefaults(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.client.CreateCustomer(context.Background(), CustomerInput{
		Name:  "Jane Doe",
		Phone: "+15551234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", created.ID)
	assert.Equal(t, "Jane Doe", created.Name)

	calls := env.crm.callsTo(http.MethodPost, "/customers")
	require.Len(t, calls, 1)
	body := calls[0].Body
	assert.Equal(t, "phone_call_assistant", body["source"])
	assert.Equal(t, fixedStamp, body["created_at"])
	assert.Equal(t, map[string]any{}, body["custom_fields"])
	assert.Equal(t, "", body["notes"])
	assert.Equal(t, "+15551234567", body["phone"])
}

func TestClient_GetCustomer_NotFound(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.client.GetCustomer(context.Background(), "missing")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var crmErr *Error
	require.True(t, errors.As(err, &crmErr))
	assert.Equal(t, http.StatusNotFound, crmErr.StatusCode)
	assert.Equal(t, "get_customer", crmErr.Op)
}

func TestClient_FindCustomer_TakesFirstMatch(t *testing.T) {
	env := newTestEnv(t)
	env.crm.customers = []map[string]any{
		{"id": "c-first", "phone": "+1555"},
		{"id": "c-second", "phone": "+1555"},
	}

	got, err := env.client.FindCustomerByPhone(context.Background(), "+1555")
	require.NoError(t, err)
	assert.Equal(t, "c-first", got.ID)

	calls := env.crm.callsTo(http.MethodGet, "/customers/search")
	require.Len(t, calls, 1)
	assert.Equal(t, "+1555", calls[0].Query.Get("phone"))
}

func TestClient_FindCustomer_ToleratesPartialRecords(t *testing.T) {
	env := newTestEnv(t)
	env.crm.customers = []map[string]any{{"id": "c1", "email": "jane@example.com"}}

	got, err := env.client.FindCustomerByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Empty(t, got.Name)
	assert.Empty(t, got.Phone)
}

func TestClient_FindCustomer_EmptyListAndTransportErrorAreBothMisses(t *testing.T) {
	// Empty search result.
	emptyEnv := newTestEnv(t)
	emptyResult, emptyErr := emptyEnv.client.FindCustomerByPhone(context.Background(), "+15550000000")

	// Transport failure on search.
	transport := &failingSearchTransport{next: http.DefaultTransport}
	failEnv := newTestEnv(t, WithHTTPClient(&http.Client{Transport: transport, Timeout: time.Second}))
	failResult, failErr := failEnv.client.FindCustomerByPhone(context.Background(), "+15550000000")

	assert.Nil(t, emptyResult)
	assert.Nil(t, failResult)
	require.Error(t, emptyErr)
	require.Error(t, failErr)
	assert.True(t, IsNotFound(emptyErr))
	assert.False(t, IsNotFound(failErr))

	// get-or-create treats both the same way: phone, email, then create.
	in := CustomerInput{Name: "Jane Doe", Phone: "+15550000000", Email: "jane@example.com"}
	fromEmpty, err := emptyEnv.client.GetOrCreateCustomer(context.Background(), in)
	require.NoError(t, err)
	fromFailure, err := failEnv.client.GetOrCreateCustomer(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, fromEmpty.Name, fromFailure.Name)
	assert.Len(t, emptyEnv.crm.callsTo(http.MethodPost, "/customers"), 1)
	assert.Len(t, failEnv.crm.callsTo(http.MethodPost, "/customers"), 1)
	assert.Equal(t, []string{
		"GET /customers/search",
		"GET /customers/search",
		"GET /customers/search",
		"POST /customers",
	}, transport.seen)
}

func TestClient_UpdateCustomer_StampsUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	env.crm.customers = []map[string]any{{"id": "c1", "name": "Old"}}

	err := env.client.UpdateCustomer(context.Background(), "c1", map[string]any{"name": "New"})
	require.NoError(t, err)

	calls := env.crm.callsTo(http.MethodPatch, "/customers/c1")
	require.Len(t, calls, 1)
	assert.Equal(t, "New", calls[0].Body["name"])
	assert.Equal(t, fixedStamp, calls[0].Body["updated_at"])

	err = env.client.UpdateCustomer(context.Background(), "nope", map[string]any{"name": "x"})
	require.Error(t, err)
}

func TestClient_CreateAppointment_ForcesStatusAndSource(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.client.CreateAppointment(context.Background(), AppointmentInput{
		CustomerID:  "c1",
		Title:       "Jane Doe - Consultation",
		StartTime:   "2024-06-01T10:00:00Z",
		EndTime:     "2024-06-01T10:30:00Z",
		ServiceType: "Consultation",
		Extra: map[string]any{
			"status":     "cancelled",
			"source":     "website",
			"created_at": "1999-01-01T00:00:00Z",
			"location":   "Room 2",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "scheduled", created.Status)

	calls := env.crm.callsTo(http.MethodPost, "/appointments")
	require.Len(t, calls, 1)
	body := calls[0].Body
	assert.Equal(t, "scheduled", body["status"])
	assert.Equal(t, "phone_call_assistant", body["source"])
	assert.Equal(t, fixedStamp, body["created_at"])
	assert.Equal(t, "Room 2", body["location"])
	assert.Equal(t, "", body["notes"])
	assert.Equal(t, map[string]any{}, body["custom_fields"])
}

func TestClient_CancelAppointment_SingleTransition(t *testing.T) {
	env := newTestEnv(t)
	env.crm.appointments["a1"] = map[string]any{"id": "a1", "status": "scheduled"}

	err := env.client.CancelAppointment(context.Background(), "a1", "caller asked")
	require.NoError(t, err)

	calls := env.crm.callsTo(http.MethodPatch, "/appointments/a1")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"cancellation_reason", "cancelled_at", "status"}, sortedKeys(calls[0].Body))
	assert.Equal(t, "cancelled", calls[0].Body["status"])
	assert.Equal(t, "caller asked", calls[0].Body["cancellation_reason"])
	assert.Equal(t, fixedStamp, calls[0].Body["cancelled_at"])
}

func TestClient_RescheduleAppointment_SingleTransition(t *testing.T) {
	env := newTestEnv(t)
	env.crm.appointments["a1"] = map[string]any{"id": "a1", "status": "scheduled"}

	err := env.client.RescheduleAppointment(context.Background(), "a1", "2024-06-02T10:00:00Z", "2024-06-02T11:00:00Z")
	require.NoError(t, err)

	calls := env.crm.callsTo(http.MethodPatch, "/appointments/a1")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"end_time", "rescheduled_at", "start_time", "status"}, sortedKeys(calls[0].Body))
	assert.Equal(t, "rescheduled", calls[0].Body["status"])
	assert.Equal(t, fixedStamp, calls[0].Body["rescheduled_at"])

	got, err := env.client.GetAppointment(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02T10:00:00Z", got.StartTime)
}

func TestClient_CancelAndReschedule_MissingAppointment(t *testing.T) {
	env := newTestEnv(t)

	assert.NotPanics(t, func() {
		err := env.client.CancelAppointment(context.Background(), "ghost", "")
		assert.True(t, IsNotFound(err))
		err = env.client.RescheduleAppointment(context.Background(), "ghost", "a", "b")
		assert.True(t, IsNotFound(err))
	})
}

func TestClient_ListOperations_EmptyOnError(t *testing.T) {
	env := newTestEnv(t)
	env.crm.failReads = true
	ctx := context.Background()

	appts, err := env.client.GetCustomerAppointments(ctx, "c1")
	require.Error(t, err)
	assert.NotNil(t, appts)
	assert.Empty(t, appts)

	slots, err := env.client.CheckAvailability(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 30)
	require.Error(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)

	services, err := env.client.GetServices(ctx)
	require.Error(t, err)
	assert.NotNil(t, services)
	assert.Empty(t, services)

	assert.Equal(t, 3, env.failureLogCount())
}

func TestClient_CheckAvailability_DefaultsDuration(t *testing.T) {
	env := newTestEnv(t)
	env.crm.slots = []map[string]any{{"start": "2024-06-01T09:00:00Z", "end": "2024-06-01T10:00:00Z"}}

	slots, err := env.client.CheckAvailability(context.Background(), time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "2024-06-01T09:00:00Z", slots[0].String("start"))

	calls := env.crm.callsTo(http.MethodGet, "/availability")
	require.Len(t, calls, 1)
	assert.Equal(t, "2024-06-01", calls[0].Query.Get("date"))
	assert.Equal(t, "60", calls[0].Query.Get("duration"))
}

func TestClient_GetCustomerAppointments(t *testing.T) {
	env := newTestEnv(t)
	env.crm.appointments["a1"] = map[string]any{"id": "a1", "customer_id": "c1", "status": "scheduled"}
	env.crm.appointments["a2"] = map[string]any{"id": "a2", "customer_id": "c2"}

	appts, err := env.client.GetCustomerAppointments(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "a1", appts[0].ID)

	none, err := env.client.GetCustomerAppointments(context.Background(), "c-none")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestClient_LogCallActivity_FixedDirectionAndSource(t *testing.T) {
	env := newTestEnv(t)

	err := env.client.LogCallActivity(context.Background(), CallActivity{
		CustomerID: "c1",
		CallID:     "call-9",
		Duration:   125,
		Summary:    "Booked a consultation",
		Outcome:    "booked",
	})
	require.NoError(t, err)

	calls := env.crm.callsTo(http.MethodPost, "/activities")
	require.Len(t, calls, 1)
	body := calls[0].Body
	assert.Equal(t, "inbound", body["direction"])
	assert.Equal(t, "phone_call_assistant", body["source"])
	assert.Equal(t, float64(125), body["duration"])
	assert.Equal(t, "call-9", body["call_id"])
	assert.Equal(t, fixedStamp, body["created_at"])
}

func TestClient_FailureIsLoggedOnce(t *testing.T) {
	env := newTestEnv(t)
	env.crm.failWrites = true

	_, err := env.client.CreateCustomer(context.Background(), CustomerInput{Name: "Jane"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, 1, env.failureLogCount())
}

func TestClient_TimeoutIsOrdinaryFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(ts.Close)

	client := New(Config{BaseURL: ts.URL, APIKey: "k", Timeout: 50 * time.Millisecond}, logging.New("error"))
	defer client.Close()

	_, err := client.GetServices(context.Background())
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestClient_ConcurrentUseThenClose(t *testing.T) {
	env := newTestEnv(t)
	env.crm.services = []map[string]any{{"id": "svc-1", "name": "Consultation"}}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			services, err := env.client.GetServices(context.Background())
			if err == nil && len(services) != 1 {
				err = errors.New("unexpected service count")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.NotPanics(t, env.client.Close)
	assert.Len(t, env.crm.callsTo(http.MethodGet, "/services"), 8)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
