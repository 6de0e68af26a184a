package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type crmStub struct {
	mu        sync.Mutex
	requests  []string
	cancelled map[string]any
}

func newCRMStub(t *testing.T) *crmStub {
	t.Helper()
	stub := &crmStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /customers/search", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		customers := []map[string]any{}
		if r.URL.Query().Get("phone") == "+15551234567" {
			customers = append(customers, map[string]any{"id": "c1", "name": "Jane Doe", "phone": "+15551234567"})
		}
		writeStubJSON(w, http.StatusOK, map[string]any{"customers": customers})
	})
	mux.HandleFunc("GET /customers/{id}", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		if r.PathValue("id") != "c1" {
			writeStubJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		writeStubJSON(w, http.StatusOK, map[string]any{"id": "c1", "name": "Jane Doe"})
	})
	mux.HandleFunc("GET /appointments", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		writeStubJSON(w, http.StatusOK, map[string]any{"appointments": []map[string]any{{"id": "a1", "customer_id": "c1"}}})
	})
	mux.HandleFunc("GET /availability", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		writeStubJSON(w, http.StatusOK, map[string]any{"available_slots": []map[string]any{
			{"start_time": "2024-06-01T09:00:00Z", "end_time": "2024-06-01T09:30:00Z"},
		}})
	})
	mux.HandleFunc("GET /services", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		writeStubJSON(w, http.StatusOK, map[string]any{"services": []map[string]any{{"name": "Whitening", "duration": 45, "price": 250}}})
	})
	mux.HandleFunc("POST /appointments", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		writeStubJSON(w, http.StatusCreated, map[string]any{"id": "a9"})
	})
	mux.HandleFunc("PATCH /appointments/{id}", func(w http.ResponseWriter, r *http.Request) {
		stub.record(r)
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		stub.mu.Lock()
		stub.cancelled = body
		stub.mu.Unlock()
		writeStubJSON(w, http.StatusOK, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("CRM_BASE_URL", srv.URL)
	t.Setenv("CRM_API_KEY", "test-key")
	t.Setenv("SCHEDULING_PLATFORM", "crm")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("TIMEZONE", "UTC")
	return stub
}

func (s *crmStub) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
}

func writeStubJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "crmctl "+Version+"\n", out)
}

func TestCustomerFind(t *testing.T) {
	newCRMStub(t)

	out, err := run(t, "customer", "find", "--phone", "+15551234567")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "c1"`)

	_, err = run(t, "customer", "find", "--phone", "+19990000000")
	assert.EqualError(t, err, "customer not found")

	_, err = run(t, "customer", "find")
	assert.Error(t, err)
}

func TestCustomerGet(t *testing.T) {
	newCRMStub(t)

	out, err := run(t, "customer", "get", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, `"appointments"`)
	assert.Contains(t, out, `"a1"`)

	_, err = run(t, "customer", "get", "nobody")
	assert.EqualError(t, err, "customer nobody not found")
}

func TestAvailabilityAndServices(t *testing.T) {
	newCRMStub(t)

	out, err := run(t, "availability", "--date", "2024-06-01", "--duration", "30")
	require.NoError(t, err)
	assert.Contains(t, out, `"start_time": "09:00"`)
	assert.Contains(t, out, `"backend": "crm"`)

	_, err = run(t, "availability", "--date", "June 1st")
	assert.Error(t, err)

	out, err = run(t, "services")
	require.NoError(t, err)
	assert.Contains(t, out, "Whitening")
}

func TestBookAndCancel(t *testing.T) {
	stub := newCRMStub(t)

	out, err := run(t, "book",
		"--name", "Jane Doe",
		"--phone", "+15551234567",
		"--service", "Consultation",
		"--start", "2024-06-01T10:00:00Z",
		"--end", "2024-06-01T10:30:00Z",
	)
	require.NoError(t, err)
	assert.Equal(t, "booked Consultation on crm: a9\n", out)

	_, err = run(t, "book", "--name", "Jane", "--start", "2024-06-01T10:00:00Z", "--end", "2024-06-01T09:00:00Z")
	assert.Error(t, err)

	out, err = run(t, "cancel", "a9", "--reason", "sick")
	require.NoError(t, err)
	assert.Equal(t, "cancelled a9\n", out)
	assert.Equal(t, "cancelled", stub.cancelled["status"])
}
