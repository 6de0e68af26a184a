package crm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/phone-assistant/pkg/logging"
)

var fixedNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

const fixedStamp = "2024-05-20T12:00:00Z"

type recordedCall struct {
	Method      string
	Path        string
	Query       url.Values
	Body        map[string]any
	Auth        string
	ContentType string
}

func (c recordedCall) String() string {
	if len(c.Query) > 0 {
		return c.Method + " " + c.Path + "?" + c.Query.Encode()
	}
	return c.Method + " " + c.Path
}

// fakeCRM is an in-memory CRM that records every request it receives.
type fakeCRM struct {
	mu           sync.Mutex
	customers    []map[string]any
	appointments map[string]map[string]any
	services     []map[string]any
	slots        []map[string]any
	calls        []recordedCall
	nextID       int

	// failWrites makes create endpoints return 500.
	failWrites bool
	// failReads makes search and list endpoints return 500.
	failReads bool
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{appointments: map[string]map[string]any{}}
}

func (f *fakeCRM) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /customers", f.createCustomer)
	mux.HandleFunc("GET /customers/search", f.searchCustomers)
	mux.HandleFunc("GET /customers/{id}", f.getCustomer)
	mux.HandleFunc("PATCH /customers/{id}", f.patchCustomer)
	mux.HandleFunc("POST /appointments", f.createAppointment)
	mux.HandleFunc("GET /appointments", f.listAppointments)
	mux.HandleFunc("GET /appointments/{id}", f.getAppointment)
	mux.HandleFunc("PATCH /appointments/{id}", f.patchAppointment)
	mux.HandleFunc("GET /availability", f.listSlots)
	mux.HandleFunc("GET /services", f.listServices)
	mux.HandleFunc("POST /activities", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusCreated, map[string]any{"id": "act-1"})
	})
	return mux
}

func (f *fakeCRM) record(r *http.Request) map[string]any {
	var body map[string]any
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
	}
	if body == nil {
		body = map[string]any{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		Body:        body,
		Auth:        r.Header.Get("Authorization"),
		ContentType: r.Header.Get("Content-Type"),
	})
	return body
}

func (f *fakeCRM) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeCRM) callsTo(method, path string) []recordedCall {
	var out []recordedCall
	for _, c := range f.recorded() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeCRM) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeCRM) createCustomer(w http.ResponseWriter, r *http.Request) {
	body := f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		http.Error(w, `{"error":"write failed"}`, http.StatusInternalServerError)
		return
	}
	body["id"] = f.newID("cust")
	f.customers = append(f.customers, body)
	writeJSON(w, http.StatusCreated, body)
}

func (f *fakeCRM) searchCustomers(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	matches := []map[string]any{}
	phone, email := r.URL.Query().Get("phone"), r.URL.Query().Get("email")
	for _, c := range f.customers {
		if (phone != "" && c["phone"] == phone) || (email != "" && c["email"] == email) {
			matches = append(matches, c)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": matches})
}

func (f *fakeCRM) getCustomer(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c["id"] == r.PathValue("id") {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
}

func (f *fakeCRM) patchCustomer(w http.ResponseWriter, r *http.Request) {
	body := f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c["id"] == r.PathValue("id") {
			for k, v := range body {
				c[k] = v
			}
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
}

func (f *fakeCRM) createAppointment(w http.ResponseWriter, r *http.Request) {
	body := f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		http.Error(w, `{"error":"write failed"}`, http.StatusInternalServerError)
		return
	}
	id := f.newID("appt")
	body["id"] = id
	f.appointments[id] = body
	writeJSON(w, http.StatusCreated, body)
}

func (f *fakeCRM) listAppointments(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	out := []map[string]any{}
	for _, a := range f.appointments {
		if a["customer_id"] == r.URL.Query().Get("customer_id") {
			out = append(out, a)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

func (f *fakeCRM) getAppointment(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.appointments[r.PathValue("id")]; ok {
		writeJSON(w, http.StatusOK, a)
		return
	}
	http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
}

func (f *fakeCRM) patchAppointment(w http.ResponseWriter, r *http.Request) {
	body := f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	for k, v := range body {
		a[k] = v
	}
	writeJSON(w, http.StatusOK, a)
}

func (f *fakeCRM) listSlots(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		http.Error(w, "availability failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available_slots": f.slots})
}

func (f *fakeCRM) listServices(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		http.Error(w, "services failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": f.services})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// failingSearchTransport fails every customer search at the transport level
// and forwards everything else.
type failingSearchTransport struct {
	next http.RoundTripper
	mu   sync.Mutex
	seen []string
}

func (t *failingSearchTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.seen = append(t.seen, r.Method+" "+r.URL.Path)
	t.mu.Unlock()
	if strings.HasSuffix(r.URL.Path, "/customers/search") {
		return nil, errors.New("connection reset by peer")
	}
	return t.next.RoundTrip(r)
}

type testEnv struct {
	crm    *fakeCRM
	client *Client
	logs   *bytes.Buffer
	server *httptest.Server
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	fake := newFakeCRM()
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	logs := &bytes.Buffer{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	client := New(Config{APIKey: "test-key", BaseURL: ts.URL + "/"}, logging.NewWithWriter(logs, "debug"), opts...)
	t.Cleanup(client.Close)
	return &testEnv{crm: fake, client: client, logs: logs, server: ts}
}

func (e *testEnv) failureLogCount() int {
	return strings.Count(e.logs.String(), `"msg":"crm operation failed"`)
}
