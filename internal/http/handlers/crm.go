package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/phone-assistant/internal/crm"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

type crmLookup interface {
	GetCustomer(ctx context.Context, id string) (*crm.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*crm.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*crm.Customer, error)
	GetCustomerAppointments(ctx context.Context, customerID string) ([]crm.Appointment, error)
}

// CRMHandler exposes read-only customer lookups.
type CRMHandler struct {
	client crmLookup
	logger *logging.Logger
}

func NewCRMHandler(client crmLookup, logger *logging.Logger) *CRMHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CRMHandler{client: client, logger: logger}
}

// SearchCustomer handles GET /crm/customers/search?phone=...|email=...
// Phone takes precedence when both are given.
func (h *CRMHandler) SearchCustomer(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if phone == "" && email == "" {
		jsonError(w, "phone or email is required", http.StatusBadRequest)
		return
	}
	if h.client == nil {
		unavailable(w, "crm")
		return
	}

	var (
		customer *crm.Customer
		err      error
	)
	if phone != "" {
		customer, err = h.client.FindCustomerByPhone(r.Context(), phone)
	} else {
		customer, err = h.client.FindCustomerByEmail(r.Context(), email)
	}
	h.writeCustomer(w, customer, err)
}

// GetCustomer handles GET /crm/customers/{id}.
func (h *CRMHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		unavailable(w, "crm")
		return
	}
	customer, err := h.client.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	h.writeCustomer(w, customer, err)
}

// CustomerAppointments handles GET /crm/customers/{id}/appointments.
func (h *CRMHandler) CustomerAppointments(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		unavailable(w, "crm")
		return
	}
	appts, err := h.client.GetCustomerAppointments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		unavailable(w, "crm")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (h *CRMHandler) writeCustomer(w http.ResponseWriter, customer *crm.Customer, err error) {
	switch {
	case crm.IsNotFound(err):
		jsonError(w, "customer not found", http.StatusNotFound)
	case err != nil:
		unavailable(w, "crm")
	default:
		writeJSON(w, http.StatusOK, customer)
	}
}
