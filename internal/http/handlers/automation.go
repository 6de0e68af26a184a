package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/phone-assistant/internal/automation"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

// EventTrigger sends a workflow event to an automation platform.
type EventTrigger interface {
	Trigger(ctx context.Context, eventType string, data map[string]any) error
}

// AutomationFactory returns the workflow client for a provider name.
type AutomationFactory func(provider string) (EventTrigger, error)

var triggerActions = map[string]string{
	"appointment_created":     automation.EventAppointmentBooked,
	"appointment_booked":      automation.EventAppointmentBooked,
	"appointment_cancelled":   automation.EventAppointmentCancelled,
	"appointment_rescheduled": automation.EventAppointmentRescheduled,
	"customer_created":        automation.EventCustomerCreated,
	"call_ended":              automation.EventCallEnded,
}

// AutomationHandler lets operators fire workflow events by hand.
type AutomationHandler struct {
	defaultClient EventTrigger
	clients       AutomationFactory
	logger        *logging.Logger
}

func NewAutomationHandler(defaultClient EventTrigger, clients AutomationFactory, logger *logging.Logger) *AutomationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AutomationHandler{defaultClient: defaultClient, clients: clients, logger: logger}
}

type triggerRequest struct {
	Action   string         `json:"action"`
	Data     map[string]any `json:"data"`
	Provider string         `json:"provider"`
}

// Trigger handles POST /automation/trigger.
func (h *AutomationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	event, ok := triggerActions[strings.TrimSpace(req.Action)]
	if !ok {
		jsonError(w, "unknown action: "+req.Action, http.StatusBadRequest)
		return
	}

	client := h.defaultClient
	if req.Provider != "" && h.clients != nil {
		c, err := h.clients(req.Provider)
		if err != nil {
			jsonError(w, "unsupported automation provider", http.StatusBadRequest)
			return
		}
		client = c
	}
	if client == nil {
		unavailable(w, "automation")
		return
	}

	if err := client.Trigger(r.Context(), event, req.Data); err != nil {
		if !errors.Is(err, automation.ErrNotConfigured) {
			h.logger.Error("manual automation trigger failed", "action", req.Action, "error", err)
		}
		unavailable(w, "automation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": event})
}
