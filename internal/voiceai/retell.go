package voiceai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const retellBaseURL = "https://api.retellai.com"

// Retell is a client for the Retell AI REST API.
type Retell struct {
	rest       restClient
	fromNumber string
	agentID    string
}

// NewRetell constructs a Retell client. fromNumber and agentID are used for
// outbound calls unless the call options override them.
func NewRetell(apiKey, baseURL, fromNumber, agentID string, logger *logging.Logger) *Retell {
	return &Retell{
		rest:       newRESTClient(ProviderRetell, apiKey, baseURL, retellBaseURL, logger),
		fromNumber: fromNumber,
		agentID:    agentID,
	}
}

func (r *Retell) Name() string { return ProviderRetell }

// CreateAssistant creates a Retell agent. A nil cfg uses DefaultRetellAgent.
func (r *Retell) CreateAssistant(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	if len(cfg) == 0 {
		cfg = DefaultRetellAgent("")
	}
	var out map[string]any
	if err := r.rest.doJSON(ctx, http.MethodPost, "/create-agent", cfg, &out); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return out, nil
}

func (r *Retell) InitiateCall(ctx context.Context, phoneNumber string, opts map[string]any) (map[string]any, error) {
	base := map[string]any{"from_number": r.fromNumber}
	if r.agentID != "" {
		base["override_agent_id"] = r.agentID
	}
	body := mergeMaps(base, opts)
	body["to_number"] = phoneNumber
	if body["from_number"] == "" {
		return nil, fmt.Errorf("initiate call: from_number not configured")
	}
	var out map[string]any
	if err := r.rest.doJSON(ctx, http.MethodPost, "/v2/create-phone-call", body, &out); err != nil {
		return nil, fmt.Errorf("initiate call: %w", err)
	}
	return out, nil
}

func (r *Retell) GetCall(ctx context.Context, callID string) (map[string]any, error) {
	var out map[string]any
	if err := r.rest.doJSON(ctx, http.MethodGet, "/v2/get-call/"+url.PathEscape(callID), nil, &out); err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return out, nil
}
