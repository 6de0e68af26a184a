package voiceai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const vapiBaseURL = "https://api.vapi.ai"

// Vapi is a client for the Vapi REST API.
type Vapi struct {
	rest restClient
}

// NewVapi constructs a Vapi client. An empty baseURL selects the public API.
func NewVapi(apiKey, baseURL string, logger *logging.Logger) *Vapi {
	return &Vapi{rest: newRESTClient(ProviderVapi, apiKey, baseURL, vapiBaseURL, logger)}
}

func (v *Vapi) Name() string { return ProviderVapi }

// CreateAssistant creates an assistant. A nil cfg uses DefaultVapiAssistant.
func (v *Vapi) CreateAssistant(ctx context.Context, cfg map[string]any) (map[string]any, error) {
	if len(cfg) == 0 {
		cfg = DefaultVapiAssistant("", "")
	}
	var out map[string]any
	if err := v.rest.doJSON(ctx, http.MethodPost, "/assistant", cfg, &out); err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return out, nil
}

// InitiateCall places an outbound phone call. opts is merged into the request
// body, typically with assistantId and phoneNumberId.
func (v *Vapi) InitiateCall(ctx context.Context, phoneNumber string, opts map[string]any) (map[string]any, error) {
	body := mergeMaps(opts, map[string]any{
		"customer": map[string]any{"number": phoneNumber},
	})
	var out map[string]any
	if err := v.rest.doJSON(ctx, http.MethodPost, "/call/phone", body, &out); err != nil {
		return nil, fmt.Errorf("initiate call: %w", err)
	}
	return out, nil
}

func (v *Vapi) GetCall(ctx context.Context, callID string) (map[string]any, error) {
	var out map[string]any
	if err := v.rest.doJSON(ctx, http.MethodGet, "/call/"+url.PathEscape(callID), nil, &out); err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return out, nil
}
