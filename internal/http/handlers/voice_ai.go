package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/phone-assistant/internal/voiceai"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

// ProviderFactory returns the voice platform client for name.
type ProviderFactory func(name string) (voiceai.Provider, error)

// VoiceAIHandler manages assistants and outbound calls on the voice platforms.
type VoiceAIHandler struct {
	defaultProvider string
	providers       ProviderFactory
	logger          *logging.Logger
}

func NewVoiceAIHandler(defaultProvider string, providers ProviderFactory, logger *logging.Logger) *VoiceAIHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceAIHandler{defaultProvider: defaultProvider, providers: providers, logger: logger}
}

// CreateAssistant handles POST /voice-ai/create-assistant. An optional
// "provider" key selects the platform; the remaining keys are the assistant
// configuration. An empty configuration creates the default booking assistant.
func (h *VoiceAIHandler) CreateAssistant(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	provider, ok := h.resolve(w, body)
	if !ok {
		return
	}
	result, err := provider.CreateAssistant(r.Context(), body)
	if err != nil {
		h.fail(w, provider.Name(), "create assistant", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "assistant": result})
}

// InitiateCall handles POST /voice-ai/initiate-call.
func (h *VoiceAIHandler) InitiateCall(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	phone, _ := body["phone_number"].(string)
	phone = strings.TrimSpace(phone)
	if phone == "" {
		jsonError(w, "phone_number is required", http.StatusBadRequest)
		return
	}
	delete(body, "phone_number")
	provider, ok := h.resolve(w, body)
	if !ok {
		return
	}
	result, err := provider.InitiateCall(r.Context(), phone, body)
	if err != nil {
		h.fail(w, provider.Name(), "initiate call", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "call": result})
}

// GetCall handles GET /voice-ai/call/{id}?provider=name.
func (h *VoiceAIHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.resolve(w, map[string]any{"provider": r.URL.Query().Get("provider")})
	if !ok {
		return
	}
	result, err := provider.GetCall(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, provider.Name(), "get call", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "call": result})
}

// resolve picks the provider named in body (removing the key) or the default.
func (h *VoiceAIHandler) resolve(w http.ResponseWriter, body map[string]any) (voiceai.Provider, bool) {
	name, _ := body["provider"].(string)
	delete(body, "provider")
	if strings.TrimSpace(name) == "" {
		name = h.defaultProvider
	}
	if h.providers == nil {
		unavailable(w, "voice ai")
		return nil, false
	}
	provider, err := h.providers(name)
	if err != nil {
		if errors.Is(err, voiceai.ErrUnknownProvider) {
			jsonError(w, "unsupported voice ai provider", http.StatusBadRequest)
			return nil, false
		}
		h.logger.Error("voice provider unavailable", "provider", name, "error", err)
		unavailable(w, "voice ai")
		return nil, false
	}
	return provider, true
}

func (h *VoiceAIHandler) fail(w http.ResponseWriter, provider, op string, err error) {
	if errors.Is(err, voiceai.ErrUnsupported) {
		jsonError(w, op+" is not supported by "+provider, http.StatusBadRequest)
		return
	}
	h.logger.Error("voice ai request failed", "provider", provider, "op", op, "error", err)
	unavailable(w, "voice ai")
}
