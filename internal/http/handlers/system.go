package handlers

import (
	"context"
	"net/http"
	"time"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// PublicConfig is the non-secret configuration shown on GET /config.
type PublicConfig struct {
	BusinessName       string `json:"business_name"`
	BusinessPhone      string `json:"business_phone,omitempty"`
	BusinessEmail      string `json:"business_email,omitempty"`
	BusinessHours      string `json:"business_hours,omitempty"`
	Timezone           string `json:"timezone"`
	VoiceAIPlatform    string `json:"voice_ai_platform"`
	SchedulingPlatform string `json:"scheduling_platform"`
	AutomationPlatform string `json:"automation_platform"`
}

// SystemHandler serves health and configuration.
type SystemHandler struct {
	cfg       PublicConfig
	pingRedis func(ctx context.Context) error
	now       func() time.Time
}

// NewSystemHandler builds the handler. pingRedis may be nil.
func NewSystemHandler(cfg PublicConfig, pingRedis func(ctx context.Context) error) *SystemHandler {
	return &SystemHandler{cfg: cfg, pingRedis: pingRedis, now: time.Now}
}

// Health handles GET /health. Redis is reported but does not fail the check.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   Version,
	}
	if h.pingRedis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pingRedis(ctx); err != nil {
			resp["redis"] = "unavailable"
		} else {
			resp["redis"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Config handles GET /config.
func (h *SystemHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg)
}
