package handlers

import (
	"context"
	"net/http"

	"github.com/wolfman30/phone-assistant/internal/calls"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

type statsReader interface {
	CallStats(ctx context.Context) (calls.CallStats, error)
	AppointmentStats(ctx context.Context) (map[string]int64, error)
}

// AnalyticsHandler reports call and appointment counters.
type AnalyticsHandler struct {
	stats  statsReader
	logger *logging.Logger
}

func NewAnalyticsHandler(stats statsReader, logger *logging.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AnalyticsHandler{stats: stats, logger: logger}
}

// Calls handles GET /analytics/calls.
func (h *AnalyticsHandler) Calls(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		unavailable(w, "analytics")
		return
	}
	stats, err := h.stats.CallStats(r.Context())
	if err != nil {
		h.logger.Error("call analytics failed", "error", err)
		unavailable(w, "analytics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Appointments handles GET /analytics/appointments.
func (h *AnalyticsHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		unavailable(w, "analytics")
		return
	}
	counts, err := h.stats.AppointmentStats(r.Context())
	if err != nil {
		h.logger.Error("appointment analytics failed", "error", err)
		unavailable(w, "analytics")
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_appointments": counts["scheduled"],
		"scheduled":          counts["scheduled"],
		"cancelled":          counts["cancelled"],
		"rescheduled":        counts["rescheduled"],
		"total_events":       total,
	})
}
