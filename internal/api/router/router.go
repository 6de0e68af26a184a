package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/phone-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/phone-assistant/internal/http/middleware"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	System             *handlers.SystemHandler
	Webhooks           *handlers.WebhookHandler
	Scheduling         *handlers.SchedulingHandler
	CRM                *handlers.CRMHandler
	VoiceAI            *handlers.VoiceAIHandler
	Automation         *handlers.AutomationHandler
	Analytics          *handlers.AnalyticsHandler
	APISecretKey       string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		if cfg.System != nil {
			public.Get("/health", cfg.System.Health)
			public.Get("/config", cfg.System.Config)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webhooks != nil {
			public.Route("/webhooks", func(r chi.Router) {
				r.Post("/vapi", cfg.Webhooks.Vapi)
				r.Post("/retell", cfg.Webhooks.Retell)
				r.Post("/twilio", cfg.Webhooks.Twilio)
			})
			public.Post("/functions/execute", cfg.Webhooks.ExecuteFunction)
		}
	})

	// Operator API (static bearer secret or HS256 JWT signed with it)
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.APIAuth(cfg.APISecretKey))

		if cfg.Scheduling != nil {
			api.Route("/scheduling", func(r chi.Router) {
				r.Get("/availability", cfg.Scheduling.Availability)
				r.Post("/book", cfg.Scheduling.Book)
				r.Delete("/appointment/{id}", cfg.Scheduling.Cancel)
				r.Patch("/appointment/{id}", cfg.Scheduling.Reschedule)
				r.Get("/services", cfg.Scheduling.Services)
			})
		}
		if cfg.CRM != nil {
			api.Route("/crm/customers", func(r chi.Router) {
				r.Get("/search", cfg.CRM.SearchCustomer)
				r.Get("/{id}", cfg.CRM.GetCustomer)
				r.Get("/{id}/appointments", cfg.CRM.CustomerAppointments)
			})
		}
		if cfg.VoiceAI != nil {
			api.Route("/voice-ai", func(r chi.Router) {
				r.Post("/create-assistant", cfg.VoiceAI.CreateAssistant)
				r.Post("/initiate-call", cfg.VoiceAI.InitiateCall)
				r.Get("/call/{id}", cfg.VoiceAI.GetCall)
			})
		}
		if cfg.Automation != nil {
			api.Post("/automation/trigger", cfg.Automation.Trigger)
		}
		if cfg.Analytics != nil {
			api.Route("/analytics", func(r chi.Router) {
				r.Get("/calls", cfg.Analytics.Calls)
				r.Get("/appointments", cfg.Analytics.Appointments)
			})
		}
	})

	return r
}
