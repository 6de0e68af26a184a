package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/wolfman30/phone-assistant/internal/api/router"
	"github.com/wolfman30/phone-assistant/internal/automation"
	appconfig "github.com/wolfman30/phone-assistant/internal/config"
	"github.com/wolfman30/phone-assistant/internal/crm"
	"github.com/wolfman30/phone-assistant/internal/http/handlers"
	"github.com/wolfman30/phone-assistant/internal/observability/metrics"
	"github.com/wolfman30/phone-assistant/internal/voiceai"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

// Options overrides the defaults used by Build.
type Options struct {
	// Registry receives the application metrics. Defaults to the prometheus
	// default registry, which /metrics serves.
	Registry *prometheus.Registry
	// Redis replaces the client built from cfg.
	Redis *redis.Client
	// CalendarOptions are passed to the Google Calendar client.
	CalendarOptions []option.ClientOption
}

// App is the assembled HTTP service.
type App struct {
	Handler http.Handler
	CRM     *crm.Client
	Redis   *redis.Client
}

// Close releases the CRM connection pool and the Redis client.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CRM != nil {
		a.CRM.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

// Build wires every component from cfg.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		registerer     prometheus.Registerer = prometheus.DefaultRegisterer
		metricsHandler                       = promhttp.Handler()
	)
	if opts.Registry != nil {
		registerer = opts.Registry
		metricsHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
	}
	crmMetrics := metrics.NewCRMMetrics(registerer)
	webhookMetrics := metrics.NewWebhookMetrics(registerer)

	crmClient := crm.New(crm.Config{
		APIKey:  cfg.CRMAPIKey,
		BaseURL: cfg.CRMBaseURL,
		Timeout: cfg.CRMTimeout,
	}, logger, crm.WithMetrics(crmMetrics))

	scheduler, err := BuildScheduler(ctx, cfg, crmClient, logger, opts.CalendarOptions...)
	if err != nil {
		crmClient.Close()
		return nil, err
	}
	logger.Info("scheduling backend selected", "platform", scheduler.Name())
	services := BuildServiceSource(cfg, crmClient)

	rdb := opts.Redis
	if rdb == nil {
		rdb = BuildRedisClient(ctx, cfg, logger, true)
	}
	callStore := BuildCallStore(rdb, logger)

	automationClient, err := automation.New(cfg.AutomationPlatform, cfg.MakecomWebhookURL, cfg.ZapierWebhookURL, logger)
	if err != nil {
		logger.Warn("automation disabled", "platform", cfg.AutomationPlatform, "error", err)
	}

	loc := cfg.Location()
	functionsCfg := voiceai.FunctionsConfig{
		Scheduler:       scheduler,
		Services:        services,
		Location:        loc,
		DefaultDuration: cfg.DefaultAppointmentDuration,
		Logger:          logger,
	}
	schedulingCfg := handlers.SchedulingHandlerConfig{
		Scheduler:       scheduler,
		Services:        services,
		Location:        loc,
		DefaultDuration: cfg.DefaultAppointmentDuration,
		Logger:          logger,
	}
	webhookCfg := handlers.WebhookConfig{
		CRM:             crmClient,
		VapiSecret:      cfg.VapiWebhookSecret,
		RetellSecret:    cfg.RetellWebhookSecret,
		TwilioAuthToken: cfg.TwilioAuthToken,
		PublicBaseURL:   cfg.PublicBaseURL,
		Metrics:         webhookMetrics,
		Logger:          logger,
	}
	var analytics *handlers.AnalyticsHandler
	if callStore != nil {
		functionsCfg.Calls = callStore
		schedulingCfg.Stats = callStore
		webhookCfg.Calls = callStore
		analytics = handlers.NewAnalyticsHandler(callStore, logger)
	}
	var defaultTrigger handlers.EventTrigger
	if automationClient != nil {
		functionsCfg.Notifier = automationClient
		schedulingCfg.Notifier = automationClient
		webhookCfg.Automation = automationClient
		defaultTrigger = automationClient
	}
	webhookCfg.Functions = voiceai.NewFunctions(functionsCfg)

	providers := BuildVoiceProviders(cfg, logger)
	automationFactory := func(provider string) (handlers.EventTrigger, error) {
		c, err := automation.New(provider, cfg.MakecomWebhookURL, cfg.ZapierWebhookURL, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	var pingRedis func(ctx context.Context) error
	if rdb != nil {
		pingRedis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	handler := router.New(&router.Config{
		Logger: logger,
		System: handlers.NewSystemHandler(handlers.PublicConfig{
			BusinessName:       cfg.BusinessName,
			BusinessPhone:      cfg.BusinessPhone,
			BusinessEmail:      cfg.BusinessEmail,
			BusinessHours:      cfg.BusinessHours,
			Timezone:           loc.String(),
			VoiceAIPlatform:    cfg.VoiceAIPlatform,
			SchedulingPlatform: scheduler.Name(),
			AutomationPlatform: cfg.AutomationPlatform,
		}, pingRedis),
		Webhooks:           handlers.NewWebhookHandler(webhookCfg),
		Scheduling:         handlers.NewSchedulingHandler(schedulingCfg),
		CRM:                handlers.NewCRMHandler(crmClient, logger),
		VoiceAI:            handlers.NewVoiceAIHandler(cfg.VoiceAIPlatform, providers, logger),
		Automation:         handlers.NewAutomationHandler(defaultTrigger, automationFactory, logger),
		Analytics:          analytics,
		APISecretKey:       cfg.APISecretKey,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if cfg.APISecretKey == "" {
		logger.Warn("API_SECRET_KEY not set; operator endpoints will reject every request")
	}

	return &App{Handler: handler, CRM: crmClient, Redis: rdb}, nil
}

// BuildVoiceProviders returns a factory for the configured voice platforms.
func BuildVoiceProviders(cfg *appconfig.Config, logger *logging.Logger) handlers.ProviderFactory {
	providerCfg := voiceai.Config{
		VapiAPIKey:        cfg.VapiAPIKey,
		RetellAPIKey:      cfg.RetellAPIKey,
		RetellFromNumber:  cfg.RetellFromNumber,
		RetellAgentID:     cfg.RetellAgentID,
		TwilioAccountSID:  cfg.TwilioAccountSID,
		TwilioAuthToken:   cfg.TwilioAuthToken,
		TwilioPhoneNumber: cfg.TwilioPhoneNumber,
		PublicBaseURL:     cfg.PublicBaseURL,
	}
	return func(name string) (voiceai.Provider, error) {
		return voiceai.New(name, providerCfg, logger)
	}
}
