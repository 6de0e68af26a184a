package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"

	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/internal/calcom"
	appconfig "github.com/wolfman30/phone-assistant/internal/config"
	"github.com/wolfman30/phone-assistant/internal/crm"
	"github.com/wolfman30/phone-assistant/internal/gcal"
	"github.com/wolfman30/phone-assistant/internal/voiceai"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

// Scheduling platform names accepted in SCHEDULING_PLATFORM.
const (
	PlatformCRM            = "crm"
	PlatformGoogleCalendar = "google_calendar"
	PlatformCalcom         = "calcom"
)

// BuildScheduler selects the booking backend named by cfg.SchedulingPlatform.
// gcalOpts are passed to the Calendar client and exist for tests.
func BuildScheduler(ctx context.Context, cfg *appconfig.Config, crmClient *crm.Client, logger *logging.Logger, gcalOpts ...option.ClientOption) (booking.Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch platform := strings.ToLower(strings.TrimSpace(cfg.SchedulingPlatform)); platform {
	case PlatformCRM, "":
		if crmClient == nil {
			return nil, fmt.Errorf("bootstrap: crm scheduling requires a crm client")
		}
		return crm.NewAdapter(crmClient), nil
	case PlatformGoogleCalendar, "gcal", "google":
		client, err := gcal.NewClient(ctx, gcal.Config{
			CredentialsPath: cfg.GoogleCalendarCredentialsPath,
			CalendarID:      cfg.GoogleCalendarID,
			Location:        cfg.Location(),
		}, logger, gcalOpts...)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: google calendar: %w", err)
		}
		return gcal.NewAdapter(client), nil
	case PlatformCalcom, "cal.com":
		if strings.TrimSpace(cfg.CalcomAPIKey) == "" {
			logger.Warn("calcom scheduling selected without CALCOM_API_KEY")
		}
		return calcom.NewAdapter(calcom.NewClient(cfg.CalcomAPIKey, cfg.CalcomBaseURL, logger), 0), nil
	default:
		return nil, fmt.Errorf("bootstrap: unsupported scheduling platform %q", platform)
	}
}

// BuildServiceSource reads the service catalog from the CRM when it is the
// scheduling backend, otherwise serves the built-in catalog.
func BuildServiceSource(cfg *appconfig.Config, crmClient *crm.Client) voiceai.ServiceSource {
	if cfg != nil && crmClient != nil && strings.EqualFold(strings.TrimSpace(cfg.SchedulingPlatform), PlatformCRM) {
		return voiceai.NewCRMServices(crmClient, voiceai.DefaultServices)
	}
	return voiceai.StaticServices(voiceai.DefaultServices)
}
