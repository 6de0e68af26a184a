package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	PublicBaseURL      string
	LogLevel           string
	APISecretKey       string
	CORSAllowedOrigins []string

	// CRM
	CRMAPIKey  string
	CRMBaseURL string
	CRMTimeout time.Duration

	// Scheduling backends
	SchedulingPlatform            string
	GoogleCalendarCredentialsPath string
	GoogleCalendarID              string
	CalcomAPIKey                  string
	CalcomBaseURL                 string
	DefaultAppointmentDuration    int

	// Automation
	AutomationPlatform string
	MakecomWebhookURL  string
	ZapierWebhookURL   string

	// Voice AI
	VoiceAIPlatform     string
	VapiAPIKey          string
	VapiWebhookSecret   string
	RetellAPIKey        string
	RetellWebhookSecret string
	RetellFromNumber    string
	RetellAgentID       string
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioPhoneNumber   string

	// Business information
	BusinessName  string
	BusinessPhone string
	BusinessEmail string
	BusinessHours string
	Timezone      string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		APISecretKey:       getEnv("API_SECRET_KEY", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		CRMAPIKey:  getEnv("CRM_API_KEY", ""),
		CRMBaseURL: getEnv("CRM_BASE_URL", ""),
		CRMTimeout: getEnvAsDuration("CRM_TIMEOUT", 30*time.Second),

		SchedulingPlatform:            strings.ToLower(strings.TrimSpace(getEnv("SCHEDULING_PLATFORM", "crm"))),
		GoogleCalendarCredentialsPath: getEnv("GOOGLE_CALENDAR_CREDENTIALS_PATH", ""),
		GoogleCalendarID:              getEnv("GOOGLE_CALENDAR_ID", "primary"),
		CalcomAPIKey:                  getEnv("CALCOM_API_KEY", ""),
		CalcomBaseURL:                 getEnv("CALCOM_BASE_URL", "https://api.cal.com/v1"),
		DefaultAppointmentDuration:    getEnvAsInt("DEFAULT_APPOINTMENT_DURATION", 60),

		AutomationPlatform: strings.ToLower(strings.TrimSpace(getEnv("AUTOMATION_PLATFORM", "makecom"))),
		MakecomWebhookURL:  getEnv("MAKECOM_WEBHOOK_URL", ""),
		ZapierWebhookURL:   getEnv("ZAPIER_WEBHOOK_URL", ""),

		VoiceAIPlatform:     strings.ToLower(strings.TrimSpace(getEnv("VOICE_AI_PLATFORM", "vapi"))),
		VapiAPIKey:          getEnv("VAPI_API_KEY", ""),
		VapiWebhookSecret:   getEnv("VAPI_WEBHOOK_SECRET", ""),
		RetellAPIKey:        getEnv("RETELL_API_KEY", ""),
		RetellWebhookSecret: getEnv("RETELL_WEBHOOK_SECRET", ""),
		RetellFromNumber:    getEnv("RETELL_FROM_NUMBER", ""),
		RetellAgentID:       getEnv("RETELL_AGENT_ID", ""),
		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber:   getEnv("TWILIO_PHONE_NUMBER", ""),

		BusinessName:  getEnv("BUSINESS_NAME", "Your Business Name"),
		BusinessPhone: getEnv("BUSINESS_PHONE", ""),
		BusinessEmail: getEnv("BUSINESS_EMAIL", ""),
		BusinessHours: getEnv("BUSINESS_HOURS", "Monday-Friday 9 AM to 6 PM"),
		Timezone:      getEnv("TIMEZONE", "UTC"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// LoadDotEnv populates the process environment from a .env file. Variables
// already set win over file values. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Location resolves the configured business timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
