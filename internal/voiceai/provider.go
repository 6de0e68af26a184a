// Package voiceai talks to the hosted voice assistant platforms (Vapi, Retell,
// Twilio) and executes the tool calls their assistants make mid-conversation.
package voiceai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const (
	ProviderVapi   = "vapi"
	ProviderRetell = "retell"
	ProviderTwilio = "twilio"

	defaultTimeout = 30 * time.Second
)

var (
	// ErrUnsupported is returned for operations a platform does not offer.
	ErrUnsupported = errors.New("voiceai: operation not supported by provider")
	// ErrUnknownProvider is returned by New for an unrecognised platform name.
	ErrUnknownProvider = errors.New("voiceai: unknown provider")
)

// Provider is a hosted voice assistant platform.
type Provider interface {
	Name() string
	CreateAssistant(ctx context.Context, cfg map[string]any) (map[string]any, error)
	InitiateCall(ctx context.Context, phoneNumber string, opts map[string]any) (map[string]any, error)
	GetCall(ctx context.Context, callID string) (map[string]any, error)
}

// Config carries credentials for every supported platform. Only the selected
// platform's fields need to be set.
type Config struct {
	VapiAPIKey  string
	VapiBaseURL string

	RetellAPIKey     string
	RetellBaseURL    string
	RetellFromNumber string
	RetellAgentID    string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioBaseURL     string

	// PublicBaseURL is where Twilio reaches our webhooks for outbound calls.
	PublicBaseURL string
}

// New returns the provider client for name.
func New(name string, cfg Config, logger *logging.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderVapi:
		return NewVapi(cfg.VapiAPIKey, cfg.VapiBaseURL, logger), nil
	case ProviderRetell:
		return NewRetell(cfg.RetellAPIKey, cfg.RetellBaseURL, cfg.RetellFromNumber, cfg.RetellAgentID, logger), nil
	case ProviderTwilio:
		return NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.TwilioBaseURL, cfg.PublicBaseURL, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// restClient is the JSON transport shared by the bearer-token platforms.
type restClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

func newRESTClient(name, apiKey, baseURL, fallbackURL string, logger *logging.Logger) restClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = fallbackURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return restClient{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

func (c restClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(c.logger, c.name, path, resp, out)
}

func decodeResponse(logger *logging.Logger, name, path string, resp *http.Response, out any) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		logger.Warn(name+" API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return fmt.Errorf("%s API returned %d: %s", name, resp.StatusCode, msg)
	}
	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mergeMaps(base map[string]any, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
