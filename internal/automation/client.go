// Package automation forwards booking and call events to workflow platforms
// (Make.com scenarios, Zapier zaps) through their inbound webhooks.
package automation

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

	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

const (
	ProviderMakecom = "makecom"
	ProviderZapier  = "zapier"

	defaultTimeout = 30 * time.Second
)

// ErrNotConfigured is returned when no webhook URL is set for the provider.
var ErrNotConfigured = errors.New("automation: webhook not configured")

// Client posts events to one workflow webhook.
type Client struct {
	provider   string
	webhookURL string
	typeField  string
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time
}

// New selects the client for provider ("makecom" or "zapier").
func New(provider, makecomURL, zapierURL string, logger *logging.Logger) (*Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderMakecom, "make", "make.com":
		return NewMakecom(makecomURL, logger), nil
	case ProviderZapier:
		return NewZapier(zapierURL, logger), nil
	default:
		return nil, fmt.Errorf("automation: unsupported provider %q", provider)
	}
}

// NewMakecom builds a Make.com client. Make.com scenarios route on "workflow_type".
func NewMakecom(webhookURL string, logger *logging.Logger) *Client {
	return newClient(ProviderMakecom, webhookURL, "workflow_type", logger)
}

// NewZapier builds a Zapier client. Zaps filter on "event_type".
func NewZapier(webhookURL string, logger *logging.Logger) *Client {
	return newClient(ProviderZapier, webhookURL, "event_type", logger)
}

func newClient(provider, webhookURL, typeField string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		provider:   provider,
		webhookURL: strings.TrimSpace(webhookURL),
		typeField:  typeField,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Provider returns the platform name.
func (c *Client) Provider() string {
	if c == nil {
		return ""
	}
	return c.provider
}

// Trigger posts data tagged with eventType. A nil client or an empty URL
// returns ErrNotConfigured.
func (c *Client) Trigger(ctx context.Context, eventType string, data map[string]any) error {
	if c == nil || c.webhookURL == "" {
		return ErrNotConfigured
	}
	payload := make(map[string]any, len(data)+3)
	for k, v := range data {
		payload[k] = v
	}
	payload[c.typeField] = eventType
	payload["source"] = booking.SourceTag
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = c.now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("automation: marshal %s: %w", eventType, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("automation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("automation: %s %s: %w", c.provider, eventType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return fmt.Errorf("automation: %s returned %d: %s", c.provider, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	c.logger.Info("automation event triggered", "provider", c.provider, "event", eventType)
	return nil
}
