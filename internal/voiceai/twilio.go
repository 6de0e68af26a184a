package voiceai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/phone-assistant/pkg/logging"
)

var twilioTracer = otel.Tracer("phone-assistant.internal.voiceai.twilio")

const twilioBaseURL = "https://api.twilio.com"

// Twilio places and inspects calls with Twilio's Programmable Voice API.
// Conversation handling happens through TwiML on the inbound webhook.
type Twilio struct {
	accountSID    string
	authToken     string
	from          string
	baseURL       string
	publicBaseURL string
	httpClient    *http.Client
	logger        *logging.Logger
}

// NewTwilio builds a Twilio voice client.
func NewTwilio(accountSID, authToken, from, baseURL, publicBaseURL string, logger *logging.Logger) *Twilio {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = twilioBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Twilio{
		accountSID:    accountSID,
		authToken:     authToken,
		from:          from,
		baseURL:       strings.TrimRight(baseURL, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: defaultTimeout},
		logger:        logger,
	}
}

func (t *Twilio) Name() string { return ProviderTwilio }

// CreateAssistant is not offered by Twilio; assistants are driven by TwiML.
func (t *Twilio) CreateAssistant(context.Context, map[string]any) (map[string]any, error) {
	return nil, ErrUnsupported
}

// InitiateCall dials phoneNumber. Without a "twiml" or "url" option the call
// is pointed at our inbound webhook so it gets the standard greeting.
func (t *Twilio) InitiateCall(ctx context.Context, phoneNumber string, opts map[string]any) (map[string]any, error) {
	if t.accountSID == "" || t.authToken == "" {
		return nil, errors.New("voiceai: twilio credentials missing")
	}
	from := stringOpt(opts, "from", t.from)
	if from == "" {
		return nil, errors.New("voiceai: twilio from number required")
	}

	ctx, span := twilioTracer.Start(ctx, "voiceai.twilio.initiate_call")
	defer span.End()
	span.SetAttributes(attribute.String("phone_assistant.to", phoneNumber))

	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("From", from)
	switch {
	case stringOpt(opts, "twiml", "") != "":
		form.Set("Twiml", stringOpt(opts, "twiml", ""))
	case stringOpt(opts, "url", "") != "":
		form.Set("Url", stringOpt(opts, "url", ""))
	case t.publicBaseURL != "":
		form.Set("Url", t.publicBaseURL+"/webhooks/twilio")
	default:
		msg := stringOpt(opts, "message", DefaultGreeting)
		twiml, err := RenderSay(msg)
		if err != nil {
			return nil, err
		}
		form.Set("Twiml", string(twiml))
	}

	var out map[string]any
	if err := t.doForm(ctx, http.MethodPost, t.callsPath(""), form, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("initiate call: %w", err)
	}
	t.logger.Info("twilio call created", "to", phoneNumber, "sid", out["sid"])
	return out, nil
}

func (t *Twilio) GetCall(ctx context.Context, callID string) (map[string]any, error) {
	var out map[string]any
	if err := t.doForm(ctx, http.MethodGet, t.callsPath(callID), nil, &out); err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return out, nil
}

func (t *Twilio) callsPath(callSID string) string {
	p := "/2010-04-01/Accounts/" + url.PathEscape(t.accountSID) + "/Calls"
	if callSID != "" {
		p += "/" + url.PathEscape(callSID)
	}
	return p + ".json"
}

func (t *Twilio) doForm(ctx context.Context, method, path string, form url.Values, out any) error {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(t.logger, ProviderTwilio, path, resp, out)
}

func stringOpt(opts map[string]any, key, fallback string) string {
	if v, ok := opts[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
