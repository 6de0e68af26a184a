package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/phone-assistant/internal/automation"
	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/internal/calls"
	"github.com/wolfman30/phone-assistant/internal/crm"
	"github.com/wolfman30/phone-assistant/internal/observability/metrics"
	"github.com/wolfman30/phone-assistant/internal/voiceai"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

var webhookTracer = otel.Tracer("phone-assistant.internal.http.webhooks")

const (
	twilioGatherPath = "/webhooks/twilio"
	callbackMessage  = "Thank you. A member of our team will call you back shortly to help with your request. Goodbye!"
)

type functionExecutor interface {
	Execute(ctx context.Context, callID, name string, args map[string]any) (map[string]any, error)
}

type callLifecycle interface {
	Start(ctx context.Context, state *calls.State) error
	Get(ctx context.Context, callID string) (*calls.State, error)
	Save(ctx context.Context, state *calls.State) error
	End(ctx context.Context, callID, provider string, durationSeconds int, summary, outcome string) (*calls.State, bool, error)
}

type callNotifier interface {
	CallEnded(ctx context.Context, callID, provider string, durationSeconds int, summary, outcome string) error
	Notify(ctx context.Context, kind, message, recipient, priority string) error
}

type activityLogger interface {
	FindCustomerByPhone(ctx context.Context, phone string) (*crm.Customer, error)
	LogCallActivity(ctx context.Context, activity crm.CallActivity) error
}

// WebhookConfig wires WebhookHandler. Empty secrets disable signature checks
// for that platform.
type WebhookConfig struct {
	Functions       functionExecutor
	Calls           callLifecycle
	Automation      callNotifier
	CRM             activityLogger
	VapiSecret      string
	RetellSecret    string
	TwilioAuthToken string
	PublicBaseURL   string
	Metrics         *metrics.WebhookMetrics
	Logger          *logging.Logger
}

// WebhookHandler receives call lifecycle and tool-call webhooks from the
// voice platforms.
type WebhookHandler struct {
	functions     functionExecutor
	calls         callLifecycle
	automation    callNotifier
	crm           activityLogger
	vapiSecret    string
	retellSecret  string
	twilioToken   string
	publicBaseURL string
	metrics       *metrics.WebhookMetrics
	logger        *logging.Logger
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		functions:     cfg.Functions,
		calls:         cfg.Calls,
		automation:    cfg.Automation,
		crm:           cfg.CRM,
		vapiSecret:    strings.TrimSpace(cfg.VapiSecret),
		retellSecret:  strings.TrimSpace(cfg.RetellSecret),
		twilioToken:   strings.TrimSpace(cfg.TwilioAuthToken),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// Vapi handles POST /webhooks/vapi.
func (h *WebhookHandler) Vapi(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveLatency(voiceai.ProviderVapi, time.Since(start).Seconds()) }()
	ctx, span := webhookTracer.Start(r.Context(), "webhooks.vapi")
	defer span.End()
	r = r.WithContext(ctx)

	body, ok := h.readVerified(w, r, voiceai.ProviderVapi, h.vapiSecret, r.Header.Get("X-Vapi-Signature"))
	if !ok {
		return
	}
	evt, err := voiceai.ParseVapiEvent(body)
	if err != nil {
		h.metrics.ObserveEvent(voiceai.ProviderVapi, "invalid", "rejected")
		jsonError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	span.SetAttributes(attribute.String("call_id", evt.CallID), attribute.String("event", evt.Type))
	if evt.Kind == voiceai.EventFunctionCall {
		result, ok := h.execute(r.Context(), w, evt)
		if !ok {
			return
		}
		if evt.ToolCallID != "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"results": []map[string]any{{"toolCallId": evt.ToolCallID, "result": result}},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
		return
	}
	h.lifecycle(r.Context(), w, evt)
}

// Retell handles POST /webhooks/retell.
func (h *WebhookHandler) Retell(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveLatency(voiceai.ProviderRetell, time.Since(start).Seconds()) }()
	ctx, span := webhookTracer.Start(r.Context(), "webhooks.retell")
	defer span.End()
	r = r.WithContext(ctx)

	body, ok := h.readVerified(w, r, voiceai.ProviderRetell, h.retellSecret, r.Header.Get("X-Retell-Signature"))
	if !ok {
		return
	}
	evt, err := voiceai.ParseRetellEvent(body)
	if err != nil {
		h.metrics.ObserveEvent(voiceai.ProviderRetell, "invalid", "rejected")
		jsonError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	span.SetAttributes(attribute.String("call_id", evt.CallID), attribute.String("event", evt.Type))
	if evt.Kind == voiceai.EventFunctionCall {
		result, ok := h.execute(r.Context(), w, evt)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
	h.lifecycle(r.Context(), w, evt)
}

// Twilio handles POST /webhooks/twilio: new inbound calls get the greeting,
// gathered speech is handed to staff as a callback request, and terminal
// status callbacks close out the call.
func (h *WebhookHandler) Twilio(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveLatency(voiceai.ProviderTwilio, time.Since(start).Seconds()) }()
	ctx, span := webhookTracer.Start(r.Context(), "webhooks.twilio")
	defer span.End()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	if h.twilioToken != "" && !voiceai.ValidateTwilioSignature(r, h.twilioToken, h.publicBaseURL+r.URL.RequestURI()) {
		h.logger.Warn("invalid twilio webhook signature", "path", r.URL.Path)
		h.metrics.ObserveEvent(voiceai.ProviderTwilio, "unknown", "rejected")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	callSID := r.PostFormValue("CallSid")
	span.SetAttributes(attribute.String("call_id", callSID))
	from := booking.NormalizePhone(r.PostFormValue("From"))
	status := strings.ToLower(r.PostFormValue("CallStatus"))
	input := strings.TrimSpace(firstNonEmpty(r.PostFormValue("SpeechResult"), r.PostFormValue("Digits")))

	switch {
	case isTerminalCallStatus(status):
		duration, _ := strconv.Atoi(r.PostFormValue("CallDuration"))
		evt := voiceai.CallEvent{
			Provider:        voiceai.ProviderTwilio,
			Kind:            voiceai.EventCallEnded,
			CallID:          callSID,
			From:            from,
			DurationSeconds: duration,
			EndReason:       status,
		}
		if err := h.finishCall(ctx, evt); err != nil {
			h.logger.Error("twilio call end failed", "call_id", callSID, "error", err)
		}
		h.metrics.ObserveEvent(voiceai.ProviderTwilio, string(voiceai.EventCallEnded), "ok")
		h.writeTwiML(w, voiceai.RenderEmpty)
	case input != "":
		h.logger.Info("twilio caller input", "call_id", callSID, "from", from)
		if h.automation != nil {
			err := h.automation.Notify(ctx, "callback_request", "Caller "+from+" said: "+input, from, "normal")
			if err != nil && !errors.Is(err, automation.ErrNotConfigured) {
				h.logger.Warn("callback request notification failed", "call_id", callSID, "error", err)
			}
		}
		h.metrics.ObserveEvent(voiceai.ProviderTwilio, "gather", "ok")
		h.writeTwiML(w, func() ([]byte, error) { return voiceai.RenderSayHangup(callbackMessage) })
	default:
		if h.calls != nil && callSID != "" {
			err := h.calls.Start(ctx, &calls.State{
				CallID:      callSID,
				Provider:    voiceai.ProviderTwilio,
				CallerPhone: from,
				CalledPhone: booking.NormalizePhone(r.PostFormValue("To")),
			})
			if err != nil {
				h.logger.Error("twilio call start failed", "call_id", callSID, "error", err)
			}
		}
		h.metrics.ObserveEvent(voiceai.ProviderTwilio, string(voiceai.EventCallStarted), "ok")
		h.writeTwiML(w, func() ([]byte, error) {
			return voiceai.RenderGather(voiceai.DefaultGreeting, twilioGatherPath, 10)
		})
	}
}

type executeRequest struct {
	FunctionName string         `json:"function_name"`
	Parameters   map[string]any `json:"parameters"`
	CallID       string         `json:"call_id"`
}

// ExecuteFunction handles POST /functions/execute for assistants that call
// tools over plain HTTP.
func (h *WebhookHandler) ExecuteFunction(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if h.functions == nil {
		unavailable(w, "functions")
		return
	}
	result, err := h.functions.Execute(r.Context(), req.CallID, req.FunctionName, req.Parameters)
	if err != nil {
		h.metrics.ObserveEvent("functions", req.FunctionName, "rejected")
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "unknown function"})
		return
	}
	h.metrics.ObserveEvent("functions", req.FunctionName, "ok")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (h *WebhookHandler) readVerified(w http.ResponseWriter, r *http.Request, provider, secret, signature string) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if secret != "" && !voiceai.VerifyHexSHA256(secret, body, signature) {
		h.logger.Warn("invalid webhook signature", "provider", provider)
		h.metrics.ObserveEvent(provider, "unknown", "rejected")
		jsonError(w, "invalid signature", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

func (h *WebhookHandler) execute(ctx context.Context, w http.ResponseWriter, evt voiceai.CallEvent) (map[string]any, bool) {
	if h.functions == nil {
		unavailable(w, "functions")
		return nil, false
	}
	result, err := h.functions.Execute(ctx, evt.CallID, evt.Function, evt.Arguments)
	if err != nil {
		h.metrics.ObserveEvent(evt.Provider, evt.Function, "rejected")
		jsonError(w, "Unknown function", http.StatusBadRequest)
		return nil, false
	}
	h.metrics.ObserveEvent(evt.Provider, evt.Function, "ok")
	return result, true
}

func (h *WebhookHandler) lifecycle(ctx context.Context, w http.ResponseWriter, evt voiceai.CallEvent) {
	if evt.Kind == voiceai.EventIgnored || evt.CallID == "" {
		h.logger.Debug("ignoring voice webhook", "provider", evt.Provider, "type", evt.Type)
		h.metrics.ObserveEvent(evt.Provider, evt.Type, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var err error
	switch evt.Kind {
	case voiceai.EventCallStarted:
		h.logger.Info("voice call started", "provider", evt.Provider, "call_id", evt.CallID)
		if h.calls != nil {
			err = h.calls.Start(ctx, &calls.State{
				CallID:      evt.CallID,
				Provider:    evt.Provider,
				CallerPhone: evt.From,
				CalledPhone: evt.To,
			})
		}
	case voiceai.EventCallEnded:
		err = h.finishCall(ctx, evt)
	case voiceai.EventCallAnalyzed:
		err = h.annotate(ctx, evt)
	}
	if err != nil {
		h.logger.Error("voice webhook processing failed", "provider", evt.Provider, "call_id", evt.CallID, "type", evt.Type, "error", err)
		h.metrics.ObserveEvent(evt.Provider, string(evt.Kind), "error")
		unavailable(w, "call store")
		return
	}
	h.metrics.ObserveEvent(evt.Provider, string(evt.Kind), "ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// finishCall closes the call record once, then reports the call to automation and,
// when the caller is a known CRM customer, to the CRM activity log.
func (h *WebhookHandler) finishCall(ctx context.Context, evt voiceai.CallEvent) error {
	state := &calls.State{CallID: evt.CallID, Provider: evt.Provider, CallerPhone: evt.From}
	if h.calls != nil {
		ended, changed, err := h.calls.End(ctx, evt.CallID, evt.Provider, evt.DurationSeconds, evt.Summary, "")
		if err != nil {
			return err
		}
		if !changed {
			h.logger.Debug("duplicate call end ignored", "provider", evt.Provider, "call_id", evt.CallID)
			return nil
		}
		state = ended
	}
	h.logger.Info("voice call ended",
		"provider", evt.Provider,
		"call_id", evt.CallID,
		"duration_seconds", evt.DurationSeconds,
		"end_reason", evt.EndReason,
		"outcome", state.Outcome,
	)

	if h.automation != nil {
		err := h.automation.CallEnded(ctx, evt.CallID, evt.Provider, evt.DurationSeconds, evt.Summary, state.Outcome)
		if err != nil && !errors.Is(err, automation.ErrNotConfigured) {
			h.logger.Warn("call ended automation failed", "call_id", evt.CallID, "error", err)
		}
	}
	h.logCallActivity(ctx, booking.NormalizePhone(firstNonEmpty(evt.From, state.CallerPhone)), evt, state.Outcome)
	return nil
}

func (h *WebhookHandler) logCallActivity(ctx context.Context, phone string, evt voiceai.CallEvent, outcome string) {
	if h.crm == nil || phone == "" {
		return
	}
	customer, err := h.crm.FindCustomerByPhone(ctx, phone)
	if err != nil {
		return
	}
	if customer == nil || customer.ID == "" {
		return
	}
	err = h.crm.LogCallActivity(ctx, crm.CallActivity{
		CustomerID: customer.ID,
		CallID:     evt.CallID,
		Duration:   evt.DurationSeconds,
		Summary:    evt.Summary,
		Outcome:    outcome,
	})
	if err != nil {
		// Failure detail is logged by the CRM client.
		h.logger.Debug("call activity not recorded", "call_id", evt.CallID, "customer_id", customer.ID)
	}
}

func (h *WebhookHandler) annotate(ctx context.Context, evt voiceai.CallEvent) error {
	if h.calls == nil || evt.Summary == "" {
		return nil
	}
	state, err := h.calls.Get(ctx, evt.CallID)
	if err != nil || state == nil {
		return err
	}
	state.Summary = evt.Summary
	return h.calls.Save(ctx, state)
}

func (h *WebhookHandler) writeTwiML(w http.ResponseWriter, render func() ([]byte, error)) {
	body, err := render()
	if err != nil {
		h.logger.Error("twiml render failed", "error", err)
		body = []byte(`<?xml version="1.0" encoding="UTF-8"?><Response><Say>` + voiceai.ErrorMessage + `</Say></Response>`)
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func isTerminalCallStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
