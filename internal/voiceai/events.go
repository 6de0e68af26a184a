package voiceai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind classifies a platform webhook.
type EventKind string

const (
	EventCallStarted  EventKind = "call_started"
	EventCallEnded    EventKind = "call_ended"
	EventCallAnalyzed EventKind = "call_analyzed"
	EventFunctionCall EventKind = "function_call"
	EventIgnored      EventKind = "ignored"
)

// CallEvent is a platform webhook reduced to the fields we act on.
type CallEvent struct {
	Provider        string
	Kind            EventKind
	Type            string
	CallID          string
	From            string
	To              string
	DurationSeconds int
	Summary         string
	Transcript      string
	EndReason       string
	ToolCallID      string
	Function        string
	Arguments       map[string]any
}

type vapiEnvelope struct {
	Message struct {
		Type string `json:"type"`
		Call struct {
			ID       string `json:"id"`
			Customer struct {
				Number string `json:"number"`
			} `json:"customer"`
			PhoneNumber struct {
				Number string `json:"number"`
			} `json:"phoneNumber"`
		} `json:"call"`
		DurationSeconds float64 `json:"durationSeconds"`
		Summary         string  `json:"summary"`
		Transcript      string  `json:"transcript"`
		EndedReason     string  `json:"endedReason"`
		Analysis        struct {
			Summary string `json:"summary"`
		} `json:"analysis"`
		FunctionCall struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		} `json:"functionCall"`
		ToolCallList []struct {
			ID       string `json:"id"`
			Function struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"function"`
		} `json:"toolCallList"`
	} `json:"message"`
}

// ParseVapiEvent decodes a Vapi server message.
func ParseVapiEvent(body []byte) (CallEvent, error) {
	var env vapiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return CallEvent{}, fmt.Errorf("decode vapi event: %w", err)
	}
	msg := env.Message
	evt := CallEvent{
		Provider:        ProviderVapi,
		Type:            msg.Type,
		CallID:          msg.Call.ID,
		From:            msg.Call.Customer.Number,
		To:              msg.Call.PhoneNumber.Number,
		DurationSeconds: int(msg.DurationSeconds),
		Summary:         firstNonEmpty(msg.Summary, msg.Analysis.Summary),
		Transcript:      msg.Transcript,
		EndReason:       msg.EndedReason,
	}
	switch msg.Type {
	case "call-start":
		evt.Kind = EventCallStarted
	case "call-end", "end-of-call-report":
		evt.Kind = EventCallEnded
	case "function-call":
		evt.Kind = EventFunctionCall
		evt.Function = msg.FunctionCall.Name
		evt.Arguments = msg.FunctionCall.Parameters
	case "tool-calls":
		if len(msg.ToolCallList) == 0 {
			evt.Kind = EventIgnored
			break
		}
		call := msg.ToolCallList[0]
		evt.Kind = EventFunctionCall
		evt.ToolCallID = call.ID
		evt.Function = call.Function.Name
		args, err := decodeArguments(call.Function.Arguments)
		if err != nil {
			return CallEvent{}, err
		}
		evt.Arguments = args
	default:
		evt.Kind = EventIgnored
	}
	return evt, nil
}

type retellEnvelope struct {
	Event             string          `json:"event"`
	CallID            string          `json:"call_id"`
	FromNumber        string          `json:"from_number"`
	ToNumber          string          `json:"to_number"`
	CallLength        float64         `json:"call_length"`
	EndReason         string          `json:"end_reason"`
	Summary           string          `json:"summary"`
	Transcript        string          `json:"transcript"`
	FunctionName      string          `json:"function_name"`
	FunctionArguments json.RawMessage `json:"function_arguments"`
}

// ParseRetellEvent decodes a Retell webhook.
func ParseRetellEvent(body []byte) (CallEvent, error) {
	var env retellEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return CallEvent{}, fmt.Errorf("decode retell event: %w", err)
	}
	evt := CallEvent{
		Provider:        ProviderRetell,
		Type:            env.Event,
		CallID:          env.CallID,
		From:            env.FromNumber,
		To:              env.ToNumber,
		DurationSeconds: int(env.CallLength),
		Summary:         env.Summary,
		Transcript:      env.Transcript,
		EndReason:       env.EndReason,
	}
	switch env.Event {
	case "call_started":
		evt.Kind = EventCallStarted
	case "call_ended":
		evt.Kind = EventCallEnded
	case "call_analyzed":
		evt.Kind = EventCallAnalyzed
	case "function_call":
		evt.Kind = EventFunctionCall
		evt.Function = env.FunctionName
		args, err := decodeArguments(env.FunctionArguments)
		if err != nil {
			return CallEvent{}, err
		}
		evt.Arguments = args
	default:
		evt.Kind = EventIgnored
	}
	return evt, nil
}

// decodeArguments accepts tool arguments as a JSON object or as a string
// holding one, which is how OpenAI-style tool calls arrive.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return args, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode function arguments: %w", err)
		}
		if strings.TrimSpace(inner) == "" {
			return args, nil
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode function arguments: %w", err)
	}
	return args, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
