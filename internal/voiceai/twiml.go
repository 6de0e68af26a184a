package voiceai

import (
	"encoding/xml"
	"fmt"
)

const (
	twimlVoice = "alice"

	DefaultGreeting = "Hello! Thank you for calling. I'm your AI assistant and I can help you book an appointment, " +
		"answer questions about our services, or connect you with someone who can help. How can I assist you today?"
	ErrorMessage = "Sorry, there was an error processing your call."
)

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Gather  *twimlGather `xml:"Gather,omitempty"`
	Say     *twimlSay    `xml:"Say,omitempty"`
	Hangup  *struct{}    `xml:"Hangup,omitempty"`
}

type twimlSay struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type twimlGather struct {
	Input   string    `xml:"input,attr,omitempty"`
	Timeout int       `xml:"timeout,attr,omitempty"`
	Action  string    `xml:"action,attr,omitempty"`
	Method  string    `xml:"method,attr,omitempty"`
	Say     *twimlSay `xml:"Say,omitempty"`
}

// RenderGather speaks message and waits timeoutSeconds for speech or keypad
// input, posting the result to action.
func RenderGather(message, action string, timeoutSeconds int) ([]byte, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 5
	}
	return renderTwiML(twimlResponse{
		Gather: &twimlGather{
			Input:   "speech dtmf",
			Timeout: timeoutSeconds,
			Action:  action,
			Method:  "POST",
			Say:     &twimlSay{Voice: twimlVoice, Text: message},
		},
	})
}

// RenderSay speaks message.
func RenderSay(message string) ([]byte, error) {
	return renderTwiML(twimlResponse{Say: &twimlSay{Voice: twimlVoice, Text: message}})
}

// RenderSayHangup speaks message and ends the call.
func RenderSayHangup(message string) ([]byte, error) {
	return renderTwiML(twimlResponse{Say: &twimlSay{Voice: twimlVoice, Text: message}, Hangup: &struct{}{}})
}

// RenderEmpty acknowledges a status callback without further instructions.
func RenderEmpty() ([]byte, error) {
	return renderTwiML(twimlResponse{})
}

func renderTwiML(resp twimlResponse) ([]byte, error) {
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
