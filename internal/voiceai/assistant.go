package voiceai

import "fmt"

const assistantPrompt = `You are a professional appointment booking assistant for %s. Your job is to:
1. Greet callers warmly and professionally
2. Answer questions about services and pricing
3. Help schedule appointments by collecting the customer's name, phone number, preferred date and time, and service
4. Check availability before confirming a booking
5. Handle rescheduling and cancellations

If you cannot handle a request, offer to connect the caller with a human representative.`

// FunctionDefinitions describes the tools exposed to assistants.
func FunctionDefinitions() []map[string]any {
	str := map[string]any{"type": "string"}
	return []map[string]any{
		{
			"name":        FuncBookAppointment,
			"description": "Book an appointment for a customer",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"customer_name":  str,
					"customer_phone": str,
					"customer_email": str,
					"service_type":   str,
					"preferred_date": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"preferred_time": map[string]any{"type": "string", "description": "HH:MM, 24 hour"},
					"notes":          str,
				},
				"required": []string{"customer_name", "customer_phone", "service_type", "preferred_date", "preferred_time"},
			},
		},
		{
			"name":        FuncCheckAvailability,
			"description": "List open appointment slots on a date",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date":         map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"service_type": str,
				},
				"required": []string{"date"},
			},
		},
		{
			"name":        FuncGetServices,
			"description": "List the services offered with duration and price",
			"parameters":  map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			"name":        FuncCancelAppointment,
			"description": "Cancel an existing appointment",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appointment_id": str,
					"reason":         str,
				},
				"required": []string{"appointment_id"},
			},
		},
		{
			"name":        FuncRescheduleAppointment,
			"description": "Move an existing appointment to a new date and time",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appointment_id": str,
					"new_date":       str,
					"new_time":       str,
					"service_type":   str,
				},
				"required": []string{"appointment_id", "new_date", "new_time"},
			},
		},
	}
}

// DefaultVapiAssistant is the booking assistant created when no configuration
// is supplied. serverURL receives the assistant's webhooks.
func DefaultVapiAssistant(businessName, serverURL string) map[string]any {
	if businessName == "" {
		businessName = "our business"
	}
	cfg := map[string]any{
		"name": "Appointment Booking Assistant",
		"model": map[string]any{
			"provider":    "openai",
			"model":       "gpt-4",
			"temperature": 0.7,
			"messages": []map[string]any{
				{"role": "system", "content": fmt.Sprintf(assistantPrompt, businessName)},
			},
			"functions": FunctionDefinitions(),
		},
		"voice": map[string]any{
			"provider": "11labs",
			"voiceId":  "21m00Tcm4TlvDq8ikWAM",
		},
		"firstMessage": "Hello! Thank you for calling. I'm here to help you schedule an appointment or answer any questions about our services. How can I assist you today?",
	}
	if serverURL != "" {
		cfg["serverUrl"] = serverURL
	}
	return cfg
}

// DefaultRetellAgent is the booking agent created when no configuration is
// supplied.
func DefaultRetellAgent(webhookURL string) map[string]any {
	tools := make([]map[string]any, 0, 5)
	for _, fn := range FunctionDefinitions() {
		tools = append(tools, map[string]any{"type": "function", "function": fn})
	}
	cfg := map[string]any{
		"agent_name": "Appointment Booking Agent",
		"voice_id":   "11labs-Adrian",
		"language":   "en-US",
		"response_engine": map[string]any{
			"type":   "retell-llm",
			"llm_id": "gpt-4o",
		},
		"begin_message":  "Hello! Thank you for calling. I'm here to help you schedule an appointment or answer any questions about our services. How can I assist you today?",
		"general_prompt": fmt.Sprintf(assistantPrompt, "our business"),
		"general_tools":  tools,
	}
	if webhookURL != "" {
		cfg["webhook_url"] = webhookURL
	}
	return cfg
}
