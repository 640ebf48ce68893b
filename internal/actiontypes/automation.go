package actiontypes

import (
	"encoding/json"
	"fmt"

	"github.com/casekit/lexflow/pkg/schema"
)

// Automation steps are completed programmatically by the external automation
// runner: complete is invoked once the delivery succeeds, fail on delivery
// failure. Their payloads carry the runner's outcome, not user input.

// --- AUTOMATION_EMAIL ---

type AutomationEmailHandler struct{}

func (AutomationEmailHandler) Type() schema.ActionType { return schema.ActionAutomationEmail }

func (AutomationEmailHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["to", "subject"],
	  "properties": {
	    "to": { "type": "array", "minItems": 1, "items": { "type": "string", "minLength": 1 } },
	    "subject": { "type": "string", "minLength": 1 },
	    "body": { "type": "string" },
	    "template_id": { "type": "string" }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion requires the provider message_id recorded by the runner.
func (AutomationEmailHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	id, ok := payloadString(payload, "message_id")
	if !ok || id == "" {
		return missingField("message_id")
	}
	return nil
}

// --- AUTOMATION_WEBHOOK ---

// AutomationWebhookConfig describes the outbound call the runner performs.
type AutomationWebhookConfig struct {
	URL    string `json:"url"`
	Method string `json:"method"`
}

type AutomationWebhookHandler struct{}

func (AutomationWebhookHandler) Type() schema.ActionType { return schema.ActionAutomationWebhook }

func (AutomationWebhookHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["url"],
	  "properties": {
	    "url": { "type": "string", "minLength": 1, "format": "uri" },
	    "method": { "type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE"] },
	    "headers": { "type": "object", "additionalProperties": { "type": "string" } }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion requires a 2xx status_code from the runner's call.
func (AutomationWebhookHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	code, ok := payloadNumber(payload, "status_code")
	if !ok {
		return missingField("status_code")
	}
	if code < 200 || code >= 300 {
		return invalidField("status_code", fmt.Sprintf("%d is not a success status", int(code)))
	}
	return nil
}
