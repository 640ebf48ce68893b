// Package actiontypes defines the closed set of step action variants. Each
// handler owns its configuration schema and its completion-payload
// validation; the engine itself never interprets action config.
package actiontypes

import (
	"encoding/json"

	"github.com/casekit/lexflow/pkg/schema"
)

// Handler validates one action variant's configuration and completion payload.
type Handler interface {
	// Type is the variant tag this handler owns.
	Type() schema.ActionType

	// ConfigSchema returns the JSON Schema (draft 2020-12) for the variant's
	// ActionConfig, used by design-time validation.
	ConfigSchema() json.RawMessage

	// ValidateCompletion checks a completion payload against the step's
	// configuration. required mirrors WorkflowStep.Required: some variants
	// relax coverage rules for optional steps. Returns a PAYLOAD_INVALID
	// FlowError naming the offending field, or nil.
	ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error
}

// --- payload field helpers ---

func payloadString(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func payloadBool(payload map[string]any, key string) (bool, bool) {
	v, ok := payload[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func payloadNumber(payload map[string]any, key string) (float64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// payloadStrings accepts both []string and JSON-decoded []any of strings.
func payloadStrings(payload map[string]any, key string) ([]string, bool) {
	v, ok := payload[key]
	if !ok {
		return nil, false
	}
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func missingField(stepField string) error {
	return schema.NewErrorf(schema.ErrCodePayloadInvalid, "missing or invalid field %q", stepField).
		WithDetails(map[string]any{"field": stepField})
}

func invalidField(stepField, reason string) error {
	return schema.NewErrorf(schema.ErrCodePayloadInvalid, "field %q %s", stepField, reason).
		WithDetails(map[string]any{"field": stepField})
}

func decodeConfig(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "malformed action config: %s", err.Error()).WithCause(err)
	}
	return nil
}
