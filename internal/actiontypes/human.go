package actiontypes

import (
	"encoding/json"
	"fmt"

	"github.com/casekit/lexflow/pkg/schema"
)

// --- CHECKLIST ---

// ChecklistConfig configures a CHECKLIST step.
type ChecklistConfig struct {
	Items []string `json:"items"`
}

type ChecklistHandler struct{}

func (ChecklistHandler) Type() schema.ActionType { return schema.ActionChecklist }

func (ChecklistHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["items"],
	  "properties": {
	    "items": { "type": "array", "minItems": 1, "items": { "type": "string", "minLength": 1 } }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion requires completed_items; a required step must cover
// every configured item.
func (ChecklistHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	var cfg ChecklistConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}

	done, ok := payloadStrings(payload, "completed_items")
	if !ok {
		return missingField("completed_items")
	}

	if !required {
		return nil
	}

	checked := make(map[string]bool, len(done))
	for _, item := range done {
		checked[item] = true
	}
	for _, item := range cfg.Items {
		if !checked[item] {
			return invalidField("completed_items", fmt.Sprintf("does not cover configured item %q", item))
		}
	}
	return nil
}

// --- APPROVAL ---

type ApprovalHandler struct{}

func (ApprovalHandler) Type() schema.ActionType { return schema.ActionApproval }

func (ApprovalHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "question": { "type": "string" },
	    "requires_comment_on_rejection": { "type": "boolean" }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion requires a boolean approved; comment is optional unless
// the config demands one on rejection.
func (ApprovalHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	var cfg struct {
		RequiresCommentOnRejection bool `json:"requires_comment_on_rejection"`
	}
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}

	approved, ok := payloadBool(payload, "approved")
	if !ok {
		return missingField("approved")
	}

	if comment, present := payload["comment"]; present {
		if _, ok := comment.(string); !ok {
			return invalidField("comment", "must be a string")
		}
	}

	if !approved && cfg.RequiresCommentOnRejection {
		if c, ok := payloadString(payload, "comment"); !ok || c == "" {
			return invalidField("comment", "is required when rejecting")
		}
	}
	return nil
}

// --- WRITE_TEXT ---

// WriteTextConfig bounds the content of a WRITE_TEXT step.
type WriteTextConfig struct {
	MinLength int `json:"min_length"`
	MaxLength int `json:"max_length"`
}

type WriteTextHandler struct{}

func (WriteTextHandler) Type() schema.ActionType { return schema.ActionWriteText }

func (WriteTextHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "prompt": { "type": "string" },
	    "min_length": { "type": "integer", "minimum": 0 },
	    "max_length": { "type": "integer", "minimum": 1 }
	  },
	  "additionalProperties": false
	}`)
}

func (WriteTextHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	var cfg WriteTextConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}

	content, ok := payloadString(payload, "content")
	if !ok {
		return missingField("content")
	}

	if len(content) < cfg.MinLength {
		return invalidField("content", fmt.Sprintf("shorter than configured minimum of %d characters", cfg.MinLength))
	}
	if cfg.MaxLength > 0 && len(content) > cfg.MaxLength {
		return invalidField("content", fmt.Sprintf("longer than configured maximum of %d characters", cfg.MaxLength))
	}
	return nil
}

// --- TASK ---

type TaskHandler struct{}

func (TaskHandler) Type() schema.ActionType { return schema.ActionTask }

func (TaskHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "description": { "type": "string" }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion accepts any payload; a note, when present, must be a string.
func (TaskHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	if note, present := payload["note"]; present {
		if _, ok := note.(string); !ok {
			return invalidField("note", "must be a string")
		}
	}
	return nil
}
