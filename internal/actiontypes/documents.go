package actiontypes

import (
	"encoding/json"
	"fmt"

	"github.com/casekit/lexflow/pkg/schema"
)

// --- SIGNATURE ---

type SignatureHandler struct{}

func (SignatureHandler) Type() schema.ActionType { return schema.ActionSignature }

func (SignatureHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["document_ref"],
	  "properties": {
	    "document_ref": { "type": "string", "minLength": 1 },
	    "signer_role": { "type": "string" }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion requires a non-empty signature_ref pointing at the
// captured signature artifact; signed_by is optional.
func (SignatureHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	ref, ok := payloadString(payload, "signature_ref")
	if !ok || ref == "" {
		return missingField("signature_ref")
	}
	if signedBy, present := payload["signed_by"]; present {
		if _, ok := signedBy.(string); !ok {
			return invalidField("signed_by", "must be a string")
		}
	}
	return nil
}

// --- REQUEST_DOC ---

// RequestDocConfig lists the document kinds the step collects.
type RequestDocConfig struct {
	DocumentTypes []string `json:"document_types"`
}

type RequestDocHandler struct{}

func (RequestDocHandler) Type() schema.ActionType { return schema.ActionRequestDoc }

func (RequestDocHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["document_types"],
	  "properties": {
	    "document_types": { "type": "array", "minItems": 1, "items": { "type": "string", "minLength": 1 } }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion requires at least one uploaded document reference; a
// required step must provide one reference per configured document type.
func (RequestDocHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	var cfg RequestDocConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}

	refs, ok := payloadStrings(payload, "document_refs")
	if !ok || len(refs) == 0 {
		return missingField("document_refs")
	}

	if required && len(refs) < len(cfg.DocumentTypes) {
		return invalidField("document_refs",
			fmt.Sprintf("has %d references, need %d (one per requested document type)", len(refs), len(cfg.DocumentTypes)))
	}
	return nil
}

// --- POPULATE_QUESTIONNAIRE ---

// QuestionnaireConfig identifies the questionnaire and its mandatory fields.
type QuestionnaireConfig struct {
	QuestionnaireID string   `json:"questionnaire_id"`
	RequiredFields  []string `json:"required_fields"`
}

type QuestionnaireHandler struct{}

func (QuestionnaireHandler) Type() schema.ActionType { return schema.ActionPopulateQuestionnaire }

func (QuestionnaireHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["questionnaire_id"],
	  "properties": {
	    "questionnaire_id": { "type": "string", "minLength": 1 },
	    "required_fields": { "type": "array", "items": { "type": "string", "minLength": 1 } }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion requires an answers object covering every configured
// required field with a non-null value.
func (QuestionnaireHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	var cfg QuestionnaireConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}

	answers, ok := payload["answers"].(map[string]any)
	if !ok {
		return missingField("answers")
	}

	for _, field := range cfg.RequiredFields {
		if v, present := answers[field]; !present || v == nil {
			return invalidField("answers", fmt.Sprintf("missing required answer %q", field))
		}
	}
	return nil
}
