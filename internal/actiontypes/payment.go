package actiontypes

import (
	"encoding/json"
	"fmt"

	"github.com/casekit/lexflow/pkg/schema"
)

// PaymentConfig configures a PAYMENT step. The amount's unit is the
// caller's choice; the engine only checks coverage.
type PaymentConfig struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type PaymentHandler struct{}

func (PaymentHandler) Type() schema.ActionType { return schema.ActionPayment }

func (PaymentHandler) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["amount", "currency"],
	  "properties": {
	    "amount": { "type": "number", "exclusiveMinimum": 0 },
	    "currency": { "type": "string", "minLength": 3, "maxLength": 3 }
	  },
	  "additionalProperties": false
	}`)
}

// ValidateCompletion requires a transaction_ref; when the config carries an
// amount, amount_paid must be present and cover it.
func (PaymentHandler) ValidateCompletion(config json.RawMessage, payload map[string]any, required bool) error {
	var cfg PaymentConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}

	ref, ok := payloadString(payload, "transaction_ref")
	if !ok || ref == "" {
		return missingField("transaction_ref")
	}

	if cfg.Amount > 0 {
		paid, ok := payloadNumber(payload, "amount_paid")
		if !ok {
			return missingField("amount_paid")
		}
		if paid < cfg.Amount {
			return invalidField("amount_paid",
				fmt.Sprintf("%.2f does not cover the configured amount %.2f %s", paid, cfg.Amount, cfg.Currency))
		}
	}
	return nil
}
