package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/casekit/lexflow/internal/actiontypes"
	"github.com/casekit/lexflow/pkg/schema"
)

// ConfigValidator validates a step's ActionConfig against the JSON Schema
// (draft 2020-12) published by its action-type handler. Compiled schemas are
// cached per action type. Safe for concurrent use.
type ConfigValidator struct {
	registry *actiontypes.Registry

	mu    sync.RWMutex
	cache map[schema.ActionType]*jsonschema.Schema
}

// NewConfigValidator creates a ConfigValidator over the given registry.
func NewConfigValidator(registry *actiontypes.Registry) *ConfigValidator {
	return &ConfigValidator{
		registry: registry,
		cache:    make(map[schema.ActionType]*jsonschema.Schema),
	}
}

// ValidateStepConfig checks one step's ActionConfig. An empty config is only
// acceptable when the variant's schema has no required properties; the
// schema decides.
func (v *ConfigValidator) ValidateStepConfig(step *schema.WorkflowStep) error {
	compiled, err := v.getOrCompile(step.ActionType)
	if err != nil {
		return err
	}

	raw := step.ActionConfig
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"malformed action config: %s", err.Error()).WithStep(step.ID).WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toFlowError(err).WithStep(step.ID)
	}
	return nil
}

// getOrCompile returns the cached compiled schema for an action type or
// compiles and caches it.
func (v *ConfigValidator) getOrCompile(t schema.ActionType) (*jsonschema.Schema, error) {
	v.mu.RLock()
	if cached, ok := v.cache[t]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[t]; ok {
		return cached, nil
	}

	handler, err := v.registry.Get(t)
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(handler.ConfigSchema())))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s config schema: %w", t, err)
	}

	url := fmt.Sprintf("lexflow://action-config/%s", t)
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add %s config schema resource: %w", t, err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s config schema: %w", t, err)
	}

	v.cache[t] = compiled
	return compiled, nil
}

// toFlowError converts a jsonschema.ValidationError into a FlowError with
// per-location violation messages.
func toFlowError(err error) *schema.FlowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	return schema.NewErrorf(schema.ErrCodeValidation,
		"action config failed with %d violations", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
