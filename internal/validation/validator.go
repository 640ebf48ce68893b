// Package validation checks a workflow instance's step/dependency set for
// structural integrity before it may leave DRAFT. The pipeline runs at
// design time only, never during execution, and is side-effect free.
package validation

import (
	"github.com/go-playground/validator/v10"

	"github.com/casekit/lexflow/internal/actiontypes"
	"github.com/casekit/lexflow/pkg/schema"
)

// WorkflowValidator orchestrates the three-stage validation pipeline:
//  1. Semantic (identity, enums, action types, edges, policies)
//  2. Action config (JSON Schema per action type)
//  3. Graph (dangling refs, self-loops, cycles, reachability)
//
// Idempotent and safe to call on partial, being-edited graphs.
type WorkflowValidator struct {
	registry *actiontypes.Registry
	configs  *ConfigValidator
	structs  *validator.Validate
}

// NewWorkflowValidator creates a WorkflowValidator. registry may be nil to
// skip action-type existence and config checks.
func NewWorkflowValidator(registry *actiontypes.Registry) *WorkflowValidator {
	wv := &WorkflowValidator{
		registry: registry,
		structs:  validator.New(validator.WithRequiredStructEnabled()),
	}
	if registry != nil {
		wv.configs = NewConfigValidator(registry)
	}
	return wv
}

// Validate runs the full pipeline and returns the aggregated result.
// Semantic errors do not suppress graph analysis: the canvas editor needs
// both sets at once. Only config validation is skipped for steps whose
// action type is unknown.
func (wv *WorkflowValidator) Validate(steps []*schema.WorkflowStep, deps []*schema.WorkflowDependency) *schema.ValidationResult {
	result := validateSemantic(steps, deps, wv.registry, wv.structs)

	if wv.configs != nil {
		for _, s := range steps {
			if s.ActionType == "" || !wv.registry.Has(s.ActionType) {
				continue
			}
			if err := wv.configs.ValidateStepConfig(s); err != nil {
				result.AddStepError("steps["+s.ID+"].action_config", s.ID,
					schema.ErrCodeValidation, err.Error())
			}
		}
	}

	result.Merge(validateGraph(steps, deps))
	return result
}

// ValidateInstance validates the instance's full step/dependency set.
func (wv *WorkflowValidator) ValidateInstance(inst *schema.WorkflowInstance) *schema.ValidationResult {
	if inst == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "workflow instance is nil")
		return r
	}
	return wv.Validate(inst.Steps, inst.Dependencies)
}
