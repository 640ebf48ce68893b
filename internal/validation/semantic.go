package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/casekit/lexflow/internal/actiontypes"
	"github.com/casekit/lexflow/pkg/schema"
)

// validateSemantic performs semantic analysis: step identity, action-type
// registration, edge/logic coherence, and notification-policy shape.
func validateSemantic(steps []*schema.WorkflowStep, deps []*schema.WorkflowDependency, registry *actiontypes.Registry, structs *validator.Validate) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		path := fmt.Sprintf("steps[%d]", i)

		if s.ID == "" {
			result.AddError(path+".id", schema.ErrCodeValidation, "step has empty ID")
		} else if seen[s.ID] {
			result.AddStepError(path+".id", s.ID, schema.ErrCodeValidation,
				fmt.Sprintf("duplicate step ID %q", s.ID))
		}
		seen[s.ID] = true

		if err := structs.Struct(s); err != nil {
			for _, ferr := range fieldErrors(err) {
				result.AddStepError(path, s.ID, schema.ErrCodeValidation, ferr)
			}
		}

		if registry != nil && s.ActionType != "" && !registry.Has(s.ActionType) {
			result.AddStepError(path+".action_type", s.ID, schema.ErrCodeValidation,
				fmt.Sprintf("unknown action type %q", s.ActionType))
		}

		validatePolicies(s, path, structs, result)
	}

	validateEdges(deps, path2ID(steps), structs, result)

	return result
}

// validateEdges checks dependency shape and per-target logic agreement.
func validateEdges(deps []*schema.WorkflowDependency, stepIDs map[string]bool, structs *validator.Validate, result *schema.ValidationResult) {
	type edgeKey struct {
		source, target string
		kind           schema.DependencyType
	}
	seenEdges := make(map[edgeKey]bool, len(deps))

	// Logic recorded per target across its incoming DEPENDS_ON edges.
	logicByTarget := make(map[string]map[schema.DependencyLogic]bool)

	for i, d := range deps {
		path := fmt.Sprintf("dependencies[%d]", i)

		if err := structs.Struct(d); err != nil {
			for _, ferr := range fieldErrors(err) {
				result.AddError(path, schema.ErrCodeValidation, ferr)
			}
			continue
		}

		key := edgeKey{d.SourceStepID, d.TargetStepID, d.Type}
		if seenEdges[key] {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("duplicate %s edge %s -> %s", d.Type, d.SourceStepID, d.TargetStepID))
		}
		seenEdges[key] = true

		if d.Type.Branch() && d.Condition == nil && d.ConditionType != schema.ConditionAlways {
			result.AddWarning(path+".condition", schema.ErrCodeValidation,
				fmt.Sprintf("%s edge %s -> %s has no condition; it will resolve as true", d.Type, d.SourceStepID, d.TargetStepID))
		}

		switch d.ConditionType {
		case schema.ConditionIfTrue, schema.ConditionIfFalse, schema.ConditionSwitch:
			if d.Condition == nil {
				result.AddError(path+".condition", schema.ErrCodeValidation,
					fmt.Sprintf("condition type %s requires a condition config", d.ConditionType))
			}
		}

		if d.Type == schema.DependsOn && stepIDs[d.TargetStepID] {
			if logicByTarget[d.TargetStepID] == nil {
				logicByTarget[d.TargetStepID] = make(map[schema.DependencyLogic]bool, 2)
			}
			logicByTarget[d.TargetStepID][d.EffectiveLogic()] = true
		}
	}

	// Logic is per-target; disagreeing edges are a design-time smell. The
	// resolver prefers ALL when they disagree.
	for target, logics := range logicByTarget {
		if len(logics) > 1 {
			result.AddWarning(fmt.Sprintf("dependencies[target=%s]", target), schema.ErrCodeLogicConflict,
				fmt.Sprintf("step %q has incoming DEPENDS_ON edges with both ALL and ANY logic; ALL is applied", target))
		}
	}
}

// validatePolicies checks a step's notification policies.
func validatePolicies(s *schema.WorkflowStep, stepPath string, structs *validator.Validate, result *schema.ValidationResult) {
	for j, p := range s.Notifications {
		path := fmt.Sprintf("%s.notifications[%d]", stepPath, j)

		if err := structs.Struct(p); err != nil {
			for _, ferr := range fieldErrors(err) {
				result.AddStepError(path, s.ID, schema.ErrCodeValidation, ferr)
			}
		}

		if p.SendStrategy == schema.SendDelayed && p.DelayMinutes <= 0 {
			result.AddStepError(path+".delay_minutes", s.ID, schema.ErrCodeValidation,
				"DELAYED send strategy requires delay_minutes > 0")
		}

		if p.Channel.NeedsTemplates() {
			if p.Subject == "" {
				result.AddStepError(path+".subject", s.ID, schema.ErrCodeValidation,
					fmt.Sprintf("%s policy requires a subject template", p.Channel))
			}
			if p.Body == "" {
				result.AddStepError(path+".body", s.ID, schema.ErrCodeValidation,
					fmt.Sprintf("%s policy requires a body template", p.Channel))
			}
		}

		if p.DigestSchedule != "" {
			if _, err := cron.ParseStandard(p.DigestSchedule); err != nil {
				result.AddStepError(path+".digest_schedule", s.ID, schema.ErrCodeSchedule,
					fmt.Sprintf("invalid cron expression %q: %s", p.DigestSchedule, err.Error()))
			}
		}
	}
}

func path2ID(steps []*schema.WorkflowStep) map[string]bool {
	ids := make(map[string]bool, len(steps))
	for _, s := range steps {
		ids[s.ID] = true
	}
	return ids
}

// fieldErrors flattens a validator error into per-field messages.
func fieldErrors(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field %s failed %q validation", fe.Field(), fe.Tag()))
	}
	return msgs
}
