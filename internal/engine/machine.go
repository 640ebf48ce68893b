package engine

import (
	"encoding/json"
	"time"

	"github.com/casekit/lexflow/internal/actiontypes"
	"github.com/casekit/lexflow/pkg/schema"
)

// StepChange records one applied state change on a step. Resolver-driven
// promotions carry an empty Action.
type StepChange struct {
	Step   *schema.WorkflowStep
	From   schema.StepState
	To     schema.StepState
	Action schema.TransitionAction
	Event  string
}

// StepMachine applies caller-initiated actions to a single step. Every
// transition is a total function from (state, action, payload, actor role)
// to either a mutation or a typed rejection; it never silently no-ops.
type StepMachine struct {
	registry *actiontypes.Registry
}

// NewStepMachine creates a StepMachine over the given action-type registry.
func NewStepMachine(registry *actiontypes.Registry) *StepMachine {
	return &StepMachine{registry: registry}
}

// CanAct reports whether the actor role may operate on the step. ADMIN
// overrides the step's role scope.
func CanAct(step *schema.WorkflowStep, role schema.RoleScope) bool {
	return role == schema.RoleAdmin || role == step.RoleScope
}

// CanSkip is the capability check for the skip action: only non-required
// steps, and only by an ADMIN. Exposed so callers can gate their UI, but
// Apply enforces it regardless.
func CanSkip(step *schema.WorkflowStep, role schema.RoleScope) bool {
	return !step.Required && role == schema.RoleAdmin
}

// Apply executes one transition request against the step. On rejection the
// step is left untouched and a FlowError is returned.
func (m *StepMachine) Apply(step *schema.WorkflowStep, req schema.TransitionRequest, now time.Time) (*StepChange, error) {
	switch req.Action {
	case schema.ActionStart:
		return m.start(step, req, now)
	case schema.ActionClaim:
		return m.claim(step, req)
	case schema.ActionComplete:
		return m.complete(step, req, now)
	case schema.ActionFail:
		return m.fail(step, req, now)
	case schema.ActionSkip:
		return m.skip(step, req, now)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown action %q", req.Action).
			WithStep(step.ID)
	}
}

// start covers READY -> IN_PROGRESS and the restart path
// FAILED/SKIPPED -> READY, which clears the previous activation's
// timestamps and outcome.
func (m *StepMachine) start(step *schema.WorkflowStep, req schema.TransitionRequest, now time.Time) (*StepChange, error) {
	if !CanAct(step, req.ActorRole) {
		return nil, forbidden(step, req)
	}

	switch step.ActionState {
	case schema.StepStateReady:
		from := step.ActionState
		step.ActionState = schema.StepStateInProgress
		if step.StartedAt == nil {
			t := now
			step.StartedAt = &t
		}
		return &StepChange{Step: step, From: from, To: step.ActionState, Action: req.Action, Event: schema.EventStepStarted}, nil

	case schema.StepStateFailed, schema.StepStateSkipped:
		from := step.ActionState
		step.ActionState = schema.StepStateReady
		step.StartedAt = nil
		step.CompletedAt = nil
		step.FailureReason = ""
		step.SkipReason = ""
		return &StepChange{Step: step, From: from, To: step.ActionState, Action: req.Action, Event: schema.EventStepRestarted}, nil

	default:
		return nil, invalidTransition(step, req, schema.StepStateInProgress)
	}
}

// claim is assignment-only: it never changes the step's state. A claim on
// an already-assigned step is a conflict, not a silent no-op.
func (m *StepMachine) claim(step *schema.WorkflowStep, req schema.TransitionRequest) (*StepChange, error) {
	if !CanAct(step, req.ActorRole) {
		return nil, forbidden(step, req)
	}
	if step.ActionState != schema.StepStateReady && step.ActionState != schema.StepStateInProgress {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"cannot claim step in state %s", step.ActionState).WithStep(step.ID)
	}
	if req.ActorID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "claim requires an actor_id").WithStep(step.ID)
	}
	if step.AssignedToID != "" && step.AssignedToID != req.ActorID {
		return nil, schema.NewErrorf(schema.ErrCodeConflict,
			"step already assigned to %q", step.AssignedToID).WithStep(step.ID)
	}

	step.AssignedToID = req.ActorID
	return &StepChange{Step: step, From: step.ActionState, To: step.ActionState, Action: req.Action, Event: schema.EventStepClaimed}, nil
}

// complete validates the payload against the step's action type before any
// mutation. On success the payload is folded into ActionData.
func (m *StepMachine) complete(step *schema.WorkflowStep, req schema.TransitionRequest, now time.Time) (*StepChange, error) {
	if !CanAct(step, req.ActorRole) {
		return nil, forbidden(step, req)
	}
	if step.ActionState != schema.StepStateInProgress {
		return nil, invalidTransition(step, req, schema.StepStateCompleted)
	}

	handler, err := m.registry.Get(step.ActionType)
	if err != nil {
		return nil, err
	}
	if err := handler.ValidateCompletion(step.ActionConfig, req.Payload, step.Required); err != nil {
		if fe, ok := err.(*schema.FlowError); ok {
			return nil, fe.WithStep(step.ID)
		}
		return nil, err
	}

	data, err := mergeActionData(step.ActionData, req.Payload)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodePayloadInvalid, "payload is not JSON-encodable").
			WithStep(step.ID).WithCause(err)
	}

	from := step.ActionState
	step.ActionState = schema.StepStateCompleted
	step.ActionData = data
	setCompletedAt(step, now)
	return &StepChange{Step: step, From: from, To: step.ActionState, Action: req.Action, Event: schema.EventStepCompleted}, nil
}

// fail requires a non-empty reason. Failed steps do not satisfy downstream
// DEPENDS_ON edges; recovery is a restart via start.
func (m *StepMachine) fail(step *schema.WorkflowStep, req schema.TransitionRequest, now time.Time) (*StepChange, error) {
	if !CanAct(step, req.ActorRole) {
		return nil, forbidden(step, req)
	}
	if step.ActionState != schema.StepStateInProgress {
		return nil, invalidTransition(step, req, schema.StepStateFailed)
	}
	if req.Reason == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "fail requires a non-empty reason").
			WithStep(step.ID)
	}

	from := step.ActionState
	step.ActionState = schema.StepStateFailed
	step.FailureReason = req.Reason
	setCompletedAt(step, now)
	return &StepChange{Step: step, From: from, To: step.ActionState, Action: req.Action, Event: schema.EventStepFailed}, nil
}

// skip is restricted to non-required steps and ADMIN actors. The check
// lives here, not in the caller.
func (m *StepMachine) skip(step *schema.WorkflowStep, req schema.TransitionRequest, now time.Time) (*StepChange, error) {
	switch step.ActionState {
	case schema.StepStateReady, schema.StepStatePending, schema.StepStateBlocked:
	default:
		return nil, invalidTransition(step, req, schema.StepStateSkipped)
	}
	if step.Required {
		return nil, schema.NewError(schema.ErrCodeForbidden, "required steps cannot be skipped").
			WithStep(step.ID)
	}
	if req.ActorRole != schema.RoleAdmin {
		return nil, schema.NewErrorf(schema.ErrCodeForbidden,
			"role %s may not skip steps", req.ActorRole).WithStep(step.ID)
	}

	from := step.ActionState
	step.ActionState = schema.StepStateSkipped
	step.SkipReason = req.Reason
	setCompletedAt(step, now)
	return &StepChange{Step: step, From: from, To: step.ActionState, Action: req.Action, Event: schema.EventStepSkipped}, nil
}

// setCompletedAt stamps the completion time, keeping completed_at >=
// started_at even against a skewed caller clock.
func setCompletedAt(step *schema.WorkflowStep, now time.Time) {
	t := now
	if step.StartedAt != nil && t.Before(*step.StartedAt) {
		t = *step.StartedAt
	}
	step.CompletedAt = &t
}

// mergeActionData folds a completion payload into the step's accumulated
// execution data. Later completions of a restarted step overwrite keys.
func mergeActionData(existing json.RawMessage, payload map[string]any) (json.RawMessage, error) {
	merged := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			// Unreadable prior data is replaced rather than poisoning the step.
			merged = make(map[string]any)
		}
	}
	for k, v := range payload {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func forbidden(step *schema.WorkflowStep, req schema.TransitionRequest) error {
	return schema.NewErrorf(schema.ErrCodeForbidden,
		"role %s is not authorized for this step (scope %s)", req.ActorRole, step.RoleScope).
		WithStep(step.ID)
}

func invalidTransition(step *schema.WorkflowStep, req schema.TransitionRequest, to schema.StepState) error {
	return schema.NewErrorf(schema.ErrCodeInvalidTransition,
		"invalid step transition: %s -> %s via %s", step.ActionState, to, req.Action).
		WithStep(step.ID).
		WithDetails(map[string]any{"from": string(step.ActionState), "action": string(req.Action)})
}
