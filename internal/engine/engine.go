// Package engine executes workflow instances: it applies step transitions,
// recomputes readiness across the dependency graph, manages the instance
// lifecycle, and produces transition events and notification envelopes.
// The engine is pure over in-memory snapshots; persistence and delivery are
// the caller's concern.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/casekit/lexflow/internal/actiontypes"
	"github.com/casekit/lexflow/internal/conditions"
	"github.com/casekit/lexflow/internal/expressions"
	"github.com/casekit/lexflow/internal/logging"
	"github.com/casekit/lexflow/internal/notify"
	"github.com/casekit/lexflow/internal/validation"
	"github.com/casekit/lexflow/pkg/schema"
)

// Options configures an Engine. The zero value is usable: the built-in
// action-type registry, SKIPPED counting as satisfied, and the default
// logger.
type Options struct {
	Registry *actiontypes.Registry

	// SkippedSatisfies controls whether SKIPPED prerequisites satisfy
	// downstream dependency logic. Nil means true.
	SkippedSatisfies *bool

	Logger *slog.Logger

	// Clock overrides time.Now, mainly for tests and simulation.
	Clock func() time.Time
}

// Engine is the façade over validation, the step state machine, the
// dependency resolver, and the notification policy evaluator.
type Engine struct {
	registry  *actiontypes.Registry
	validator *validation.WorkflowValidator
	machine   *StepMachine
	resolver  *Resolver
	notifier  *notify.Evaluator
	logger    *slog.Logger
	clock     func() time.Time
}

// TransitionResult reports everything one engine operation changed.
type TransitionResult struct {
	Changes        []StepChange
	InstanceStatus schema.InstanceStatus
	Events         []*schema.TransitionEvent
	Envelopes      []*schema.Envelope
	Diagnostics    []schema.Diagnostic
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	registry := opts.Registry
	if registry == nil {
		registry = actiontypes.Defaults()
	}

	skippedSatisfies := true
	if opts.SkippedSatisfies != nil {
		skippedSatisfies = *opts.SkippedSatisfies
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	engines, err := expressions.Registry()
	if err != nil {
		return nil, err
	}
	evaluator := conditions.NewEvaluator(engines)

	return &Engine{
		registry:  registry,
		validator: validation.NewWorkflowValidator(registry),
		machine:   NewStepMachine(registry),
		resolver:  NewResolver(evaluator, skippedSatisfies),
		notifier:  notify.NewEvaluator(),
		logger:    logger,
		clock:     clock,
	}, nil
}

// Validate runs the full design-time validation pipeline on the instance.
func (e *Engine) Validate(inst *schema.WorkflowInstance) *schema.ValidationResult {
	return e.validator.ValidateInstance(inst)
}

// Activate moves a DRAFT instance to ACTIVE. The instance must validate
// cleanly (warnings are fine, errors are not). Steps without a state are
// normalized to PENDING, then an initial recompute promotes the roots to
// READY and emits their ON_READY notifications.
func (e *Engine) Activate(ctx context.Context, inst *schema.WorkflowInstance, execCtx map[string]any) (*TransitionResult, error) {
	if inst.Status != schema.InstanceStatusDraft {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"cannot activate instance in status %s", inst.Status)
	}
	if err := e.Validate(inst).ToError(); err != nil {
		return nil, err
	}

	for _, s := range inst.Steps {
		if s.ActionState == "" {
			s.ActionState = schema.StepStatePending
		}
	}

	now := e.clock()
	inst.Status = schema.InstanceStatusActive
	inst.UpdatedAt = now

	result := &TransitionResult{InstanceStatus: inst.Status}
	result.Events = append(result.Events, e.instanceEvent(inst, schema.InstanceStatusDraft, now, schema.TransitionRequest{}))

	scope := e.buildScope(inst, execCtx)
	e.applyRecompute(ctx, inst, scope, now, schema.TransitionRequest{}, result)

	logging.LogWith(logging.WithInstanceID(ctx, inst.ID), e.logger).
		InfoContext(ctx, "instance activated", slog.Int("steps_ready", len(result.Changes)))
	return result, nil
}

// Transition applies one step action to an ACTIVE instance. On success the
// dependency graph is recomputed and downstream steps may become READY or
// BLOCKED in the same result. When every step has finished the instance
// auto-completes; a FAILED step holds the instance open for a restart.
func (e *Engine) Transition(ctx context.Context, inst *schema.WorkflowInstance, req schema.TransitionRequest, execCtx map[string]any) (*TransitionResult, error) {
	if inst.Status != schema.InstanceStatusActive {
		return nil, schema.NewErrorf(schema.ErrCodeInstanceInactive,
			"instance is %s, transitions require ACTIVE", inst.Status)
	}

	step := inst.StepByID(req.StepID)
	if step == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "step %q not found", req.StepID).
			WithStep(req.StepID)
	}

	ctx = logging.WithIDs(ctx, inst.ID, step.ID, req.ActorID)
	now := e.clock()

	change, err := e.machine.Apply(step, req, now)
	if err != nil {
		logging.LogWith(ctx, e.logger).WarnContext(ctx, "transition rejected",
			slog.String("action", string(req.Action)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	inst.UpdatedAt = now
	result := &TransitionResult{InstanceStatus: inst.Status}
	scope := e.buildScope(inst, execCtx)
	e.recordChange(inst, *change, scope, now, req, result)

	if change.From != change.To {
		e.applyRecompute(ctx, inst, scope, now, req, result)
		e.maybeComplete(inst, now, req, result)
	}

	logging.LogWith(ctx, e.logger).InfoContext(ctx, "transition applied",
		slog.String("action", string(req.Action)),
		slog.String("from", string(change.From)),
		slog.String("to", string(change.To)),
	)
	return result, nil
}

// Recompute re-evaluates readiness for the whole instance without applying
// a step action. Useful after the execution context changed (new answers,
// matter updates) since branch conditions may now resolve differently.
func (e *Engine) Recompute(ctx context.Context, inst *schema.WorkflowInstance, execCtx map[string]any) (*TransitionResult, error) {
	if inst.Status != schema.InstanceStatusActive {
		return nil, schema.NewErrorf(schema.ErrCodeInstanceInactive,
			"instance is %s, recompute requires ACTIVE", inst.Status)
	}

	now := e.clock()
	result := &TransitionResult{InstanceStatus: inst.Status}
	scope := e.buildScope(inst, execCtx)
	e.applyRecompute(ctx, inst, scope, now, schema.TransitionRequest{}, result)
	if len(result.Changes) > 0 {
		inst.UpdatedAt = now
	}
	return result, nil
}

// Pause suspends an ACTIVE instance. Step states are untouched.
func (e *Engine) Pause(ctx context.Context, inst *schema.WorkflowInstance) (*TransitionResult, error) {
	return e.setStatus(ctx, inst, schema.InstanceStatusPaused, schema.TransitionRequest{})
}

// Resume reactivates a PAUSED instance.
func (e *Engine) Resume(ctx context.Context, inst *schema.WorkflowInstance) (*TransitionResult, error) {
	if inst.Status != schema.InstanceStatusPaused {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"cannot resume instance in status %s", inst.Status)
	}
	result, err := e.setStatus(ctx, inst, schema.InstanceStatusActive, schema.TransitionRequest{})
	if err != nil {
		return nil, err
	}
	// The generic mapper reports activation; a resume is its own event.
	result.Events[0].Type = schema.EventInstanceResumed
	return result, nil
}

// Cancel terminates the instance. ADMIN only. Every unfinished step is
// skipped so the snapshot reads as fully settled.
func (e *Engine) Cancel(ctx context.Context, inst *schema.WorkflowInstance, req schema.TransitionRequest) (*TransitionResult, error) {
	if req.ActorRole != schema.RoleAdmin {
		return nil, schema.NewErrorf(schema.ErrCodeForbidden,
			"role %s may not cancel an instance", req.ActorRole)
	}

	result, err := e.setStatus(ctx, inst, schema.InstanceStatusCanceled, req)
	if err != nil {
		return nil, err
	}

	now := inst.UpdatedAt
	reason := req.Reason
	if reason == "" {
		reason = "instance canceled"
	}
	for _, s := range inst.Steps {
		if s.ActionState.Terminal() {
			continue
		}
		from := s.ActionState
		s.ActionState = schema.StepStateSkipped
		s.SkipReason = reason
		change := StepChange{Step: s, From: from, To: s.ActionState, Event: schema.EventStepSkipped}
		result.Changes = append(result.Changes, change)
		result.Events = append(result.Events, e.stepEvent(inst, change, now, req))
	}

	logging.LogWith(logging.WithInstanceID(ctx, inst.ID), e.logger).
		InfoContext(ctx, "instance canceled", slog.Int("steps_skipped", len(result.Changes)))
	return result, nil
}

// setStatus applies a validated instance lifecycle transition.
func (e *Engine) setStatus(ctx context.Context, inst *schema.WorkflowInstance, to schema.InstanceStatus, req schema.TransitionRequest) (*TransitionResult, error) {
	if !isValidInstanceTransition(inst.Status, to) {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid instance transition: %s -> %s", inst.Status, to)
	}

	from := inst.Status
	now := e.clock()
	inst.Status = to
	inst.UpdatedAt = now

	result := &TransitionResult{InstanceStatus: to}
	result.Events = append(result.Events, e.instanceEvent(inst, from, now, req))
	return result, nil
}

// applyRecompute runs the resolver and folds its changes into the result.
func (e *Engine) applyRecompute(ctx context.Context, inst *schema.WorkflowInstance, scope *expressions.Scope, now time.Time, req schema.TransitionRequest, result *TransitionResult) {
	changes, diags := e.resolver.Recompute(ctx, inst.Steps, inst.Dependencies, scope)
	result.Diagnostics = append(result.Diagnostics, diags...)
	for _, change := range changes {
		e.recordChange(inst, change, scope, now, req, result)
	}
}

// recordChange appends the change with its event and any notification
// envelopes the entered state triggers.
func (e *Engine) recordChange(inst *schema.WorkflowInstance, change StepChange, scope *expressions.Scope, now time.Time, req schema.TransitionRequest, result *TransitionResult) {
	result.Changes = append(result.Changes, change)
	result.Events = append(result.Events, e.stepEvent(inst, change, now, req))

	if change.From == change.To {
		return
	}
	envelopes, diags := e.notifier.OnTransition(inst.ID, change.Step, change.To, scope, now)
	result.Envelopes = append(result.Envelopes, envelopes...)
	result.Diagnostics = append(result.Diagnostics, diags...)
}

// maybeComplete auto-completes the instance once every step has settled as
// COMPLETED or SKIPPED. A FAILED step keeps the instance open because a
// restart may still recover it.
func (e *Engine) maybeComplete(inst *schema.WorkflowInstance, now time.Time, req schema.TransitionRequest, result *TransitionResult) {
	for _, s := range inst.Steps {
		if s.ActionState != schema.StepStateCompleted && s.ActionState != schema.StepStateSkipped {
			return
		}
	}

	from := inst.Status
	inst.Status = schema.InstanceStatusCompleted
	inst.UpdatedAt = now
	result.InstanceStatus = inst.Status
	result.Events = append(result.Events, e.instanceEvent(inst, from, now, req))
}

// buildScope assembles the evaluation scope: the caller's execution context
// plus workflow metadata and the outputs of every completed step.
func (e *Engine) buildScope(inst *schema.WorkflowInstance, execCtx map[string]any) *expressions.Scope {
	merged := make(map[string]any, len(execCtx)+1)
	for k, v := range execCtx {
		merged[k] = v
	}
	merged[expressions.NSWorkflow] = map[string]any{
		"instance_id": inst.ID,
		"name":        inst.Name,
		"status":      string(inst.Status),
	}

	scope := expressions.NewScope(merged)
	for _, s := range inst.Steps {
		if s.ActionState == schema.StepStateCompleted {
			scope.AddStepOutput(s.ID, s.ActionData)
		}
	}
	return scope
}

func (e *Engine) stepEvent(inst *schema.WorkflowInstance, change StepChange, now time.Time, req schema.TransitionRequest) *schema.TransitionEvent {
	return &schema.TransitionEvent{
		ID:         uuid.NewString(),
		InstanceID: inst.ID,
		StepID:     change.Step.ID,
		Type:       change.Event,
		From:       string(change.From),
		To:         string(change.To),
		ActorRole:  req.ActorRole,
		ActorID:    req.ActorID,
		At:         now,
	}
}

func (e *Engine) instanceEvent(inst *schema.WorkflowInstance, from schema.InstanceStatus, now time.Time, req schema.TransitionRequest) *schema.TransitionEvent {
	return &schema.TransitionEvent{
		ID:         uuid.NewString(),
		InstanceID: inst.ID,
		Type:       instanceEventType(inst.Status),
		From:       string(from),
		To:         string(inst.Status),
		ActorRole:  req.ActorRole,
		ActorID:    req.ActorID,
		At:         now,
	}
}
