// Package schema defines the domain model for workflow instances: steps,
// dependencies, conditions, notification policies, and the structured error
// and validation types shared across the engine.
package schema

import (
	"encoding/json"
	"time"
)

// InstanceStatus represents the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusDraft     InstanceStatus = "DRAFT"
	InstanceStatusActive    InstanceStatus = "ACTIVE"
	InstanceStatusPaused    InstanceStatus = "PAUSED"
	InstanceStatusCompleted InstanceStatus = "COMPLETED"
	InstanceStatusCanceled  InstanceStatus = "CANCELED"
)

// StepState represents the lifecycle state of a single step.
type StepState string

const (
	StepStatePending    StepState = "PENDING"
	StepStateReady      StepState = "READY"
	StepStateInProgress StepState = "IN_PROGRESS"
	StepStateBlocked    StepState = "BLOCKED"
	StepStateCompleted  StepState = "COMPLETED"
	StepStateFailed     StepState = "FAILED"
	StepStateSkipped    StepState = "SKIPPED"
)

// Terminal reports whether the state ends a step's current activation.
// FAILED and SKIPPED are terminal here even though a restart can re-open them.
func (s StepState) Terminal() bool {
	return s == StepStateCompleted || s == StepStateFailed || s == StepStateSkipped
}

// ActionType enumerates the closed set of step action variants.
type ActionType string

const (
	ActionChecklist             ActionType = "CHECKLIST"
	ActionApproval              ActionType = "APPROVAL"
	ActionSignature             ActionType = "SIGNATURE"
	ActionRequestDoc            ActionType = "REQUEST_DOC"
	ActionPayment               ActionType = "PAYMENT"
	ActionWriteText             ActionType = "WRITE_TEXT"
	ActionPopulateQuestionnaire ActionType = "POPULATE_QUESTIONNAIRE"
	ActionTask                  ActionType = "TASK"
	ActionAutomationEmail       ActionType = "AUTOMATION_EMAIL"
	ActionAutomationWebhook     ActionType = "AUTOMATION_WEBHOOK"
)

// Automated reports whether the action is completed by the automation runner
// rather than a human actor.
func (a ActionType) Automated() bool {
	return a == ActionAutomationEmail || a == ActionAutomationWebhook
}

// RoleScope is the actor class authorized to act on a step.
type RoleScope string

const (
	RoleAdmin     RoleScope = "ADMIN"
	RoleLawyer    RoleScope = "LAWYER"
	RoleParalegal RoleScope = "PARALEGAL"
	RoleClient    RoleScope = "CLIENT"
)

// DependencyType classifies a directed edge between two steps.
type DependencyType string

const (
	DependsOn     DependencyType = "DEPENDS_ON"      // plain prerequisite, gates readiness
	Triggers      DependencyType = "TRIGGERS"        // informational fan-out, not gating
	IfTrueBranch  DependencyType = "IF_TRUE_BRANCH"  // active when the edge condition is true
	IfFalseBranch DependencyType = "IF_FALSE_BRANCH" // active when the edge condition is false
)

// Plain reports whether the edge participates in the acyclicity requirement.
func (d DependencyType) Plain() bool {
	return d == DependsOn || d == Triggers
}

// Branch reports whether the edge is a conditional branch edge.
func (d DependencyType) Branch() bool {
	return d == IfTrueBranch || d == IfFalseBranch
}

// DependencyLogic aggregates multiple DEPENDS_ON prerequisites of one target.
type DependencyLogic string

const (
	LogicAll DependencyLogic = "ALL"
	LogicAny DependencyLogic = "ANY"
)

// ConditionType qualifies when a conditional edge applies.
type ConditionType string

const (
	ConditionAlways  ConditionType = "ALWAYS"
	ConditionIfTrue  ConditionType = "IF_TRUE"
	ConditionIfFalse ConditionType = "IF_FALSE"
	ConditionSwitch  ConditionType = "SWITCH"
)

// WorkflowStep is a unit of work within a workflow instance.
// ActionConfig and ActionData are raw JSON whose shape is owned by the
// step's action type (see internal/actiontypes).
type WorkflowStep struct {
	ID          string     `json:"id"           validate:"required"`
	Title       string     `json:"title"        validate:"required,min=1"`
	ActionType  ActionType `json:"action_type"  validate:"required"`
	RoleScope   RoleScope  `json:"role_scope"   validate:"required,oneof=ADMIN LAWYER PARALEGAL CLIENT"`
	Required    bool       `json:"required"`
	ActionState StepState  `json:"action_state"`

	ActionConfig json.RawMessage `json:"action_config,omitempty"`
	ActionData   json.RawMessage `json:"action_data,omitempty"`

	AssignedToID  string     `json:"assigned_to_id,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"` // advisory only, never enforced
	Priority      int        `json:"priority,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	SkipReason    string     `json:"skip_reason,omitempty"`

	// Layout hints from the design canvas. Inert pass-through metadata.
	PositionX int `json:"position_x"`
	PositionY int `json:"position_y"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Notifications []*NotificationPolicy `json:"notifications,omitempty"`
}

// Clone returns a deep copy of the step.
func (s *WorkflowStep) Clone() *WorkflowStep {
	cp := *s
	cp.ActionConfig = append(json.RawMessage(nil), s.ActionConfig...)
	cp.ActionData = append(json.RawMessage(nil), s.ActionData...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		cp.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	if s.DueDate != nil {
		t := *s.DueDate
		cp.DueDate = &t
	}
	if s.Notifications != nil {
		cp.Notifications = make([]*NotificationPolicy, len(s.Notifications))
		for i, p := range s.Notifications {
			cp.Notifications[i] = p.Clone()
		}
	}
	return &cp
}

// WorkflowDependency is a directed edge between two steps of one instance.
type WorkflowDependency struct {
	ID           string          `json:"id"`
	SourceStepID string          `json:"source_step_id" validate:"required"`
	TargetStepID string          `json:"target_step_id" validate:"required"`
	Type         DependencyType  `json:"type"           validate:"required,oneof=DEPENDS_ON TRIGGERS IF_TRUE_BRANCH IF_FALSE_BRANCH"`
	Logic        DependencyLogic `json:"logic,omitempty" validate:"omitempty,oneof=ALL ANY"`

	ConditionType ConditionType `json:"condition_type,omitempty" validate:"omitempty,oneof=ALWAYS IF_TRUE IF_FALSE SWITCH"`
	Condition     *Condition    `json:"condition,omitempty"`
}

// EffectiveLogic returns the edge's logic, defaulting to ALL when unset.
func (d *WorkflowDependency) EffectiveLogic() DependencyLogic {
	if d.Logic == "" {
		return LogicAll
	}
	return d.Logic
}

// WorkflowInstance is the aggregate: one running execution of a workflow
// template, holding its own steps, dependencies, and status.
type WorkflowInstance struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Status       InstanceStatus        `json:"status"`
	Steps        []*WorkflowStep       `json:"steps"`
	Dependencies []*WorkflowDependency `json:"dependencies"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// StepByID returns the step with the given ID, or nil.
func (w *WorkflowInstance) StepByID(id string) *WorkflowStep {
	for _, s := range w.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// TransitionAction enumerates the caller-initiated step actions.
type TransitionAction string

const (
	ActionStart    TransitionAction = "start"
	ActionClaim    TransitionAction = "claim"
	ActionComplete TransitionAction = "complete"
	ActionFail     TransitionAction = "fail"
	ActionSkip     TransitionAction = "skip"
)

// TransitionRequest is the boundary contract for a step transition.
type TransitionRequest struct {
	StepID    string           `json:"step_id"    validate:"required"`
	Action    TransitionAction `json:"action"     validate:"required,oneof=start claim complete fail skip"`
	Payload   map[string]any   `json:"payload,omitempty"`
	ActorRole RoleScope        `json:"actor_role" validate:"required,oneof=ADMIN LAWYER PARALEGAL CLIENT"`
	ActorID   string           `json:"actor_id,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}
