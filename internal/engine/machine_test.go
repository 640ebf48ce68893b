package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casekit/lexflow/internal/actiontypes"
	"github.com/casekit/lexflow/pkg/schema"
)

func newTestStep(id string, state schema.StepState) *schema.WorkflowStep {
	return &schema.WorkflowStep{
		ID:          id,
		Title:       "Step " + id,
		ActionType:  schema.ActionTask,
		RoleScope:   schema.RoleLawyer,
		Required:    true,
		ActionState: state,
	}
}

func newMachine() *StepMachine {
	return NewStepMachine(actiontypes.Defaults())
}

func asFlowError(t *testing.T, err error) *schema.FlowError {
	t.Helper()
	require.Error(t, err)
	fe, ok := err.(*schema.FlowError)
	require.True(t, ok, "expected *schema.FlowError, got %T", err)
	return fe
}

// --- start ---

func TestStepMachine_StartFromReady(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateReady)
	now := time.Now()

	change, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionStart, ActorRole: schema.RoleLawyer,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, schema.StepStateInProgress, step.ActionState)
	assert.Equal(t, schema.StepStateReady, change.From)
	assert.Equal(t, schema.EventStepStarted, change.Event)
	require.NotNil(t, step.StartedAt)
	assert.Equal(t, now, *step.StartedAt)
}

func TestStepMachine_RestartClearsOutcome(t *testing.T) {
	m := newMachine()
	now := time.Now()
	started := now.Add(-time.Hour)

	step := newTestStep("s1", schema.StepStateFailed)
	step.StartedAt = &started
	step.CompletedAt = &now
	step.FailureReason = "client unreachable"

	change, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionStart, ActorRole: schema.RoleLawyer,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, schema.StepStateReady, step.ActionState)
	assert.Equal(t, schema.EventStepRestarted, change.Event)
	assert.Nil(t, step.StartedAt)
	assert.Nil(t, step.CompletedAt)
	assert.Empty(t, step.FailureReason)
}

func TestStepMachine_StartRejectedStates(t *testing.T) {
	m := newMachine()
	for _, state := range []schema.StepState{
		schema.StepStatePending,
		schema.StepStateBlocked,
		schema.StepStateInProgress,
		schema.StepStateCompleted,
	} {
		step := newTestStep("s1", state)
		_, err := m.Apply(step, schema.TransitionRequest{
			StepID: "s1", Action: schema.ActionStart, ActorRole: schema.RoleLawyer,
		}, time.Now())

		fe := asFlowError(t, err)
		assert.Equal(t, schema.ErrCodeInvalidTransition, fe.Code, "state %s", state)
		assert.Equal(t, state, step.ActionState, "rejected transition must not mutate")
	}
}

// --- role gating ---

func TestStepMachine_RoleGate(t *testing.T) {
	m := newMachine()

	step := newTestStep("s1", schema.StepStateReady)
	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionStart, ActorRole: schema.RoleClient,
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeForbidden, fe.Code)
	assert.Equal(t, schema.StepStateReady, step.ActionState)

	// ADMIN overrides any role scope.
	_, err = m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionStart, ActorRole: schema.RoleAdmin,
	}, time.Now())
	require.NoError(t, err)
}

// --- claim ---

func TestStepMachine_ClaimAssignsWithoutStateChange(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateReady)

	change, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionClaim, ActorRole: schema.RoleLawyer, ActorID: "u-7",
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "u-7", step.AssignedToID)
	assert.Equal(t, schema.StepStateReady, step.ActionState)
	assert.Equal(t, change.From, change.To)
	assert.Equal(t, schema.EventStepClaimed, change.Event)
}

func TestStepMachine_ClaimConflict(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateInProgress)
	step.AssignedToID = "u-1"

	// Re-claim by the same actor is fine.
	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionClaim, ActorRole: schema.RoleLawyer, ActorID: "u-1",
	}, time.Now())
	require.NoError(t, err)

	_, err = m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionClaim, ActorRole: schema.RoleLawyer, ActorID: "u-2",
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeConflict, fe.Code)
	assert.Equal(t, "u-1", step.AssignedToID)
}

func TestStepMachine_ClaimRequiresActorID(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateReady)

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionClaim, ActorRole: schema.RoleLawyer,
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
}

func TestStepMachine_ClaimRejectedWhenNotActionable(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStatePending)

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionClaim, ActorRole: schema.RoleLawyer, ActorID: "u-1",
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeInvalidTransition, fe.Code)
}

// --- complete ---

func TestStepMachine_CompleteMergesPayload(t *testing.T) {
	m := newMachine()
	started := time.Now().Add(-time.Minute)
	step := newTestStep("s1", schema.StepStateInProgress)
	step.StartedAt = &started

	now := time.Now()
	change, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionComplete, ActorRole: schema.RoleLawyer,
		Payload: map[string]any{"note": "done"},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, schema.StepStateCompleted, step.ActionState)
	assert.Equal(t, schema.EventStepCompleted, change.Event)
	assert.JSONEq(t, `{"note":"done"}`, string(step.ActionData))
	require.NotNil(t, step.CompletedAt)
	assert.False(t, step.CompletedAt.Before(started))
}

func TestStepMachine_CompleteRejectsInvalidPayload(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateInProgress)
	step.ActionType = schema.ActionApproval

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionComplete, ActorRole: schema.RoleLawyer,
		Payload: map[string]any{"comment": "looks good"},
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodePayloadInvalid, fe.Code)
	assert.Equal(t, "s1", fe.StepID)
	assert.Equal(t, schema.StepStateInProgress, step.ActionState)
	assert.Empty(t, step.ActionData)
}

func TestStepMachine_CompleteOnlyFromInProgress(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateReady)

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionComplete, ActorRole: schema.RoleLawyer,
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeInvalidTransition, fe.Code)
}

// --- fail ---

func TestStepMachine_FailRequiresReason(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateInProgress)

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionFail, ActorRole: schema.RoleLawyer,
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)

	change, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionFail, ActorRole: schema.RoleLawyer,
		Reason: "signature bounced",
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, schema.StepStateFailed, step.ActionState)
	assert.Equal(t, "signature bounced", step.FailureReason)
	assert.Equal(t, schema.EventStepFailed, change.Event)
}

// --- skip ---

func TestStepMachine_SkipOptionalStepAsAdmin(t *testing.T) {
	m := newMachine()
	for _, state := range []schema.StepState{
		schema.StepStatePending,
		schema.StepStateReady,
		schema.StepStateBlocked,
	} {
		step := newTestStep("s1", state)
		step.Required = false

		change, err := m.Apply(step, schema.TransitionRequest{
			StepID: "s1", Action: schema.ActionSkip, ActorRole: schema.RoleAdmin,
			Reason: "not applicable for this matter",
		}, time.Now())
		require.NoError(t, err, "state %s", state)
		assert.Equal(t, schema.StepStateSkipped, step.ActionState)
		assert.Equal(t, "not applicable for this matter", step.SkipReason)
		assert.Equal(t, schema.EventStepSkipped, change.Event)
	}
}

func TestStepMachine_SkipRejectsRequiredStep(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateReady)

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionSkip, ActorRole: schema.RoleAdmin,
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeForbidden, fe.Code)
}

func TestStepMachine_SkipRejectsNonAdmin(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateReady)
	step.Required = false

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionSkip, ActorRole: schema.RoleLawyer,
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeForbidden, fe.Code)
}

func TestStepMachine_SkipRejectsInProgress(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateInProgress)
	step.Required = false

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: schema.ActionSkip, ActorRole: schema.RoleAdmin,
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeInvalidTransition, fe.Code)
}

// --- unknown action ---

func TestStepMachine_UnknownAction(t *testing.T) {
	m := newMachine()
	step := newTestStep("s1", schema.StepStateReady)

	_, err := m.Apply(step, schema.TransitionRequest{
		StepID: "s1", Action: "retry", ActorRole: schema.RoleAdmin,
	}, time.Now())
	fe := asFlowError(t, err)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
}
