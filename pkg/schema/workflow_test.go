package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepState_Terminal(t *testing.T) {
	assert.True(t, StepStateCompleted.Terminal())
	assert.True(t, StepStateFailed.Terminal())
	assert.True(t, StepStateSkipped.Terminal())
	assert.False(t, StepStatePending.Terminal())
	assert.False(t, StepStateInProgress.Terminal())
}

func TestDependencyType_Classification(t *testing.T) {
	assert.True(t, DependsOn.Plain())
	assert.True(t, Triggers.Plain())
	assert.False(t, IfTrueBranch.Plain())

	assert.True(t, IfTrueBranch.Branch())
	assert.True(t, IfFalseBranch.Branch())
	assert.False(t, DependsOn.Branch())
}

func TestDependency_EffectiveLogic(t *testing.T) {
	d := &WorkflowDependency{}
	assert.Equal(t, LogicAll, d.EffectiveLogic())
	d.Logic = LogicAny
	assert.Equal(t, LogicAny, d.EffectiveLogic())
}

func TestWorkflowStep_CloneIsDeep(t *testing.T) {
	started := time.Now()
	step := &WorkflowStep{
		ID:           "s1",
		Title:        "Collect documents",
		ActionType:   ActionRequestDoc,
		RoleScope:    RoleClient,
		ActionConfig: json.RawMessage(`{"document_types":["passport"]}`),
		ActionData:   json.RawMessage(`{"document_refs":["doc-1"]}`),
		StartedAt:    &started,
		Notifications: []*NotificationPolicy{{
			ID:         "p1",
			Channel:    ChannelSMS,
			Triggers:   []NotificationTrigger{TriggerOnReady},
			Recipients: []string{"client@example.com"},
		}},
	}

	cp := step.Clone()
	cp.ActionConfig[2] = 'X'
	*cp.StartedAt = cp.StartedAt.Add(time.Hour)
	cp.Notifications[0].Recipients[0] = "other@example.com"

	assert.Equal(t, byte('d'), step.ActionConfig[2])
	assert.Equal(t, started, *step.StartedAt)
	assert.Equal(t, "client@example.com", step.Notifications[0].Recipients[0])
}

func TestInstance_StepByID(t *testing.T) {
	inst := &WorkflowInstance{Steps: []*WorkflowStep{{ID: "a"}, {ID: "b"}}}
	require.NotNil(t, inst.StepByID("b"))
	assert.Nil(t, inst.StepByID("ghost"))
}

func TestNotificationPolicy_FiresOn(t *testing.T) {
	p := &NotificationPolicy{Triggers: []NotificationTrigger{TriggerOnReady, TriggerOnFailed}}
	assert.True(t, p.FiresOn(TriggerOnReady))
	assert.False(t, p.FiresOn(TriggerOnCompleted))
}

func TestTriggerForState(t *testing.T) {
	assert.Equal(t, TriggerOnReady, TriggerForState(StepStateReady))
	assert.Equal(t, TriggerOnCompleted, TriggerForState(StepStateCompleted))
	assert.Equal(t, TriggerOnFailed, TriggerForState(StepStateFailed))
	assert.Empty(t, TriggerForState(StepStateSkipped))
	assert.Empty(t, TriggerForState(StepStateInProgress))
}

func TestNotificationChannel_NeedsTemplates(t *testing.T) {
	assert.True(t, ChannelEmail.NeedsTemplates())
	assert.True(t, ChannelPush.NeedsTemplates())
	assert.False(t, ChannelSMS.NeedsTemplates())
}
