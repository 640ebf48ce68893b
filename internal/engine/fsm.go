package engine

import "github.com/casekit/lexflow/pkg/schema"

// ValidStepTransitions defines the allowed state transitions for steps.
// PENDING -> READY and * -> BLOCKED are resolver-driven, never a direct
// user action; FAILED/SKIPPED -> READY is the restart path.
var ValidStepTransitions = map[schema.StepState][]schema.StepState{
	schema.StepStatePending:    {schema.StepStateReady, schema.StepStateBlocked, schema.StepStateSkipped},
	schema.StepStateReady:      {schema.StepStateInProgress, schema.StepStateSkipped},
	schema.StepStateInProgress: {schema.StepStateCompleted, schema.StepStateFailed},
	schema.StepStateBlocked:    {schema.StepStateReady, schema.StepStateSkipped},
	schema.StepStateCompleted:  {},
	schema.StepStateFailed:     {schema.StepStateReady},
	schema.StepStateSkipped:    {schema.StepStateReady},
}

// ValidInstanceTransitions defines the allowed lifecycle transitions for a
// workflow instance.
var ValidInstanceTransitions = map[schema.InstanceStatus][]schema.InstanceStatus{
	schema.InstanceStatusDraft:     {schema.InstanceStatusActive, schema.InstanceStatusCanceled},
	schema.InstanceStatusActive:    {schema.InstanceStatusPaused, schema.InstanceStatusCompleted, schema.InstanceStatusCanceled},
	schema.InstanceStatusPaused:    {schema.InstanceStatusActive, schema.InstanceStatusCanceled},
	schema.InstanceStatusCompleted: {},
	schema.InstanceStatusCanceled:  {},
}

func isValidStepTransition(from, to schema.StepState) bool {
	for _, a := range ValidStepTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

func isValidInstanceTransition(from, to schema.InstanceStatus) bool {
	for _, a := range ValidInstanceTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// stepEventType maps an entered step state to its event type.
func stepEventType(to schema.StepState) string {
	switch to {
	case schema.StepStateReady:
		return schema.EventStepReady
	case schema.StepStateInProgress:
		return schema.EventStepStarted
	case schema.StepStateCompleted:
		return schema.EventStepCompleted
	case schema.StepStateFailed:
		return schema.EventStepFailed
	case schema.StepStateSkipped:
		return schema.EventStepSkipped
	case schema.StepStateBlocked:
		return schema.EventStepBlocked
	default:
		return ""
	}
}

// instanceEventType maps an entered instance status to its event type.
func instanceEventType(to schema.InstanceStatus) string {
	switch to {
	case schema.InstanceStatusActive:
		return schema.EventInstanceActivated
	case schema.InstanceStatusPaused:
		return schema.EventInstancePaused
	case schema.InstanceStatusCompleted:
		return schema.EventInstanceCompleted
	case schema.InstanceStatusCanceled:
		return schema.EventInstanceCanceled
	default:
		return ""
	}
}
