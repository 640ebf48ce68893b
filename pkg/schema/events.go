package schema

import "time"

// Event type constants for the transition record.
const (
	EventInstanceActivated = "instance_activated"
	EventInstancePaused    = "instance_paused"
	EventInstanceResumed   = "instance_resumed"
	EventInstanceCompleted = "instance_completed"
	EventInstanceCanceled  = "instance_canceled"

	EventStepReady      = "step_ready"
	EventStepStarted    = "step_started"
	EventStepClaimed    = "step_claimed"
	EventStepCompleted  = "step_completed"
	EventStepFailed     = "step_failed"
	EventStepSkipped    = "step_skipped"
	EventStepBlocked    = "step_blocked"
	EventStepRestarted  = "step_restarted"
)

// TransitionEvent records one applied state change. Events are returned on
// the TransitionResult; durable storage is the caller's concern.
type TransitionEvent struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	StepID     string    `json:"step_id,omitempty"`
	Type       string    `json:"type"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	ActorRole  RoleScope `json:"actor_role,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	At         time.Time `json:"at"`
}
