package schema

import "time"

// NotificationChannel is the delivery medium for a policy.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "EMAIL"
	ChannelSMS   NotificationChannel = "SMS"
	ChannelPush  NotificationChannel = "PUSH"
)

// NeedsTemplates reports whether the channel carries subject/body templates.
func (c NotificationChannel) NeedsTemplates() bool {
	return c == ChannelEmail || c == ChannelPush
}

// NotificationTrigger names the step transition a policy reacts to.
type NotificationTrigger string

const (
	TriggerOnReady     NotificationTrigger = "ON_READY"
	TriggerOnCompleted NotificationTrigger = "ON_COMPLETED"
	TriggerOnFailed    NotificationTrigger = "ON_FAILED"
)

// TriggerForState maps a step state entry to its trigger, or "" when the
// state carries no notification semantics.
func TriggerForState(to StepState) NotificationTrigger {
	switch to {
	case StepStateReady:
		return TriggerOnReady
	case StepStateCompleted:
		return TriggerOnCompleted
	case StepStateFailed:
		return TriggerOnFailed
	default:
		return ""
	}
}

// SendStrategy controls when an envelope becomes dispatchable.
type SendStrategy string

const (
	SendImmediate SendStrategy = "IMMEDIATE"
	SendDelayed   SendStrategy = "DELAYED"
)

// NotificationPolicy is attached to a step and describes when and to whom a
// notification should be produced. Recipient, subject, and body strings may
// carry ${{...}} tokens resolved against the execution context.
type NotificationPolicy struct {
	ID       string                `json:"id"`
	Channel  NotificationChannel   `json:"channel"  validate:"required,oneof=EMAIL SMS PUSH"`
	Triggers []NotificationTrigger `json:"triggers" validate:"required,min=1,dive,oneof=ON_READY ON_COMPLETED ON_FAILED"`

	Recipients []string `json:"recipients" validate:"required,min=1"`
	CC         []string `json:"cc,omitempty"`

	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`

	SendStrategy SendStrategy `json:"send_strategy" validate:"required,oneof=IMMEDIATE DELAYED"`
	DelayMinutes int          `json:"delay_minutes,omitempty" validate:"gte=0"`

	// DigestSchedule is an optional cron expression (standard five-field
	// syntax); when set, dispatch aligns to the next cron occurrence
	// instead of the IMMEDIATE/DELAYED offset.
	DigestSchedule string `json:"digest_schedule,omitempty"`
}

// Clone returns a deep copy of the policy.
func (p *NotificationPolicy) Clone() *NotificationPolicy {
	cp := *p
	cp.Triggers = append([]NotificationTrigger(nil), p.Triggers...)
	cp.Recipients = append([]string(nil), p.Recipients...)
	cp.CC = append([]string(nil), p.CC...)
	return &cp
}

// FiresOn reports whether the policy reacts to the given trigger.
func (p *NotificationPolicy) FiresOn(t NotificationTrigger) bool {
	for _, pt := range p.Triggers {
		if pt == t {
			return true
		}
	}
	return false
}

// Envelope is a resolved, ready-to-send notification description. The core
// produces envelopes; an external worker performs delivery.
type Envelope struct {
	ID         string              `json:"id"`
	InstanceID string              `json:"instance_id"`
	StepID     string              `json:"step_id"`
	PolicyID   string              `json:"policy_id,omitempty"`
	Trigger    NotificationTrigger `json:"trigger"`
	Channel    NotificationChannel `json:"channel"`
	Recipients []string            `json:"recipients"`
	CC         []string            `json:"cc,omitempty"`
	Subject    string              `json:"subject,omitempty"`
	Body       string              `json:"body,omitempty"`
	DispatchAt time.Time           `json:"dispatch_at"`
}
