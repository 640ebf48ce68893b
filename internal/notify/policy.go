package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/casekit/lexflow/internal/expressions"
	"github.com/casekit/lexflow/pkg/schema"
)

// Evaluator produces notification envelopes from step transitions. It is
// stateless; the caller supplies the clock so evaluation stays deterministic
// under test and in simulation.
type Evaluator struct {
	interp Interpolator
	parser cron.Parser
}

// NewEvaluator creates a policy Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// OnTransition evaluates the step's policies against the state just entered.
// Transitions without notification semantics (anything other than entering
// READY, COMPLETED, or FAILED) yield nothing. Template and schedule problems
// degrade to diagnostics; a policy is never dropped because a token failed
// to resolve.
func (e *Evaluator) OnTransition(instanceID string, step *schema.WorkflowStep, to schema.StepState, scope *expressions.Scope, now time.Time) ([]*schema.Envelope, []schema.Diagnostic) {
	trigger := schema.TriggerForState(to)
	if trigger == "" || len(step.Notifications) == 0 {
		return nil, nil
	}

	var envelopes []*schema.Envelope
	var diags []schema.Diagnostic

	for _, policy := range step.Notifications {
		if !policy.FiresOn(trigger) {
			continue
		}

		env, d := e.build(instanceID, step, policy, trigger, scope, now)
		diags = append(diags, d...)
		envelopes = append(envelopes, env)
	}

	return envelopes, diags
}

// build resolves one policy into an envelope.
func (e *Evaluator) build(instanceID string, step *schema.WorkflowStep, policy *schema.NotificationPolicy, trigger schema.NotificationTrigger, scope *expressions.Scope, now time.Time) (*schema.Envelope, []schema.Diagnostic) {
	var diags []schema.Diagnostic

	recipients, d := e.interp.ResolveAll(policy.Recipients, scope, step.ID)
	diags = append(diags, d...)
	cc, d := e.interp.ResolveAll(policy.CC, scope, step.ID)
	diags = append(diags, d...)
	subject, d := e.interp.ResolveString(policy.Subject, scope, step.ID)
	diags = append(diags, d...)
	body, d := e.interp.ResolveString(policy.Body, scope, step.ID)
	diags = append(diags, d...)

	dispatchAt, d := e.dispatchAt(policy, step.ID, now)
	diags = append(diags, d...)

	return &schema.Envelope{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		StepID:     step.ID,
		PolicyID:   policy.ID,
		Trigger:    trigger,
		Channel:    policy.Channel,
		Recipients: recipients,
		CC:         cc,
		Subject:    subject,
		Body:       body,
		DispatchAt: dispatchAt,
	}, diags
}

// dispatchAt computes the envelope's earliest dispatch time. A digest
// schedule takes precedence over the send strategy; an unparseable schedule
// falls back to the strategy with a diagnostic.
func (e *Evaluator) dispatchAt(policy *schema.NotificationPolicy, stepID string, now time.Time) (time.Time, []schema.Diagnostic) {
	if policy.DigestSchedule != "" {
		sched, err := e.parser.Parse(policy.DigestSchedule)
		if err == nil {
			return sched.Next(now), nil
		}
		diag := []schema.Diagnostic{{
			Source:  "notify",
			Code:    schema.ErrCodeSchedule,
			Message: "invalid digest schedule: " + err.Error(),
			StepID:  stepID,
		}}
		return e.strategyTime(policy, now), diag
	}
	return e.strategyTime(policy, now), nil
}

func (e *Evaluator) strategyTime(policy *schema.NotificationPolicy, now time.Time) time.Time {
	if policy.SendStrategy == schema.SendDelayed {
		return now.Add(time.Duration(policy.DelayMinutes) * time.Minute)
	}
	return now
}
