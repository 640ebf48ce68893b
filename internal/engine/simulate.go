package engine

import (
	"context"

	"github.com/casekit/lexflow/pkg/schema"
)

// SimulationStep is the outcome of one simulated transition request.
type SimulationStep struct {
	Request schema.TransitionRequest `json:"request"`
	Error   string                   `json:"error,omitempty"`
	Changes []string                 `json:"changes,omitempty"` // "<step>: <from> -> <to>"
}

// SimulationReport summarizes a dry run of a request sequence.
type SimulationReport struct {
	InstanceStatus schema.InstanceStatus       `json:"instance_status"`
	Requests       []SimulationStep            `json:"requests"`
	FinalStates    map[string]schema.StepState `json:"final_states"`
	Envelopes      []*schema.Envelope          `json:"envelopes,omitempty"`
	Diagnostics    []schema.Diagnostic         `json:"diagnostics,omitempty"`
}

// Simulate dry-runs a sequence of transition requests against a copy of the
// instance. The original is never mutated. A DRAFT instance is activated
// first; rejected requests are recorded and the run continues, mirroring
// how a reviewer walks a workflow on the design canvas.
func (e *Engine) Simulate(ctx context.Context, inst *schema.WorkflowInstance, requests []schema.TransitionRequest, execCtx map[string]any) (*SimulationReport, error) {
	work := cloneInstance(inst)
	report := &SimulationReport{FinalStates: make(map[string]schema.StepState, len(work.Steps))}

	if work.Status == schema.InstanceStatusDraft {
		result, err := e.Activate(ctx, work, execCtx)
		if err != nil {
			return nil, err
		}
		report.Envelopes = append(report.Envelopes, result.Envelopes...)
		report.Diagnostics = append(report.Diagnostics, result.Diagnostics...)
	}

	for _, req := range requests {
		entry := SimulationStep{Request: req}
		result, err := e.Transition(ctx, work, req, execCtx)
		if err != nil {
			entry.Error = err.Error()
		} else {
			for _, c := range result.Changes {
				entry.Changes = append(entry.Changes,
					c.Step.ID+": "+string(c.From)+" -> "+string(c.To))
			}
			report.Envelopes = append(report.Envelopes, result.Envelopes...)
			report.Diagnostics = append(report.Diagnostics, result.Diagnostics...)
		}
		report.Requests = append(report.Requests, entry)
	}

	report.InstanceStatus = work.Status
	for _, s := range work.Steps {
		report.FinalStates[s.ID] = s.ActionState
	}
	return report, nil
}

// cloneInstance deep-copies the instance for simulation. Dependency edges
// are copied by value; their conditions are read-only during evaluation.
func cloneInstance(inst *schema.WorkflowInstance) *schema.WorkflowInstance {
	cp := *inst
	cp.Steps = make([]*schema.WorkflowStep, len(inst.Steps))
	for i, s := range inst.Steps {
		cp.Steps[i] = s.Clone()
	}
	cp.Dependencies = make([]*schema.WorkflowDependency, len(inst.Dependencies))
	for i, d := range inst.Dependencies {
		dc := *d
		cp.Dependencies[i] = &dc
	}
	return &cp
}
