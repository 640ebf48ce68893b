package engine

import (
	"context"
	"fmt"

	"github.com/casekit/lexflow/internal/conditions"
	"github.com/casekit/lexflow/internal/expressions"
	"github.com/casekit/lexflow/pkg/schema"
)

// Resolver recomputes step readiness over the whole graph. It is a global,
// not incremental, computation: branch outcomes can change aggregate
// satisfaction for any PENDING step, so every call re-evaluates everything.
// A single topologically ordered pass reaches the fixed point, which makes
// repeated calls against the same snapshot idempotent.
type Resolver struct {
	evaluator        *conditions.Evaluator
	skippedSatisfies bool
}

// NewResolver creates a Resolver. skippedSatisfies controls whether SKIPPED
// prerequisites count as satisfied for downstream ALL/ANY evaluation.
func NewResolver(evaluator *conditions.Evaluator, skippedSatisfies bool) *Resolver {
	return &Resolver{evaluator: evaluator, skippedSatisfies: skippedSatisfies}
}

// Recompute advances every PENDING or BLOCKED step whose dependencies are
// now satisfied to READY, and conservatively demotes provably unsatisfiable
// steps to BLOCKED. Steps are visited in topological order of the plain
// dependency graph (prerequisites before dependents).
func (r *Resolver) Recompute(ctx context.Context, steps []*schema.WorkflowStep, deps []*schema.WorkflowDependency, scope *expressions.Scope) ([]StepChange, []schema.Diagnostic) {
	byID := make(map[string]*schema.WorkflowStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	dependsOn := make(map[string][]*schema.WorkflowDependency)
	branches := make(map[string][]*schema.WorkflowDependency)
	for _, d := range deps {
		if byID[d.SourceStepID] == nil || byID[d.TargetStepID] == nil {
			continue // design-time validation reports these
		}
		switch {
		case d.Type == schema.DependsOn:
			dependsOn[d.TargetStepID] = append(dependsOn[d.TargetStepID], d)
		case d.Type.Branch():
			branches[d.TargetStepID] = append(branches[d.TargetStepID], d)
		}
	}

	var changes []StepChange
	var diags []schema.Diagnostic

	for _, id := range topoOrder(steps, deps) {
		step := byID[id]
		if step.ActionState != schema.StepStatePending && step.ActionState != schema.StepStateBlocked {
			continue
		}

		depsMet, depsDead, dDiags := r.prerequisites(step, dependsOn[id], byID)
		diags = append(diags, dDiags...)

		branchMet, branchDead, bDiags := r.branchGate(ctx, step, branches[id], byID, scope)
		diags = append(diags, bDiags...)

		switch {
		case depsMet && branchMet:
			if isValidStepTransition(step.ActionState, schema.StepStateReady) {
				changes = append(changes, r.transition(step, schema.StepStateReady))
			}
		case depsDead || (depsMet && branchDead):
			if step.ActionState == schema.StepStatePending {
				changes = append(changes, r.transition(step, schema.StepStateBlocked))
			}
		}
	}

	return changes, diags
}

func (r *Resolver) transition(step *schema.WorkflowStep, to schema.StepState) StepChange {
	from := step.ActionState
	step.ActionState = to
	return StepChange{Step: step, From: from, To: to, Event: stepEventType(to)}
}

// prerequisites evaluates the step's incoming DEPENDS_ON edges.
// met: the ALL/ANY requirement holds now. dead: it provably never will,
// claimed only when no unsatisfied prerequisite can still complete.
func (r *Resolver) prerequisites(step *schema.WorkflowStep, edges []*schema.WorkflowDependency, byID map[string]*schema.WorkflowStep) (met, dead bool, diags []schema.Diagnostic) {
	if len(edges) == 0 {
		return true, false, nil // root step
	}

	logic, conflict := targetLogic(edges)
	if conflict {
		diags = append(diags, schema.Diagnostic{
			Source:  "resolver",
			Code:    schema.ErrCodeLogicConflict,
			StepID:  step.ID,
			Message: fmt.Sprintf("step %q has conflicting ALL/ANY dependency logic; ALL applied", step.ID),
		})
	}

	satisfied, pending := 0, 0
	for _, e := range edges {
		src := byID[e.SourceStepID]
		switch {
		case r.satisfies(src.ActionState):
			satisfied++
		case canStillComplete(src.ActionState):
			pending++
		}
	}

	if logic == schema.LogicAny {
		met = satisfied > 0
		dead = !met && pending == 0
		return met, dead, diags
	}

	met = satisfied == len(edges)
	dead = !met && satisfied+pending < len(edges)
	return met, dead, diags
}

// branchGate evaluates incoming IF_TRUE_BRANCH/IF_FALSE_BRANCH edges. A
// step with no conditional incoming edges passes. Otherwise at least one
// edge must have a COMPLETED source whose condition resolved to the edge's
// polarity. dead: every branch source has settled and none resolved here.
func (r *Resolver) branchGate(ctx context.Context, step *schema.WorkflowStep, edges []*schema.WorkflowDependency, byID map[string]*schema.WorkflowStep, scope *expressions.Scope) (met, dead bool, diags []schema.Diagnostic) {
	if len(edges) == 0 {
		return true, false, nil
	}

	settled := 0
	for _, e := range edges {
		src := byID[e.SourceStepID]
		if src.ActionState != schema.StepStateCompleted {
			if !canStillComplete(src.ActionState) {
				settled++
			}
			continue
		}
		settled++

		outcome, cDiags := r.evaluator.Evaluate(ctx, e.Condition, scope)
		diags = append(diags, cDiags...)
		if (e.Type == schema.IfTrueBranch && outcome) || (e.Type == schema.IfFalseBranch && !outcome) {
			met = true
		}
	}

	dead = !met && settled == len(edges)
	return met, dead, diags
}

// satisfies reports whether a prerequisite state counts for ALL/ANY logic.
func (r *Resolver) satisfies(s schema.StepState) bool {
	if s == schema.StepStateCompleted {
		return true
	}
	return s == schema.StepStateSkipped && r.skippedSatisfies
}

// canStillComplete is the conservative recoverability test: BLOCKED,
// FAILED, and SKIPPED states require an explicit restart before they can
// complete, so they do not count.
func canStillComplete(s schema.StepState) bool {
	return s == schema.StepStatePending || s == schema.StepStateReady || s == schema.StepStateInProgress
}

// targetLogic derives the per-target logic from its incoming edges,
// preferring ALL when edges disagree.
func targetLogic(edges []*schema.WorkflowDependency) (schema.DependencyLogic, bool) {
	logic := edges[0].EffectiveLogic()
	for _, e := range edges[1:] {
		if e.EffectiveLogic() != logic {
			return schema.LogicAll, true
		}
	}
	return logic, false
}

// topoOrder returns step IDs with prerequisites before dependents (Kahn's
// algorithm over plain edges). The validator guarantees acyclicity for
// ACTIVE instances; any leftover nodes (mid-edit cycles) are appended in
// declaration order so the pass still terminates.
func topoOrder(steps []*schema.WorkflowStep, deps []*schema.WorkflowDependency) []string {
	ids := make(map[string]bool, len(steps))
	for _, s := range steps {
		ids[s.ID] = true
	}

	out := make(map[string][]string, len(steps))
	inDegree := make(map[string]int, len(steps))
	for _, d := range deps {
		if !d.Type.Plain() || !ids[d.SourceStepID] || !ids[d.TargetStepID] || d.SourceStepID == d.TargetStepID {
			continue
		}
		out[d.SourceStepID] = append(out[d.SourceStepID], d.TargetStepID)
		inDegree[d.TargetStepID]++
	}

	var queue []string
	for _, s := range steps {
		if inDegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	order := make([]string, 0, len(steps))
	visited := make(map[string]bool, len(steps))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited[id] = true
		order = append(order, id)
		for _, next := range out[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	for _, s := range steps {
		if !visited[s.ID] {
			order = append(order, s.ID)
		}
	}
	return order
}
