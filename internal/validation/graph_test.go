package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casekit/lexflow/pkg/schema"
)

func step(id string) *schema.WorkflowStep {
	return &schema.WorkflowStep{
		ID:         id,
		Title:      strings.ToUpper(id[:1]) + id[1:],
		ActionType: schema.ActionTask,
		RoleScope:  schema.RoleLawyer,
	}
}

func edge(source, target string, kind schema.DependencyType) *schema.WorkflowDependency {
	return &schema.WorkflowDependency{SourceStepID: source, TargetStepID: target, Type: kind}
}

func errorCodes(r *schema.ValidationResult) []string {
	codes := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		codes[i] = e.Code
	}
	return codes
}

func warningCodes(r *schema.ValidationResult) []string {
	codes := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		codes[i] = w.Code
	}
	return codes
}

// --- dangling references and self-loops ---

func TestValidateGraph_DanglingReferences(t *testing.T) {
	steps := []*schema.WorkflowStep{step("a")}
	deps := []*schema.WorkflowDependency{
		edge("a", "ghost", schema.DependsOn),
		edge("phantom", "a", schema.DependsOn),
	}

	result := validateGraph(steps, deps)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, []string{schema.ErrCodeUnknownStep, schema.ErrCodeUnknownStep}, errorCodes(result))
	assert.Contains(t, result.Errors[0].Message, `"ghost"`)
	assert.Contains(t, result.Errors[1].Message, `"phantom"`)
}

func TestValidateGraph_SelfLoop(t *testing.T) {
	steps := []*schema.WorkflowStep{step("a")}
	deps := []*schema.WorkflowDependency{edge("a", "a", schema.DependsOn)}

	result := validateGraph(steps, deps)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeSelfLoop, result.Errors[0].Code)
	assert.Equal(t, "a", result.Errors[0].StepID)
}

// --- cycle detection ---

func TestValidateGraph_CycleReportsFullPath(t *testing.T) {
	steps := []*schema.WorkflowStep{step("a"), step("b"), step("c")}
	deps := []*schema.WorkflowDependency{
		edge("a", "b", schema.DependsOn),
		edge("b", "c", schema.DependsOn),
		edge("c", "a", schema.DependsOn),
	}

	result := validateGraph(steps, deps)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeCycleDetected, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "A -> B -> C -> A")
}

func TestValidateGraph_MultipleCyclesReportedOnce(t *testing.T) {
	steps := []*schema.WorkflowStep{step("a"), step("b"), step("c"), step("d")}
	deps := []*schema.WorkflowDependency{
		edge("a", "b", schema.DependsOn),
		edge("b", "a", schema.DependsOn),
		edge("c", "d", schema.DependsOn),
		edge("d", "c", schema.DependsOn),
	}

	result := validateGraph(steps, deps)
	assert.Len(t, result.Errors, 2)
	for _, e := range result.Errors {
		assert.Equal(t, schema.ErrCodeCycleDetected, e.Code)
	}
}

func TestValidateGraph_BranchEdgesExemptFromCycleCheck(t *testing.T) {
	// A loop closed only by a branch edge is legal (repeat-until shapes)
	// but surfaced as a BRANCH_LOOP warning.
	steps := []*schema.WorkflowStep{step("draft"), step("check")}
	deps := []*schema.WorkflowDependency{
		edge("draft", "check", schema.DependsOn),
		edge("check", "draft", schema.IfFalseBranch),
	}

	result := validateGraph(steps, deps)
	assert.Empty(t, result.Errors)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, warningCodes(result), schema.ErrCodeBranchLoop)
}

func TestValidateGraph_AcyclicDiamondIsClean(t *testing.T) {
	steps := []*schema.WorkflowStep{step("a"), step("b"), step("c"), step("d")}
	deps := []*schema.WorkflowDependency{
		edge("a", "b", schema.DependsOn),
		edge("a", "c", schema.DependsOn),
		edge("b", "d", schema.DependsOn),
		edge("c", "d", schema.DependsOn),
	}

	result := validateGraph(steps, deps)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

// --- reachability ---

func TestValidateGraph_UnreachableStepWarns(t *testing.T) {
	// b and c depend on each other, so neither is a root; both are
	// unreachable. The cycle error suppresses the reachability pass, so
	// use a branch-only island instead.
	steps := []*schema.WorkflowStep{step("a"), step("b"), step("c")}
	deps := []*schema.WorkflowDependency{
		edge("b", "c", schema.IfTrueBranch),
		edge("c", "b", schema.IfTrueBranch),
	}

	result := validateGraph(steps, deps)
	assert.Empty(t, result.Errors)

	var unreachable []string
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, "unreachable") {
			unreachable = append(unreachable, w.Path)
		}
	}
	assert.ElementsMatch(t, []string{"steps[b]", "steps[c]"}, unreachable)
}

func TestValidateGraph_ReachabilitySkippedWhenCyclic(t *testing.T) {
	steps := []*schema.WorkflowStep{step("a"), step("b")}
	deps := []*schema.WorkflowDependency{
		edge("a", "b", schema.DependsOn),
		edge("b", "a", schema.DependsOn),
	}

	result := validateGraph(steps, deps)
	require.Len(t, result.Errors, 1)
	for _, w := range result.Warnings {
		assert.NotContains(t, w.Message, "unreachable")
	}
}
