package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/casekit/lexflow/pkg/schema"
)

// validateGraph performs structural analysis of the step/dependency set:
// dangling references, self-loops, cycle detection over plain
// (DEPENDS_ON/TRIGGERS) edges, branch-loop detection, and reachability.
// All violations are collected; nothing short-circuits, so a partially
// edited canvas reports every problem at once.
func validateGraph(steps []*schema.WorkflowStep, deps []*schema.WorkflowDependency) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	byID := make(map[string]*schema.WorkflowStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	// plain edges drive the acyclicity requirement; all edges drive
	// reachability and branch-loop analysis.
	plain := make(map[string][]string, len(steps))
	all := make(map[string][]string, len(steps))
	incoming := make(map[string]int, len(steps))

	for i, d := range deps {
		path := fmt.Sprintf("dependencies[%d]", i)

		known := true
		if _, ok := byID[d.SourceStepID]; !ok {
			result.AddError(path+".source_step_id", schema.ErrCodeUnknownStep,
				fmt.Sprintf("references unknown step %q", d.SourceStepID))
			known = false
		}
		if _, ok := byID[d.TargetStepID]; !ok {
			result.AddError(path+".target_step_id", schema.ErrCodeUnknownStep,
				fmt.Sprintf("references unknown step %q", d.TargetStepID))
			known = false
		}
		if !known {
			continue
		}

		if d.SourceStepID == d.TargetStepID {
			result.AddStepError(path, d.SourceStepID, schema.ErrCodeSelfLoop,
				fmt.Sprintf("step %q depends on itself", titleOf(byID, d.SourceStepID)))
			continue
		}

		all[d.SourceStepID] = append(all[d.SourceStepID], d.TargetStepID)
		incoming[d.TargetStepID]++
		if d.Type.Plain() {
			plain[d.SourceStepID] = append(plain[d.SourceStepID], d.TargetStepID)
		}
	}

	cyclic := detectCycles(steps, byID, plain, result)
	detectBranchLoops(byID, deps, all, result)
	if !cyclic {
		// Reachability over a cyclic graph would mislabel every cycle
		// member as unreachable.
		checkReachability(steps, all, incoming, result)
	}

	return result
}

// detectCycles runs a depth-first search with an explicit recursion stack
// over plain edges. On finding a back-edge it reconstructs the full cycle
// path (ordered step titles) for diagnostics. Each distinct cycle is
// reported once.
func detectCycles(steps []*schema.WorkflowStep, byID map[string]*schema.WorkflowStep, edges map[string][]string, result *schema.ValidationResult) bool {
	const (
		white = iota // unvisited
		gray         // on the recursion stack
		black        // fully explored
	)

	color := make(map[string]int, len(steps))
	reported := make(map[string]bool)
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		stack = append(stack, id)

		for _, next := range edges[id] {
			switch color[next] {
			case gray:
				// Back-edge: the cycle is the stack suffix starting at next.
				start := 0
				for i, sid := range stack {
					if sid == next {
						start = i
						break
					}
				}
				cycle := append([]string(nil), stack[start:]...)
				if key := cycleKey(cycle); !reported[key] {
					reported[key] = true
					titles := make([]string, len(cycle))
					for i, sid := range cycle {
						titles[i] = titleOf(byID, sid)
					}
					result.AddStepError("dependencies", next, schema.ErrCodeCycleDetected,
						fmt.Sprintf("dependency cycle: %s -> %s", strings.Join(titles, " -> "), titles[0]))
				}
			case white:
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	// Iterate in declaration order for deterministic reports.
	for _, s := range steps {
		if color[s.ID] == white {
			visit(s.ID)
		}
	}

	return len(reported) > 0
}

// cycleKey canonicalizes a cycle so rotations of the same cycle dedupe.
func cycleKey(cycle []string) string {
	sorted := append([]string(nil), cycle...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

// detectBranchLoops warns when a branch target can reach back to its own
// decision source through any edge kind. Branch edges are exempt from the
// plain-dependency cycle check, but such a loop would re-enter a decided
// branch chain, so it is surfaced for the workflow author.
func detectBranchLoops(byID map[string]*schema.WorkflowStep, deps []*schema.WorkflowDependency, all map[string][]string, result *schema.ValidationResult) {
	for i, d := range deps {
		if !d.Type.Branch() {
			continue
		}
		if _, ok := byID[d.SourceStepID]; !ok {
			continue
		}
		if _, ok := byID[d.TargetStepID]; !ok {
			continue
		}
		if reaches(all, d.TargetStepID, d.SourceStepID) {
			result.AddWarning(fmt.Sprintf("dependencies[%d]", i), schema.ErrCodeBranchLoop,
				fmt.Sprintf("branch target %q reaches back to its decision step %q",
					titleOf(byID, d.TargetStepID), titleOf(byID, d.SourceStepID)))
		}
	}
}

// reaches reports whether goal is reachable from start via BFS.
func reaches(edges map[string][]string, start, goal string) bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range edges[node] {
			if next == goal {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// checkReachability warns on steps unreachable from any root step.
func checkReachability(steps []*schema.WorkflowStep, all map[string][]string, incoming map[string]int, result *schema.ValidationResult) {
	reachable := make(map[string]bool, len(steps))
	var queue []string
	for _, s := range steps {
		if incoming[s.ID] == 0 {
			reachable[s.ID] = true
			queue = append(queue, s.ID)
		}
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range all[node] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, s := range steps {
		if !reachable[s.ID] {
			result.AddWarning(fmt.Sprintf("steps[%s]", s.ID), schema.ErrCodeValidation,
				fmt.Sprintf("step %q is unreachable from any root step", s.Title))
		}
	}
}

func titleOf(byID map[string]*schema.WorkflowStep, id string) string {
	if s, ok := byID[id]; ok && s.Title != "" {
		return s.Title
	}
	return id
}
