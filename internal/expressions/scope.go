package expressions

import (
	"encoding/json"
	"strings"
)

// Scope namespaces exposed to conditions and templates.
const (
	NSSteps    = "steps"
	NSMatter   = "matter"
	NSContacts = "contacts"
	NSAnswers  = "answers"
	NSWorkflow = "workflow"
	NSContext  = "context"
)

var namespaces = []string{NSSteps, NSMatter, NSContacts, NSAnswers, NSWorkflow, NSContext}

// Scope is the immutable evaluation scope built from one execution-context
// projection plus the completed step outputs of the instance. The execution
// context is a key-value projection of matter/contact/questionnaire data
// supplied by the caller; the engine never fetches it itself.
type Scope struct {
	data map[string]any
}

// NewScope builds a Scope from an execution context map. The well-known
// namespaces (matter, contacts, answers, workflow) are lifted to top level;
// the full context is additionally reachable under "context" so arbitrary
// caller keys stay addressable. All data is deep-copied on entry.
func NewScope(execCtx map[string]any) *Scope {
	data := make(map[string]any, len(namespaces))
	for _, ns := range namespaces {
		data[ns] = map[string]any{}
	}
	for _, ns := range []string{NSMatter, NSContacts, NSAnswers, NSWorkflow} {
		if m, ok := execCtx[ns].(map[string]any); ok {
			data[ns] = deepCopyMap(m)
		}
	}
	data[NSContext] = deepCopyMap(execCtx)
	return &Scope{data: data}
}

// AddStepOutput registers a completed step's accumulated data under
// steps.<id>. The output is frozen (deep-copied) on insertion; re-adding the
// same step replaces its entry, which keeps recompute idempotent after a
// step restart.
func (s *Scope) AddStepOutput(stepID string, output json.RawMessage) {
	steps := s.data[NSSteps].(map[string]any)
	if len(output) == 0 {
		steps[stepID] = map[string]any{}
		return
	}
	var parsed any
	if err := json.Unmarshal(output, &parsed); err != nil {
		steps[stepID] = map[string]any{}
		return
	}
	steps[stepID] = deepCopyAny(parsed)
}

// Data returns the scope as the engine activation map. Engines must not
// mutate it; a fresh copy is returned per call.
func (s *Scope) Data() map[string]any {
	return deepCopyMap(s.data)
}

// Lookup resolves a dotted path. The first segment may name a namespace;
// otherwise the path is resolved relative to the raw execution context.
// Returns (nil, false) for any missing segment, never an error.
func (s *Scope) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	if _, known := s.data[parts[0]]; known {
		return traverse(s.data, parts)
	}
	ctx, _ := s.data[NSContext].(map[string]any)
	return traverse(ctx, parts)
}

func traverse(root map[string]any, parts []string) (any, bool) {
	var cur any = root
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// --- Deep copy utilities ---

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = deepCopyAny(v)
	}
	return cp
}

func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = deepCopyAny(item)
		}
		return cp
	case json.RawMessage:
		if val == nil {
			return nil
		}
		cp := make(json.RawMessage, len(val))
		copy(cp, val)
		return cp
	default:
		// Primitives are value types.
		return v
	}
}
