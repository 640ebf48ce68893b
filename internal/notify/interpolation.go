// Package notify turns step transitions into notification envelopes: it
// evaluates the policies attached to a step, resolves ${{...}} tokens in
// their templates, and computes dispatch times. Delivery itself is an
// external concern behind the Dispatcher interface.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/casekit/lexflow/internal/expressions"
	"github.com/casekit/lexflow/pkg/schema"
)

const (
	tokenOpen  = "${{"
	tokenClose = "}}"
)

// Interpolator resolves ${{path.to.value}} tokens in template strings
// against an execution scope. Resolution is total: tokens that cannot be
// resolved are left verbatim in the output and reported as diagnostics so
// the caller can surface authoring mistakes without losing the message.
type Interpolator struct{}

// ResolveString replaces every resolvable token in s. Unresolved, empty,
// and unterminated tokens pass through unchanged.
func (in *Interpolator) ResolveString(s string, scope *expressions.Scope, stepID string) (string, []schema.Diagnostic) {
	if !strings.Contains(s, tokenOpen) {
		return s, nil
	}

	var out strings.Builder
	var diags []schema.Diagnostic
	rest := s

	for {
		start := strings.Index(rest, tokenOpen)
		if start < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])

		end := strings.Index(rest[start:], tokenClose)
		if end < 0 {
			// Unterminated token, keep the tail as-is.
			out.WriteString(rest[start:])
			diags = append(diags, templateDiag(stepID,
				fmt.Sprintf("unterminated token near %q", clip(rest[start:]))))
			break
		}
		end += start

		token := rest[start : end+len(tokenClose)]
		path := strings.TrimSpace(rest[start+len(tokenOpen) : end])
		rest = rest[end+len(tokenClose):]

		if path == "" {
			out.WriteString(token)
			diags = append(diags, templateDiag(stepID, "empty template token"))
			continue
		}

		val, found := scope.Lookup(path)
		if !found {
			out.WriteString(token)
			diags = append(diags, templateDiag(stepID,
				fmt.Sprintf("token %q did not resolve", path)))
			continue
		}
		out.WriteString(marshalInline(val))
	}

	return out.String(), diags
}

// ResolveAll resolves a slice of template strings, typically recipients.
func (in *Interpolator) ResolveAll(items []string, scope *expressions.Scope, stepID string) ([]string, []schema.Diagnostic) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]string, len(items))
	var diags []schema.Diagnostic
	for i, item := range items {
		resolved, d := in.ResolveString(item, scope, stepID)
		out[i] = resolved
		diags = append(diags, d...)
	}
	return out, diags
}

// marshalInline renders a resolved value for embedding in a template.
// Strings are used as-is; everything else is compact JSON.
func marshalInline(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

func clip(s string) string {
	if len(s) > 24 {
		return s[:24] + "..."
	}
	return s
}

func templateDiag(stepID, msg string) schema.Diagnostic {
	return schema.Diagnostic{
		Source:  "template",
		Code:    schema.ErrCodeTemplate,
		Message: msg,
		StepID:  stepID,
	}
}
