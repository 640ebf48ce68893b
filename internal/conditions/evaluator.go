// Package conditions evaluates workflow edge conditions against an
// execution scope. Evaluation is pure and total: malformed, user-authored
// conditions degrade to false with a diagnostic, never an error.
package conditions

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/casekit/lexflow/internal/expressions"
	"github.com/casekit/lexflow/pkg/schema"
)

// Evaluator evaluates simple, compound, and expression-shaped conditions.
type Evaluator struct {
	engines map[string]expressions.Engine
}

// NewEvaluator creates an Evaluator backed by the given expression engines.
func NewEvaluator(engines map[string]expressions.Engine) *Evaluator {
	return &Evaluator{engines: engines}
}

// Evaluate resolves a condition to a boolean. A nil condition is vacuously
// true (the edge applies unconditionally). Diagnostics report unknown
// operators, unresolved fields, and engine failures; they never abort.
func (ev *Evaluator) Evaluate(ctx context.Context, cond *schema.Condition, scope *expressions.Scope) (bool, []schema.Diagnostic) {
	if cond == nil {
		return true, nil
	}

	switch {
	case cond.Compound():
		return ev.evaluateCompound(ctx, cond, scope)
	case cond.ExpressionShaped():
		return ev.evaluateExpression(ctx, cond, scope)
	default:
		return ev.evaluateSimple(cond, scope)
	}
}

// evaluateSimple handles {field, operator, value} conditions.
func (ev *Evaluator) evaluateSimple(cond *schema.Condition, scope *expressions.Scope) (bool, []schema.Diagnostic) {
	if cond.Field == "" {
		return false, diag("condition has no field, conditions, or expression")
	}

	val, found := scope.Lookup(cond.Field)

	switch cond.Operator {
	case schema.OpExists:
		return found, nil
	case schema.OpNotExists:
		return !found, nil
	}

	if !found {
		// Non-existence operators against a missing field are false, with a
		// diagnostic for authoring feedback.
		return false, diag(fmt.Sprintf("field %q not present in execution context", cond.Field))
	}

	switch cond.Operator {
	case schema.OpEq:
		return looseEqual(val, cond.Value), nil
	case schema.OpNe:
		return !looseEqual(val, cond.Value), nil
	case schema.OpGt, schema.OpLt, schema.OpGte, schema.OpLte:
		return compareOrdered(cond.Operator, val, cond.Value)
	case schema.OpContains:
		return strings.Contains(asString(val), asString(cond.Value)), nil
	case schema.OpStartsWith:
		return strings.HasPrefix(asString(val), asString(cond.Value)), nil
	case schema.OpEndsWith:
		return strings.HasSuffix(asString(val), asString(cond.Value)), nil
	case schema.OpIn:
		return membership(val, cond.Value, cond.Field)
	case schema.OpNotIn:
		in, diags := membership(val, cond.Value, cond.Field)
		if diags != nil {
			return false, diags
		}
		return !in, nil
	default:
		return false, diag(fmt.Sprintf("unknown operator %q", cond.Operator))
	}
}

// evaluateCompound handles AND/OR combinators. All children are evaluated
// (no short-circuit) so every diagnostic surfaces in one pass.
func (ev *Evaluator) evaluateCompound(ctx context.Context, cond *schema.Condition, scope *expressions.Scope) (bool, []schema.Diagnostic) {
	if len(cond.Conditions) == 0 {
		return false, diag(fmt.Sprintf("compound %s condition has no sub-conditions", cond.Operator))
	}

	var diags []schema.Diagnostic
	result := cond.Operator == schema.OpAnd
	for _, sub := range cond.Conditions {
		ok, subDiags := ev.Evaluate(ctx, sub, scope)
		diags = append(diags, subDiags...)
		if cond.Operator == schema.OpAnd {
			result = result && ok
		} else {
			result = result || ok
		}
	}
	return result, diags
}

// evaluateExpression delegates to the named expression engine (CEL default).
func (ev *Evaluator) evaluateExpression(ctx context.Context, cond *schema.Condition, scope *expressions.Scope) (bool, []schema.Diagnostic) {
	lang := cond.Language
	if lang == "" {
		lang = schema.LangCEL
	}

	engine, ok := ev.engines[lang]
	if !ok {
		return false, diag(fmt.Sprintf("unknown expression language %q", lang))
	}

	out, err := engine.Evaluate(ctx, cond.Expression, scope.Data())
	if err != nil {
		return false, diag(err.Error())
	}

	b, ok := out.(bool)
	if !ok {
		return false, diag(fmt.Sprintf("expression %q evaluated to %T, expected bool", cond.Expression, out))
	}
	return b, nil
}

func diag(msg string) []schema.Diagnostic {
	return []schema.Diagnostic{{
		Source:  "condition",
		Code:    schema.ErrCodeCondition,
		Message: msg,
	}}
}

// membership checks val against an array-valued condition value.
func membership(val, expected any, field string) (bool, []schema.Diagnostic) {
	list, ok := expected.([]any)
	if !ok {
		return false, diag(fmt.Sprintf("in/notIn value for field %q is not an array", field))
	}
	for _, item := range list {
		if looseEqual(val, item) {
			return true, nil
		}
	}
	return false, nil
}

// looseEqual compares two values with JSON-style number coercion.
func looseEqual(a, b any) bool {
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered applies >, <, >=, <= over numbers, falling back to
// lexicographic comparison when both sides are strings.
func compareOrdered(op string, a, b any) (bool, []schema.Diagnostic) {
	if af, aok := asNumber(a); aok {
		bf, bok := asNumber(b)
		if !bok {
			return false, diag(fmt.Sprintf("cannot compare number with %T", b))
		}
		return orderedResult(op, compareFloats(af, bf)), nil
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return orderedResult(op, strings.Compare(as, bs)), nil
	}

	return false, diag(fmt.Sprintf("operator %q not applicable to %T", op, a))
}

func orderedResult(op string, cmp int) bool {
	switch op {
	case schema.OpGt:
		return cmp > 0
	case schema.OpLt:
		return cmp < 0
	case schema.OpGte:
		return cmp >= 0
	case schema.OpLte:
		return cmp <= 0
	}
	return false
}

func compareFloats(a, b float64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
