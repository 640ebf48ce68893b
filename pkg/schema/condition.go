package schema

// Condition operators for simple {field, operator, value} conditions.
const (
	OpEq         = "=="
	OpNe         = "!="
	OpGt         = ">"
	OpLt         = "<"
	OpGte        = ">="
	OpLte        = "<="
	OpContains   = "contains"
	OpStartsWith = "startsWith"
	OpEndsWith   = "endsWith"
	OpIn         = "in"
	OpNotIn      = "notIn"
	OpExists     = "exists"
	OpNotExists  = "notExists"

	OpAnd = "AND"
	OpOr  = "OR"
)

// Expression languages for expression-shaped conditions.
const (
	LangCEL  = "cel"
	LangExpr = "expr"
	LangJQ   = "jq"
)

// Condition is a user-authored boolean condition evaluated against the
// execution context. Three shapes share one struct, discriminated by which
// fields are set:
//
//   - simple:     Field + Operator + Value
//   - compound:   Operator (AND|OR) + Conditions
//   - expression: Language + Expression
//
// Condition configs come from workflow authors and may be malformed;
// evaluation is total and degrades to false with a diagnostic.
type Condition struct {
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`

	Conditions []*Condition `json:"conditions,omitempty"`

	Language   string `json:"language,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// Compound reports whether the condition is an AND/OR combinator.
func (c *Condition) Compound() bool {
	return c.Operator == OpAnd || c.Operator == OpOr
}

// ExpressionShaped reports whether the condition delegates to an
// expression engine.
func (c *Condition) ExpressionShaped() bool {
	return c.Expression != ""
}

// Diagnostic is a non-fatal evaluation problem surfaced for workflow
// authoring feedback. It never aborts an engine operation.
type Diagnostic struct {
	Source  string `json:"source"` // "condition", "template", "resolver"
	Code    string `json:"code"`
	Message string `json:"message"`
	StepID  string `json:"step_id,omitempty"`
}
