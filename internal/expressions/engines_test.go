package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casekit/lexflow/pkg/schema"
)

func engineData() map[string]any {
	return map[string]any{
		"matter": map[string]any{
			"value": float64(250000),
			"type":  "acquisition",
		},
		"steps": map[string]any{
			"intake": map[string]any{"approved": true},
		},
	}
}

func TestRegistry_ContainsAllEngines(t *testing.T) {
	engines, err := Registry()
	require.NoError(t, err)
	assert.Len(t, engines, 3)
	for _, name := range []string{schema.LangCEL, schema.LangExpr, schema.LangJQ} {
		e, ok := engines[name]
		require.True(t, ok, "missing engine %s", name)
		assert.Equal(t, name, e.Name())
	}
}

// --- CEL ---

func TestCELEngine_Evaluate(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	out, err := e.Evaluate(ctx, `matter.value > 100000.0`, engineData())
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(ctx, `steps.intake.approved`, engineData())
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCELEngine_MissingNamespaceDefaultsToEmpty(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `"region" in answers`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestCELEngine_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), `matter.value >`, engineData())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestCELEngine_EmptyExpression(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "", engineData())
	require.Error(t, err)
}

// --- Expr ---

func TestExprEngine_Evaluate(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	out, err := e.Evaluate(ctx, `matter.type == "acquisition"`, engineData())
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExprEngine_UndefinedVariableTolerated(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `unknown_ns == nil`, engineData())
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

// --- GoJQ ---

func TestGoJQEngine_Evaluate(t *testing.T) {
	e := NewGoJQEngine()
	ctx := context.Background()

	out, err := e.Evaluate(ctx, `.matter.value > 100000`, engineData())
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestGoJQEngine_ParseError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), `.matter |`, engineData())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestGoJQEngine_EnvSandboxed(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), `env | length == 0`, engineData())
	require.NoError(t, err)
	assert.Equal(t, true, out)
}
