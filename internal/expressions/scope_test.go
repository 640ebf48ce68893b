package expressions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScope_LiftsNamespaces(t *testing.T) {
	s := NewScope(map[string]any{
		"matter":    map[string]any{"type": "acquisition"},
		"answers":   map[string]any{"jurisdiction": "NL"},
		"arbitrary": "kept under context",
	})

	v, ok := s.Lookup("matter.type")
	require.True(t, ok)
	assert.Equal(t, "acquisition", v)

	// Non-namespace keys resolve relative to the raw context.
	v, ok = s.Lookup("arbitrary")
	require.True(t, ok)
	assert.Equal(t, "kept under context", v)

	v, ok = s.Lookup("context.arbitrary")
	require.True(t, ok)
	assert.Equal(t, "kept under context", v)
}

func TestScope_LookupMissing(t *testing.T) {
	s := NewScope(nil)

	_, ok := s.Lookup("matter.ghost")
	assert.False(t, ok)
	_, ok = s.Lookup("")
	assert.False(t, ok)
	_, ok = s.Lookup("nope.deep.path")
	assert.False(t, ok)
}

func TestScope_LookupThroughNonMap(t *testing.T) {
	s := NewScope(map[string]any{"matter": map[string]any{"type": "acquisition"}})
	_, ok := s.Lookup("matter.type.deeper")
	assert.False(t, ok)
}

func TestScope_AddStepOutput(t *testing.T) {
	s := NewScope(nil)
	s.AddStepOutput("intake", json.RawMessage(`{"approved": true, "note": "ok"}`))

	v, ok := s.Lookup("steps.intake.approved")
	require.True(t, ok)
	assert.Equal(t, true, v)

	// Re-adding replaces the previous output.
	s.AddStepOutput("intake", json.RawMessage(`{"approved": false}`))
	v, _ = s.Lookup("steps.intake.approved")
	assert.Equal(t, false, v)
	_, ok = s.Lookup("steps.intake.note")
	assert.False(t, ok)
}

func TestScope_AddStepOutputMalformed(t *testing.T) {
	s := NewScope(nil)
	s.AddStepOutput("broken", json.RawMessage(`{not json`))
	s.AddStepOutput("empty", nil)

	v, ok := s.Lookup("steps.broken")
	require.True(t, ok)
	assert.Equal(t, map[string]any{}, v)
	_, ok = s.Lookup("steps.empty")
	assert.True(t, ok)
}

func TestScope_DataIsACopy(t *testing.T) {
	s := NewScope(map[string]any{"matter": map[string]any{"type": "acquisition"}})

	data := s.Data()
	data["matter"].(map[string]any)["type"] = "mutated"

	v, _ := s.Lookup("matter.type")
	assert.Equal(t, "acquisition", v, "engine mutations must not leak into the scope")
}

func TestScope_InputIsCopied(t *testing.T) {
	input := map[string]any{"matter": map[string]any{"type": "acquisition"}}
	s := NewScope(input)

	input["matter"].(map[string]any)["type"] = "mutated"

	v, _ := s.Lookup("matter.type")
	assert.Equal(t, "acquisition", v, "caller mutations after construction must not leak in")
}
