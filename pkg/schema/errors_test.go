package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowError_Formatting(t *testing.T) {
	err := NewError(ErrCodeForbidden, "role CLIENT is not authorized")
	assert.Equal(t, "[FORBIDDEN] role CLIENT is not authorized", err.Error())

	err = err.WithStep("s1")
	assert.Equal(t, "[FORBIDDEN] step s1: role CLIENT is not authorized", err.Error())
}

func TestFlowError_Builders(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorf(ErrCodeValidation, "bad %s", "config").
		WithStep("s2").
		WithCause(cause).
		WithDetails(map[string]any{"field": "items"})

	assert.Equal(t, ErrCodeValidation, err.Code)
	assert.Equal(t, "bad config", err.Message)
	assert.Equal(t, "s2", err.StepID)
	assert.Equal(t, "items", err.Details["field"])
	assert.True(t, errors.Is(err, cause))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeConflict, CodeOf(NewError(ErrCodeConflict, "taken")))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, CodeOf(nil))
}

func TestValidationResult_Aggregation(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.NoError(t, r.ToError())

	r.AddWarning("steps[0]", ErrCodeValidation, "cosmetic")
	assert.True(t, r.Valid(), "warnings do not invalidate")

	r.AddError("steps[1]", ErrCodeValidation, "broken")
	r.AddStepError("steps[2]", "s2", ErrCodeSelfLoop, "loops on itself")
	assert.False(t, r.Valid())
	assert.Equal(t, []string{"broken", "loops on itself"}, r.Messages())

	other := &ValidationResult{}
	other.AddError("deps[0]", ErrCodeUnknownStep, "dangling")
	r.Merge(other)
	assert.Len(t, r.Errors, 3)

	err := r.ToError()
	require.Error(t, err)
	fe, ok := err.(*FlowError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeValidation, fe.Code)
	assert.Equal(t, 3, fe.Details["error_count"])
}

func TestValidationResult_SingleErrorMessage(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("/", ErrCodeCycleDetected, "dependency cycle: A -> B -> A")

	err := r.ToError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}
