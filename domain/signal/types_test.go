package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInconclusive_HoldsNotFoundInvariant(t *testing.T) {
	r := Inconclusive(ReasonDegenerateInput, map[string]interface{}{"sample_size": 3})

	assert.Equal(t, StatusNotFound, r.Status)
	assert.Equal(t, MethodNone, r.Method)
	assert.Equal(t, TypeNone, r.SignalType)
	assert.Zero(t, r.Confidence)
	assert.False(t, r.Found())
	assert.Equal(t, ReasonDegenerateInput, r.Reason())
	assert.Equal(t, 3, r.Metadata["sample_size"])
}

func TestNotFound_NilMetadata(t *testing.T) {
	r := NotFound(nil)
	assert.NotNil(t, r.Metadata)
	assert.Empty(t, r.Reason())
	assert.Empty(t, Result{}.Reason())
}
