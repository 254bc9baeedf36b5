package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["batchId", "status"],
	"properties": {
		"batchId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["success", "failed"]}
	}
}`

func TestValidatePayload_Valid(t *testing.T) {
	result, err := ValidatePayload(map[string]interface{}{
		"batchId": "batch-1",
		"status":  "success",
	}, testSchema)

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidatePayload_CollectsFieldErrors(t *testing.T) {
	result, err := ValidatePayload(map[string]interface{}{
		"status": "delivered",
	}, testSchema)

	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.GetErrorMessages())
	assert.True(t, result.HasErrors("status"))
}

func TestMustValidate(t *testing.T) {
	err := MustValidate(map[string]interface{}{"batchId": "b", "status": "failed"}, testSchema)
	assert.NoError(t, err)

	err = MustValidate(map[string]interface{}{}, testSchema)
	assert.Error(t, err)
}
