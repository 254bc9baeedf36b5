// Package validation validates API payloads against JSON schemas.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult carries the outcome of validating one payload.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GetErrorMessages returns a flat list of "field: message" strings.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for a specific field.
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// ValidatePayload validates a decoded JSON payload against a schema document.
func ValidatePayload(payload map[string]interface{}, schemaJSON string) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	vr := &ValidationResult{Valid: result.Valid()}
	if !result.Valid() {
		vr.Errors = make([]ValidationError, len(result.Errors()))
		for i, desc := range result.Errors() {
			vr.Errors[i] = ValidationError{
				Field:   desc.Field(),
				Message: desc.Description(),
			}
		}
	}
	return vr, nil
}

// MustValidate is ValidatePayload collapsed to a single error, for handlers
// that only need pass/fail plus a message.
func MustValidate(payload map[string]interface{}, schemaJSON string) error {
	result, err := ValidatePayload(payload, schemaJSON)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("payload validation failed: %v", result.GetErrorMessages())
	}
	return nil
}
