package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ProcessValidationErrors maps each failing field to the rule it broke. Errors
// that are not validation errors (malformed JSON and the like) come back
// under "request".
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["request"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}
