package analyses

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("document already has an analysis")
	ErrEmptyModelResponse     = errors.New("empty model response")
	ErrMalformedModelResponse = errors.New("malformed model response")
	ErrSchemaViolation        = errors.New("model response violates schema")
	ErrProviderFailure        = errors.New("llm provider failure")
)

// SchemaError names the first field of a model answer that broke the contract.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrSchemaViolation, e.Field, e.Reason)
}

// Is lets errors.Is match ErrSchemaViolation.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaViolation
}

func missing(field string) *SchemaError {
	return &SchemaError{Field: field, Reason: "is required"}
}
