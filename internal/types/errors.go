package types

import (
	"errors"
	"fmt"
)

var (
	ErrRuleNotFound    = errors.New("rule not found")
	ErrDuplicateRule   = errors.New("rule already exists")
	ErrInvalidRule     = errors.New("invalid rule")
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidPattern  = errors.New("invalid access control entry")
)

// ValidationError reports which rule field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRule
}
