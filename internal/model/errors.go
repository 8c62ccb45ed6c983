package model

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used across the application
var (
	// Identifier errors
	ErrInvalidID = errors.New("invalid identifier")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already in use")

	// Player errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrUsernameTaken  = errors.New("player username already in use")
)

// FieldError describes one invalid input field
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError is returned when input fails validation before reaching storage
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s (%s)", f.Field, f.Rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, rule string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule}}}
}
