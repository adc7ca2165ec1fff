package model

import (
	"errors"
	"strings"
)

var (
	ErrIDRequired         = errors.New("todo ID is required")
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title must be less than 100 characters")
	ErrDescriptionTooLong = errors.New("description must be less than 500 characters")
)

// TodoError represents a domain error for todos.
type TodoError struct {
	Message string
}

func (e TodoError) Error() string {
	return e.Message
}

// ErrTodoNotFound is reported by outer surfaces when an id does not
// resolve. Store mutations treat a missing id as a no-op instead.
var ErrTodoNotFound = TodoError{Message: "todo not found"}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field string
	Err   error
}

// Message returns the human readable reason.
func (fe FieldError) Message() string {
	return fe.Err.Error()
}

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the per-field causes to errors.Is.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, fe := range e.Errors {
		errs[i] = fe.Err
	}
	return errs
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Fields maps field names to their first message, for API responses.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = fe.Message()
		}
	}
	return out
}

func (e *ValidationError) add(field string, err error) {
	e.Errors = append(e.Errors, FieldError{Field: field, Err: err})
}

func (e *ValidationError) orNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
