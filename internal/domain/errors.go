package domain

import (
	"errors"
	"strings"
)

// Sentinel errors wrapped by every layer via fmt.Errorf("%w: ...", ErrX)
// and matched with errors.Is/errors.As.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// ValidationError carries one message per invalid field, for callers that
// need to report more than one problem at once (e.g. request body binding).
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	return "validation error: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) Details() []string { return e.Fields }
