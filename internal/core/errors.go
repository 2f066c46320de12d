package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is matched by every MissingFieldError
	ErrMissingField = errors.New("missing required field")
	// ErrModelInvocation is matched by every ModelInvocationError
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrNormalizationFailure marks model output that could not be parsed or validated.
	// It never escapes the pipeline; see Fallback.
	ErrNormalizationFailure = errors.New("model response normalization failed")
)

// MissingFieldError is returned when an EmailInput lacks a required field
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField.Error(), e.Field)
}

// Is reports whether target is ErrMissingField
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// ModelInvocationError is returned when the text generation backend is
// unreachable or rejects the request
type ModelInvocationError struct {
	Model string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: %v", ErrModelInvocation.Error(), e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrModelInvocation.Error(), e.Model, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrModelInvocation
func (e *ModelInvocationError) Is(target error) bool {
	return target == ErrModelInvocation
}
