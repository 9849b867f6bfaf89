// Package services defines the business logic for versioned templates: the
// version lifecycle, active-version resolution and rendering.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any mutation. Use errors.As
	// with *ValidationError for the offending field.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTemplate is returned when content or subject does not parse
	// as a template. It matches ErrValidation as well.
	ErrInvalidTemplate = fmt.Errorf("%w: invalid template syntax", ErrValidation)

	// ErrImmutableField is returned when an update touches version or tries
	// to activate a row directly. It matches ErrValidation as well.
	ErrImmutableField = fmt.Errorf("%w: field cannot be changed directly", ErrValidation)

	// ErrInvalidRequest is returned for malformed render requests (e.g. no code).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound indicates that no template matched the lookup.
	ErrNotFound = errors.New("template not found")

	// ErrRender is returned when the renderer fails on a stored template.
	ErrRender = errors.New("render failed")

	// ErrConflict is returned when a version could not be created after the
	// configured number of conflict retries.
	ErrConflict = errors.New("version conflict: retries exhausted")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field  string
	Reason string
	// Kind is ErrValidation, ErrInvalidTemplate or ErrImmutableField.
	Kind error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Unwrap exposes Kind so errors.Is works against the sentinels above.
func (e *ValidationError) Unwrap() error {
	if e.Kind == nil {
		return ErrValidation
	}
	return e.Kind
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Kind: ErrValidation}
}
