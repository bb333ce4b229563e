package models

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest    = errors.New("bad request")
	ErrEngine        = errors.New("analysis engine failure")
	ErrSerialization = errors.New("serialization failure")
)

// ValidationError is a client mistake in the shape or content of a request. Message always
// names the offending field or value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func NewMissingFieldError(field string) error {
	return &ValidationError{Field: field, Message: "missing required field: " + field}
}

// EngineError is a failure reported by the analysis engine. It is a server error unless the
// engine marked it ClientCaused.
type EngineError struct {
	// Op is the engine operation that failed: analyze, recognizers or supported_entities.
	Op           string
	Message      string
	ClientCaused bool
	Err          error
}

func (e *EngineError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *EngineError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEngine}
	}
	return []error{ErrEngine, e.Err}
}

// SerializationError means a result could not be rendered to its documented wire shape.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to serialize response: %s", e.Err)
}

func (e *SerializationError) Unwrap() []error {
	return []error{ErrSerialization, e.Err}
}
