// Package ops provides the operation registry and the built-in
// introspection operations served over the tool protocol.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
)

// Operation defines the interface for operations exposed by the registry.
type Operation interface {
	// Name returns the operation name (e.g., "get_system_info").
	Name() string

	// Description returns a one-line description for catalog consumers.
	Description() string

	// Schema returns the JSON parameter schema for the operation.
	Schema() json.RawMessage

	// Validate validates the arguments before execution.
	// Returns nil if arguments are valid, or an error describing the
	// validation failure.
	Validate(args map[string]interface{}) error

	// Execute performs the operation and returns a JSON-serializable value.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Definition is the immutable catalog entry for one operation: what a
// planning service needs to know to issue a call request.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"parameters"`
}

// HandlerError represents a failure inside an operation handler.
type HandlerError struct {
	Operation string
	Message   string
	Err       error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("operation %s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("operation %s: %s", e.Operation, e.Message)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// NewHandlerError creates a new handler error.
func NewHandlerError(operation, message string, err error) *HandlerError {
	return &HandlerError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// ArgumentError represents an argument validation error.
type ArgumentError struct {
	Operation string
	Param     string
	Message   string
}

func (e *ArgumentError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("operation %s: invalid argument %q: %s", e.Operation, e.Param, e.Message)
	}
	return fmt.Sprintf("operation %s: validation failed: %s", e.Operation, e.Message)
}

// NewArgumentError creates a new argument validation error.
func NewArgumentError(operation, param, message string) *ArgumentError {
	return &ArgumentError{
		Operation: operation,
		Param:     param,
		Message:   message,
	}
}

// RegistrationError represents an error during operation registration.
type RegistrationError struct {
	Operation string
	Message   string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration failed for operation %q: %s", e.Operation, e.Message)
}

// NewRegistrationError creates a new registration error.
func NewRegistrationError(operation, message string) *RegistrationError {
	return &RegistrationError{
		Operation: operation,
		Message:   message,
	}
}
