// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrWorkflowNil    = errors.New("workflow cannot be nil")
	ErrGraphRequired  = errors.New("workflow graph is required")
	ErrEmptyUserID    = errors.New("user ID cannot be empty")

	// Access Errors (403 Forbidden).
	ErrUnauthorized = errors.New("unauthorized")
	ErrSecretAccess = errors.New("failed to access workflow secrets")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrGraphRequired) ||
		errors.Is(err, ErrEmptyUserID)
}

// IsAccessError checks if an error denies the caller access and should return HTTP 403.
func IsAccessError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrSecretAccess)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
