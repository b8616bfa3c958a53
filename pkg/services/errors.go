// Package services provides the workflow catalog with structural validation
// on top of the persistence layer.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrDefinitionNil     = errors.New("workflow definition cannot be nil")
	ErrStepsRequired     = errors.New("workflow must have at least one step")
	ErrDuplicateStepID   = errors.New("duplicate step id")
	ErrUnknownDependency = errors.New("step depends on an unknown step")
	ErrSelfDependency    = errors.New("step cannot depend on itself")
	ErrDependencyCycle   = errors.New("step dependencies form a cycle")
	ErrUnknownStepType   = errors.New("unknown step type")
	ErrInvalidStepConfig = errors.New("invalid step configuration")
	ErrInvalidTrigger    = errors.New("invalid trigger")

	// Business logic conflicts (409 Conflict).
	ErrDefinitionInUse = errors.New("workflow definition has active instances")
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
		errors.Is(err, ErrDefinitionNil) ||
		errors.Is(err, ErrStepsRequired) ||
		errors.Is(err, ErrDuplicateStepID) ||
		errors.Is(err, ErrUnknownDependency) ||
		errors.Is(err, ErrSelfDependency) ||
		errors.Is(err, ErrDependencyCycle) ||
		errors.Is(err, ErrUnknownStepType) ||
		errors.Is(err, ErrInvalidStepConfig) ||
		errors.Is(err, ErrInvalidTrigger)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDefinitionInUse)
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
