// Package services provides the boundary operations of the workflow engine:
// workflow CRUD, execution launch and resume, and analytics.
package services

import (
	"errors"
	"fmt"

	"github.com/flowbot-io/flowbot/pkg/lock"
	"github.com/flowbot-io/flowbot/pkg/persistence"
	"github.com/flowbot-io/flowbot/pkg/workflow"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrWorkflowNil       = errors.New("workflow cannot be nil")
	ErrChatbotIDRequired = errors.New("chatbot ID is required")
	ErrNodesRequired     = errors.New("workflow must have at least one node")
)

// Business logic conflicts (409 Conflict).
var (
	// ErrWorkflowHasActiveExecutions blocks deletion while any execution is
	// running or waiting for input.
	ErrWorkflowHasActiveExecutions = errors.New("workflow has active executions")
)

// Re-exported lookups so callers need only the services package.
var (
	ErrWorkflowNotFound  = persistence.ErrWorkflowNotFound
	ErrExecutionNotFound = persistence.ErrExecutionNotFound
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
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

// NewValidationError creates a validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrChatbotIDRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, workflow.ErrMissingStartNode) ||
		errors.Is(err, workflow.ErrMultipleStartNodes) ||
		errors.Is(err, workflow.ErrDuplicateNodeID) ||
		errors.Is(err, workflow.ErrDanglingConnection) ||
		errors.Is(err, workflow.ErrInvalidNodePayload)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsWorkflowNotFound(err) || persistence.IsExecutionNotFound(err)
}

// IsStateError checks if an error is a lifecycle violation: resuming a
// terminal or non-suspended execution, or starting on an inactive workflow.
// These map to HTTP 409.
func IsStateError(err error) bool {
	return errors.Is(err, workflow.ErrExecutionTerminated) ||
		errors.Is(err, workflow.ErrNotWaitingForInput) ||
		errors.Is(err, workflow.ErrWorkflowInactive)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return IsStateError(err) ||
		errors.Is(err, ErrWorkflowHasActiveExecutions) ||
		errors.Is(err, lock.ErrAlreadyLocked)
}
