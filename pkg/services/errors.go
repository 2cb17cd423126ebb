// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/reservly/flowengine/pkg/persistence"
)

// Business logic errors. Validation errors map to 400 responses, not-found
// errors to 404.
var (
	// ErrFlowNotFound is returned when a flow is not found.
	ErrFlowNotFound = persistence.ErrFlowNotFound

	// ErrNodeNotFound is returned when a node is not found.
	ErrNodeNotFound = persistence.ErrNodeNotFound

	// ErrTemplateNotFound is returned when a template id is not in the catalog.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrFlowNameRequired is returned for flows with an empty name.
	ErrFlowNameRequired = errors.New("flow name is required")

	// ErrTenantRequired is returned when a call arrives without tenant identity.
	ErrTenantRequired = errors.New("tenant id is required")

	// ErrFlowValidationFailed is returned when a flow fails structural validation.
	ErrFlowValidationFailed = errors.New("flow validation failed")

	// ErrNodeValidationFailed is returned when a node's configuration fails
	// its type contract.
	ErrNodeValidationFailed = errors.New("node validation failed")

	// ErrUnknownNodeType is returned for node types outside the closed set.
	ErrUnknownNodeType = errors.New("unknown node type")
)

// Stable API error codes surfaced across the service boundary.
const (
	CodeFlowNotFound         = "BOT_FLOW_NOT_FOUND"
	CodeFlowValidationFailed = "BOT_FLOW_VALIDATION_FAILED"
	CodeNodeNotFound         = "BOT_FLOW_NODE_NOT_FOUND"
	CodeNodeValidationFailed = "BOT_FLOW_NODE_VALIDATION_FAILED"
	CodeTemplateNotFound     = "BOT_FLOW_TEMPLATE_NOT_FOUND"
	CodeInvalidRequest       = "BOT_FLOW_INVALID_REQUEST"
)

// ServiceError wraps service-level errors with a stable code for API responses.
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

// NewServiceError creates a new service error with context.
func NewServiceError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode extracts the stable code from a service error chain, falling
// back to a generic classification.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Code != "" {
		return serviceErr.Code
	}

	switch {
	case errors.Is(err, ErrFlowNotFound):
		return CodeFlowNotFound
	case errors.Is(err, ErrNodeNotFound):
		return CodeNodeNotFound
	case errors.Is(err, ErrTemplateNotFound):
		return CodeTemplateNotFound
	case IsValidationError(err):
		return CodeInvalidRequest
	default:
		return "INTERNAL_ERROR"
	}
}

// IsValidationError checks if an error is a validation error that should
// surface as a 400 with a structured detail list.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrTenantRequired) ||
		errors.Is(err, ErrFlowValidationFailed) ||
		errors.Is(err, ErrNodeValidationFailed) ||
		errors.Is(err, ErrUnknownNodeType)
}

// IsNotFoundError checks if an error should surface as a 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrTemplateNotFound)
}
