// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrNodeNotFound indicates a node was not found by the given identifier.
	ErrNodeNotFound = errors.New("node not found")

	// ErrConversationNotFound indicates no conversation exists for the given key.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrFlowAlreadyExists indicates a flow with the same identifier already exists.
	ErrFlowAlreadyExists = errors.New("flow already exists")

	// ErrStoreUnavailable indicates the backing store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// FlowError wraps flow-related errors with additional context.
type FlowError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	FlowID   string // Flow ID if applicable
	TenantID string // Tenant ID if applicable
	Err      error  // Underlying error
}

func (e *FlowError) Error() string {
	target := e.FlowID
	if target == "" && e.TenantID != "" {
		target = fmt.Sprintf("tenant %s", e.TenantID)
	}

	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, target, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{
		Op:     op,
		FlowID: flowID,
		Err:    err,
	}
}

// ConversationError wraps conversation-related errors with additional context.
type ConversationError struct {
	Op             string // Operation being performed
	ConversationID string // Conversation ID if applicable
	PhoneNumber    string // Sender key if applicable
	Err            error  // Underlying error
}

func (e *ConversationError) Error() string {
	target := e.ConversationID
	if target == "" {
		target = e.PhoneNumber
	}

	return fmt.Sprintf("%s operation failed for conversation %s: %v", e.Op, target, e.Err)
}

func (e *ConversationError) Unwrap() error {
	return e.Err
}

func (e *ConversationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewConversationError creates a new conversation error with context.
func NewConversationError(op, conversationID string, err error) *ConversationError {
	return &ConversationError{
		Op:             op,
		ConversationID: conversationID,
		Err:            err,
	}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsConversationNotFound checks if an error indicates a conversation was not found.
func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsStoreUnavailable checks if an error indicates the backing store is down.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
