// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/reservly/flowengine/pkg/models"

// Envelope is the uniform response wrapper for the management API. Data
// and Error are mutually exclusive.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError carries a stable machine code plus a human message.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string              `json:"name"                  validate:"required,min=3"`
	Description string              `json:"description"`
	FlowType    string              `json:"flow_type"             validate:"omitempty,oneof=booking support custom"`
	Nodes       []*models.FlowNode  `json:"nodes,omitempty"`
	Variables   []*models.Variable  `json:"variables,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
}

// UpdateFlowRequest represents the request body for updating an existing
// flow. All fields are optional to support partial updates.
type UpdateFlowRequest struct {
	Name        *string            `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string            `json:"description,omitempty"`
	Nodes       []*models.FlowNode `json:"nodes,omitempty"`
	Variables   []*models.Variable `json:"variables,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

// CreateNodeRequest represents the request body for creating a flow node.
type CreateNodeRequest struct {
	Type          string               `json:"type"          validate:"required"`
	Name          string               `json:"name"          validate:"required,min=1"`
	Description   string               `json:"description"`
	Position      models.Position      `json:"position"`
	Configuration map[string]any       `json:"configuration"`
	Connections   []*models.Connection `json:"connections,omitempty"`
}

// UpdateNodeRequest represents the request body for updating a flow node.
// Type cannot be changed after creation.
type UpdateNodeRequest struct {
	Name          string               `json:"name"          validate:"required,min=1"`
	Description   string               `json:"description"`
	Position      models.Position      `json:"position"`
	Configuration map[string]any       `json:"configuration"`
	Connections   []*models.Connection `json:"connections,omitempty"`
}

// InstantiateTemplateRequest represents the request body for creating a
// tenant flow from a catalog template.
type InstantiateTemplateRequest struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// TestDriveRequest represents the request body for test-driving a flow
// with a scripted sequence of customer inputs.
type TestDriveRequest struct {
	Inputs []string `json:"inputs" validate:"required,min=1"`
}

// WebhookRequest represents an inbound customer message from the
// messaging channel.
type WebhookRequest struct {
	From string `json:"from" validate:"required"`
	Text string `json:"text" validate:"required"`
}
