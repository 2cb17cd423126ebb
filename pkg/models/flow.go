// Package models defines the core domain models for conversational booking flows
package models

import "time"

// FlowType categorizes what a flow is for.
type FlowType string

const (
	FlowTypeBooking FlowType = "booking" // Guided booking conversation
	FlowTypeSupport FlowType = "support" // Free-form support conversation
	FlowTypeCustom  FlowType = "custom"  // Anything tenant-specific
)

// Flow represents a tenant-owned, versioned directed graph describing a conversation.
type Flow struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"    validate:"required"`
	Name        string         `json:"name"         validate:"required,min=3"`
	Description string         `json:"description"`
	FlowType    FlowType       `json:"flow_type"`
	StartNodeID string         `json:"start_node_id"`
	IsActive    bool           `json:"is_active"`
	IsDefault   bool           `json:"is_default"`
	IsTemplate  bool           `json:"is_template"`
	Version     int            `json:"version"`
	Nodes       []*FlowNode    `json:"nodes"`
	Variables   []*Variable    `json:"variables"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Variable is declared at the flow level and referenced by {{name}} tokens
// inside node text fields.
type Variable struct {
	Name         string `json:"name"          validate:"required"`
	Type         string `json:"type"`
	DefaultValue any    `json:"default_value,omitempty"`
	Description  string `json:"description"`
	IsRequired   bool   `json:"is_required"`
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *FlowNode {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// StartNode returns the flow's start-type node, or nil if it has none.
func (f *Flow) StartNode() *FlowNode {
	for _, node := range f.Nodes {
		if node.Type == NodeTypeStart {
			return node
		}
	}

	return nil
}
