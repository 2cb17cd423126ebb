// Package services provides node management functionality for flows.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reservly/flowengine/pkg/flow"
	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// CreateNodeRequest represents the request to create a new flow node.
type CreateNodeRequest struct {
	Type          models.NodeType
	Name          string
	Description   string
	Position      models.Position
	Configuration map[string]any
	Connections   []*models.Connection
}

// UpdateNodeRequest represents the request to update an existing node.
// Type cannot be changed after creation.
type UpdateNodeRequest struct {
	Name          string
	Description   string
	Position      models.Position
	Configuration map[string]any
	Connections   []*models.Connection
}

// Node handles node-level business operations. Nodes live inside their
// flow document, so every mutation loads the flow, edits it, re-validates,
// and saves it back.
type Node struct {
	persistence persistence.Persistence
	cache       CacheInvalidator
}

// NewNode creates a new node service.
func NewNode(p persistence.Persistence) *Node {
	return &Node{persistence: p, cache: noopInvalidator{}}
}

// WithCacheInvalidator wires the engine's flow cache into mutation paths.
func (s *Node) WithCacheInvalidator(cache CacheInvalidator) *Node {
	s.cache = cache

	return s
}

// CreateNode validates and adds a node to the flow. Structural edits bump
// the flow version.
func (s *Node) CreateNode(ctx context.Context, flowID string, req *CreateNodeRequest) (*models.FlowNode, error) {
	owner, err := s.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if !models.IsKnownNodeType(req.Type) {
		return nil, NewServiceError("CreateNode", CodeNodeValidationFailed,
			fmt.Sprintf("unknown node type %q", req.Type), ErrUnknownNodeType)
	}

	node := &models.FlowNode{
		ID:            uuid.New().String(),
		FlowID:        flowID,
		Type:          req.Type,
		Name:          req.Name,
		Description:   req.Description,
		Position:      req.Position,
		Configuration: req.Configuration,
		Connections:   req.Connections,
	}

	if node.Configuration == nil {
		node.Configuration = make(map[string]any)
	}

	if node.Connections == nil {
		node.Connections = make([]*models.Connection, 0)
	}

	for _, conn := range node.Connections {
		if conn.ID == "" {
			conn.ID = uuid.New().String()
		}

		conn.SourceNodeID = node.ID
	}

	issues := flow.ValidateNode(node)
	if len(issues) > 0 {
		return nil, NewServiceError("CreateNode", CodeNodeValidationFailed,
			issuesMessage(issues), ErrNodeValidationFailed)
	}

	owner.Nodes = append(owner.Nodes, node)
	owner.Version++
	owner.UpdatedAt = time.Now().UTC()

	if node.Type == models.NodeTypeStart && owner.StartNodeID == "" {
		owner.StartNodeID = node.ID
	}

	err = s.persistence.FlowRepository().Save(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	s.cache.Invalidate(owner.TenantID)

	return node, nil
}

// GetNode retrieves a node from a flow.
func (s *Node) GetNode(ctx context.Context, flowID, nodeID string) (*models.FlowNode, error) {
	owner, err := s.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	node := owner.NodeByID(nodeID)
	if node == nil {
		return nil, NewServiceError("GetNode", CodeNodeNotFound,
			fmt.Sprintf("node %s not found in flow %s", nodeID, flowID), ErrNodeNotFound)
	}

	return node, nil
}

// UpdateNode re-validates the node's configuration against its own type
// before persisting the edit.
func (s *Node) UpdateNode(ctx context.Context, flowID, nodeID string, req *UpdateNodeRequest) (*models.FlowNode, error) {
	owner, err := s.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	node := owner.NodeByID(nodeID)
	if node == nil {
		return nil, NewServiceError("UpdateNode", CodeNodeNotFound,
			fmt.Sprintf("node %s not found in flow %s", nodeID, flowID), ErrNodeNotFound)
	}

	node.Name = req.Name
	node.Description = req.Description
	node.Position = req.Position
	node.Configuration = req.Configuration

	if node.Configuration == nil {
		node.Configuration = make(map[string]any)
	}

	if req.Connections != nil {
		node.Connections = req.Connections
		for _, conn := range node.Connections {
			if conn.ID == "" {
				conn.ID = uuid.New().String()
			}

			conn.SourceNodeID = node.ID
		}
	}

	issues := flow.ValidateNode(node)
	if len(issues) > 0 {
		return nil, NewServiceError("UpdateNode", CodeNodeValidationFailed,
			issuesMessage(issues), ErrNodeValidationFailed)
	}

	owner.Version++
	owner.UpdatedAt = time.Now().UTC()

	err = s.persistence.FlowRepository().Save(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to update node: %w", err)
	}

	s.cache.Invalidate(owner.TenantID)

	return node, nil
}

// DeleteNode removes the node and strips every connection in the flow that
// names it as source or target, scanning every sibling.
func (s *Node) DeleteNode(ctx context.Context, flowID, nodeID string) error {
	owner, err := s.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return err
	}

	if owner.NodeByID(nodeID) == nil {
		return NewServiceError("DeleteNode", CodeNodeNotFound,
			fmt.Sprintf("node %s not found in flow %s", nodeID, flowID), ErrNodeNotFound)
	}

	remaining := make([]*models.FlowNode, 0, len(owner.Nodes)-1)

	for _, node := range owner.Nodes {
		if node.ID == nodeID {
			continue
		}

		kept := make([]*models.Connection, 0, len(node.Connections))

		for _, conn := range node.Connections {
			if conn.SourceNodeID == nodeID || conn.TargetNodeID == nodeID {
				continue
			}

			kept = append(kept, conn)
		}

		node.Connections = kept
		remaining = append(remaining, node)
	}

	owner.Nodes = remaining

	if owner.StartNodeID == nodeID {
		owner.StartNodeID = ""
	}

	owner.Version++
	owner.UpdatedAt = time.Now().UTC()

	err = s.persistence.FlowRepository().Save(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	s.cache.Invalidate(owner.TenantID)

	return nil
}

func issuesMessage(issues []flow.Issue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, issue.Code+": "+issue.Message)
	}

	return strings.Join(parts, "; ")
}
