package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reservly/flowengine/pkg/flow"
	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// CacheInvalidator is notified when a tenant's flows change, so stale
// active-flow cache entries are dropped before the next message.
type CacheInvalidator interface {
	Invalidate(tenantID string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

// Flow handles flow-level business operations.
type Flow struct {
	persistence persistence.Persistence
	cache       CacheInvalidator
}

// NewFlow creates a new flow service.
func NewFlow(p persistence.Persistence) *Flow {
	return &Flow{persistence: p, cache: noopInvalidator{}}
}

// WithCacheInvalidator wires the engine's flow cache into mutation paths.
func (s *Flow) WithCacheInvalidator(cache CacheInvalidator) *Flow {
	s.cache = cache

	return s
}

// HealthCheck checks the health of the persistence layer.
func (s *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListFlowsRequest contains options for listing flows.
type ListFlowsRequest struct {
	TenantID   string
	FlowType   *models.FlowType
	IsActive   *bool
	IsTemplate *bool
	Limit      int `validate:"min=0,max=100"`
	Offset     int `validate:"min=0"`
}

// List retrieves flows with filtering and pagination.
func (s *Flow) List(ctx context.Context, req ListFlowsRequest) (*persistence.FlowListResult, error) {
	if req.TenantID == "" {
		return nil, NewServiceError("List", CodeInvalidRequest, "tenant id is required", ErrTenantRequired)
	}

	return s.persistence.FlowRepository().ListFlows(ctx, persistence.ListFlowsOptions{
		TenantID:   req.TenantID,
		FlowType:   req.FlowType,
		IsActive:   req.IsActive,
		IsTemplate: req.IsTemplate,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

// GetByID retrieves a flow, nodes eagerly attached.
func (s *Flow) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	return s.persistence.FlowRepository().GetByID(ctx, id)
}

// SaveResult pairs a persisted flow with its validation findings. Warnings
// do not block persistence; the caller decides whether to treat them as
// blocking.
type SaveResult struct {
	Flow       *models.Flow           `json:"flow"`
	Validation *flow.ValidationResult `json:"validation"`
}

// Create validates and persists a new flow owned by the tenant. Validation
// errors block persistence; warnings are returned alongside the flow.
func (s *Flow) Create(ctx context.Context, f *models.Flow) (*SaveResult, error) {
	if f.TenantID == "" {
		return nil, NewServiceError("Create", CodeInvalidRequest, "tenant id is required", ErrTenantRequired)
	}

	if f.Name == "" {
		return nil, NewServiceError("Create", CodeInvalidRequest, "flow name is required", ErrFlowNameRequired)
	}

	now := time.Now().UTC()
	f.ID = uuid.New().String()
	f.Version = 1
	f.CreatedAt = now
	f.UpdatedAt = now

	for _, node := range f.Nodes {
		if node.ID == "" {
			node.ID = uuid.New().String()
		}

		node.FlowID = f.ID
	}

	if f.FlowType == "" {
		f.FlowType = models.FlowTypeBooking
	}

	validation := flow.Validate(f)
	if !validation.Valid {
		return &SaveResult{Flow: f, Validation: validation},
			NewServiceError("Create", CodeFlowValidationFailed, "flow has validation errors", ErrFlowValidationFailed)
	}

	err := s.persistence.FlowRepository().Save(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	s.cache.Invalidate(f.TenantID)

	return &SaveResult{Flow: f, Validation: validation}, nil
}

// UpdateFlowRequest supports partial updates. Nil fields are left as-is.
// Replacing Nodes is a structural edit and bumps the flow version.
type UpdateFlowRequest struct {
	Name        *string
	Description *string
	Nodes       []*models.FlowNode
	Variables   []*models.Variable
	Metadata    map[string]any

	// ValidateOnly runs validation and returns findings without persisting.
	ValidateOnly bool
}

// Update merges partial fields into an existing flow, re-validates, and
// persists unless ValidateOnly is set.
func (s *Flow) Update(ctx context.Context, id string, req UpdateFlowRequest) (*SaveResult, error) {
	existing, err := s.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Variables != nil {
		existing.Variables = req.Variables
	}

	if req.Metadata != nil {
		existing.Metadata = req.Metadata
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
		for _, node := range existing.Nodes {
			if node.ID == "" {
				node.ID = uuid.New().String()
			}

			node.FlowID = existing.ID
		}

		existing.Version++
	}

	existing.UpdatedAt = time.Now().UTC()

	validation := flow.Validate(existing)

	if req.ValidateOnly {
		return &SaveResult{Flow: existing, Validation: validation}, nil
	}

	if !validation.Valid {
		return &SaveResult{Flow: existing, Validation: validation},
			NewServiceError("Update", CodeFlowValidationFailed, "flow has validation errors", ErrFlowValidationFailed)
	}

	err = s.persistence.FlowRepository().Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	s.cache.Invalidate(existing.TenantID)

	return &SaveResult{Flow: existing, Validation: validation}, nil
}

// Validate runs the graph validator without persisting anything.
func (s *Flow) Validate(ctx context.Context, id string) (*flow.ValidationResult, error) {
	existing, err := s.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return flow.Validate(existing), nil
}

// Delete removes a flow. Nodes and their connections live inside the flow
// document, so the delete cascades to them by construction.
func (s *Flow) Delete(ctx context.Context, id string) error {
	existing, err := s.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.persistence.FlowRepository().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	s.cache.Invalidate(existing.TenantID)

	return nil
}

// Activate makes the flow the tenant's single active flow. Every other
// flow of the tenant is deactivated in the same operation.
func (s *Flow) Activate(ctx context.Context, tenantID, flowID string) error {
	err := s.persistence.FlowRepository().Activate(ctx, tenantID, flowID)
	if err != nil {
		return err
	}

	s.cache.Invalidate(tenantID)

	return nil
}

// Deactivate clears the tenant's active flow.
func (s *Flow) Deactivate(ctx context.Context, tenantID string) error {
	err := s.persistence.FlowRepository().DeactivateAll(ctx, tenantID)
	if err != nil {
		return err
	}

	s.cache.Invalidate(tenantID)

	return nil
}

// Toggle activates the flow if inactive and deactivates it otherwise.
func (s *Flow) Toggle(ctx context.Context, tenantID, flowID string) (bool, error) {
	existing, err := s.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return false, err
	}

	if existing.IsActive {
		return false, s.Deactivate(ctx, tenantID)
	}

	return true, s.Activate(ctx, tenantID, flowID)
}

// Import upserts a flow from its JSON interchange document. The payload is
// schema-checked first; the same shape is produced by Export, so a synced
// flow round-trips. Importing over an existing flow bumps its version. The
// imported flow is always stored inactive regardless of the document's
// is_active field.
func (s *Flow) Import(ctx context.Context, tenantID string, payload []byte) (*SaveResult, error) {
	if tenantID == "" {
		return nil, NewServiceError("Import", CodeInvalidRequest, "tenant id is required", ErrTenantRequired)
	}

	err := flow.ValidateDocument(payload)
	if err != nil {
		return nil, NewServiceError("Import", CodeFlowValidationFailed, err.Error(), ErrFlowValidationFailed)
	}

	var imported models.Flow

	err = json.Unmarshal(payload, &imported)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow document: %w", err)
	}

	imported.TenantID = tenantID
	now := time.Now().UTC()

	if imported.ID == "" {
		imported.ID = uuid.New().String()
		imported.Version = 1
		imported.CreatedAt = now
	} else {
		existing, err := s.persistence.FlowRepository().GetByID(ctx, imported.ID)
		if err == nil {
			imported.Version = existing.Version + 1
			imported.CreatedAt = existing.CreatedAt
		} else if !persistence.IsFlowNotFound(err) {
			return nil, err
		} else {
			imported.Version = 1
			imported.CreatedAt = now
		}
	}

	imported.UpdatedAt = now

	// An imported document never carries activation with it. The single
	// active flow per tenant is owned by Activate, so a document with
	// is_active set is stored inactive and must be activated explicitly.
	imported.IsActive = false

	for _, node := range imported.Nodes {
		if node.ID == "" {
			node.ID = uuid.New().String()
		}

		node.FlowID = imported.ID
	}

	validation := flow.Validate(&imported)
	if !validation.Valid {
		return &SaveResult{Flow: &imported, Validation: validation},
			NewServiceError("Import", CodeFlowValidationFailed, "flow has validation errors", ErrFlowValidationFailed)
	}

	err = s.persistence.FlowRepository().Save(ctx, &imported)
	if err != nil {
		return nil, fmt.Errorf("failed to import flow: %w", err)
	}

	s.cache.Invalidate(tenantID)

	return &SaveResult{Flow: &imported, Validation: validation}, nil
}

// Export renders a flow as its JSON interchange document.
func (s *Flow) Export(ctx context.Context, id string) ([]byte, error) {
	existing, err := s.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flow document: %w", err)
	}

	return payload, nil
}
