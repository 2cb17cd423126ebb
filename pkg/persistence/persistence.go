// Package persistence provides the data storage abstraction layer for flows
// and conversations.
package persistence

import (
	"context"

	"github.com/reservly/flowengine/pkg/models"
)

// Persistence is the storage entry point. Implementations expose per-entity
// repositories plus lifecycle hooks.
type Persistence interface {
	FlowRepository() FlowRepository
	ConversationRepository() ConversationRepository
	MessageRepository() MessageRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListFlowsOptions controls filtering and pagination when listing flows.
type ListFlowsOptions struct {
	TenantID   string
	FlowType   *models.FlowType
	IsActive   *bool
	IsTemplate *bool

	Limit  int
	Offset int
}

// FlowListResult is a page of flows plus paging metadata.
type FlowListResult struct {
	Flows       []*models.Flow `json:"flows"`
	TotalCount  int64          `json:"total_count"`
	HasNextPage bool           `json:"has_next_page"`
}

// FlowRepository stores flows with their nodes attached.
type FlowRepository interface {
	ListFlows(ctx context.Context, opts ListFlowsOptions) (*FlowListResult, error)
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, id string) error

	// ActiveFlow returns the tenant's single active flow, or
	// ErrFlowNotFound when none is active.
	ActiveFlow(ctx context.Context, tenantID string) (*models.Flow, error)

	// Activate marks flowID active and deactivates every other flow owned
	// by the tenant. The tenant must never observe more than one active
	// flow, so implementations perform both steps atomically.
	Activate(ctx context.Context, tenantID, flowID string) error

	// DeactivateAll clears the active flag on every flow owned by the tenant.
	DeactivateAll(ctx context.Context, tenantID string) error
}

// ConversationRepository stores per-sender conversation records.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)

	// GetBySender resolves the unique conversation for (tenantID,
	// phoneNumber), or ErrConversationNotFound.
	GetBySender(ctx context.Context, tenantID, phoneNumber string) (*models.Conversation, error)

	Save(ctx context.Context, conversation *models.Conversation) error
}

// MessageRepository is the append-only conversation message log.
type MessageRepository interface {
	Append(ctx context.Context, message *models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
}
