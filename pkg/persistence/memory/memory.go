// Package memory provides an in-memory persistence implementation. It backs
// the degraded operating mode of the resilient store and the test suites.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// Persistence implements persistence.Persistence entirely in process memory.
// All data is lost on restart.
type Persistence struct {
	mu            sync.RWMutex
	flows         map[string]*models.Flow
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message // keyed by conversation id

	flowRepo         *FlowRepository
	conversationRepo *ConversationRepository
	messageRepo      *MessageRepository
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	p := &Persistence{
		flows:         make(map[string]*models.Flow),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
	}
	p.flowRepo = &FlowRepository{p: p}
	p.conversationRepo = &ConversationRepository{p: p}
	p.messageRepo = &MessageRepository{p: p}

	return p
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) ConversationRepository() persistence.ConversationRepository {
	return p.conversationRepo
}

func (p *Persistence) MessageRepository() persistence.MessageRepository {
	return p.messageRepo
}

// HealthCheck always succeeds: process memory has no failure mode short of
// the process itself dying.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// FlowRepository stores flows in a map guarded by the parent lock.
type FlowRepository struct {
	p *Persistence
}

func (r *FlowRepository) ListFlows(_ context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	matched := make([]*models.Flow, 0)

	for _, flow := range r.p.flows {
		if opts.TenantID != "" && flow.TenantID != opts.TenantID {
			continue
		}

		if opts.FlowType != nil && flow.FlowType != *opts.FlowType {
			continue
		}

		if opts.IsActive != nil && flow.IsActive != *opts.IsActive {
			continue
		}

		if opts.IsTemplate != nil && flow.IsTemplate != *opts.IsTemplate {
			continue
		}

		matched = append(matched, flow)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))

	start := opts.Offset
	if start > len(matched) {
		start = len(matched)
	}

	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*models.Flow, 0, end-start)
	for _, flow := range matched[start:end] {
		page = append(page, cloneFlow(flow))
	}

	return &persistence.FlowListResult{
		Flows:       page,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+opts.Limit) < total,
	}, nil
}

func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	flow, ok := r.p.flows[id]
	if !ok {
		return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
	}

	return cloneFlow(flow), nil
}

func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.flows[flow.ID] = cloneFlow(flow)

	return nil
}

func (r *FlowRepository) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.flows[id]; !ok {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	delete(r.p.flows, id)

	return nil
}

func (r *FlowRepository) ActiveFlow(_ context.Context, tenantID string) (*models.Flow, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	for _, flow := range r.p.flows {
		if flow.TenantID == tenantID && flow.IsActive {
			return cloneFlow(flow), nil
		}
	}

	return nil, &persistence.FlowError{Op: "ActiveFlow", TenantID: tenantID, Err: persistence.ErrFlowNotFound}
}

// Activate flips the active flag under a single lock so no reader can ever
// observe two active flows for the same tenant.
func (r *FlowRepository) Activate(_ context.Context, tenantID, flowID string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	target, ok := r.p.flows[flowID]
	if !ok || target.TenantID != tenantID {
		return persistence.NewFlowError("Activate", flowID, persistence.ErrFlowNotFound)
	}

	for _, flow := range r.p.flows {
		if flow.TenantID == tenantID {
			flow.IsActive = false
		}
	}

	target.IsActive = true

	return nil
}

func (r *FlowRepository) DeactivateAll(_ context.Context, tenantID string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	for _, flow := range r.p.flows {
		if flow.TenantID == tenantID {
			flow.IsActive = false
		}
	}

	return nil
}

// ConversationRepository stores conversations keyed by id and by sender.
type ConversationRepository struct {
	p *Persistence
}

func senderKey(tenantID, phoneNumber string) string {
	return tenantID + ":" + phoneNumber
}

func (r *ConversationRepository) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	for _, conv := range r.p.conversations {
		if conv.ID == id {
			clone := *conv

			return &clone, nil
		}
	}

	return nil, persistence.NewConversationError("GetByID", id, persistence.ErrConversationNotFound)
}

func (r *ConversationRepository) GetBySender(_ context.Context, tenantID, phoneNumber string) (*models.Conversation, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	conv, ok := r.p.conversations[senderKey(tenantID, phoneNumber)]
	if !ok {
		return nil, &persistence.ConversationError{
			Op:          "GetBySender",
			PhoneNumber: phoneNumber,
			Err:         persistence.ErrConversationNotFound,
		}
	}

	clone := *conv

	return &clone, nil
}

func (r *ConversationRepository) Save(_ context.Context, conversation *models.Conversation) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *conversation
	r.p.conversations[senderKey(conversation.TenantID, conversation.PhoneNumber)] = &clone

	return nil
}

// MessageRepository is the append-only message log.
type MessageRepository struct {
	p *Persistence
}

func (r *MessageRepository) Append(_ context.Context, message *models.Message) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *message
	r.p.messages[message.ConversationID] = append(r.p.messages[message.ConversationID], &clone)

	return nil
}

func (r *MessageRepository) ListByConversation(_ context.Context, conversationID string) ([]*models.Message, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	stored := r.p.messages[conversationID]

	out := make([]*models.Message, 0, len(stored))
	for _, msg := range stored {
		clone := *msg
		out = append(out, &clone)
	}

	return out, nil
}

func (r *MessageRepository) CountByConversation(_ context.Context, conversationID string) (int64, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	return int64(len(r.p.messages[conversationID])), nil
}

// cloneFlow deep-copies a flow so callers cannot mutate stored state.
func cloneFlow(flow *models.Flow) *models.Flow {
	clone := *flow

	clone.Nodes = make([]*models.FlowNode, 0, len(flow.Nodes))
	for _, node := range flow.Nodes {
		nodeClone := *node

		nodeClone.Connections = make([]*models.Connection, 0, len(node.Connections))
		for _, conn := range node.Connections {
			connClone := *conn
			nodeClone.Connections = append(nodeClone.Connections, &connClone)
		}

		if node.Configuration != nil {
			nodeClone.Configuration = make(map[string]any, len(node.Configuration))
			for k, v := range node.Configuration {
				nodeClone.Configuration[k] = v
			}
		}

		clone.Nodes = append(clone.Nodes, &nodeClone)
	}

	clone.Variables = make([]*models.Variable, 0, len(flow.Variables))
	for _, variable := range flow.Variables {
		varClone := *variable
		clone.Variables = append(clone.Variables, &varClone)
	}

	return &clone
}
