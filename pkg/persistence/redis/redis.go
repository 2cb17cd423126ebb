// Package redis provides a Redis-backed persistence implementation. The
// tenant's active flow is a single pointer key, which keeps activation
// atomic from a reader's point of view.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	goredis "github.com/redis/go-redis/v9"
	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of Redis.
type Persistence struct {
	client goredis.UniversalClient
	logger *slog.Logger

	flowRepo         *FlowRepository
	conversationRepo *ConversationRepository
	messageRepo      *MessageRepository
}

// NewPersistence creates a Redis persistence layer from a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewPersistenceWithClient(client, logger), nil
}

// NewPersistenceWithClient wraps an existing client. Used by tests.
func NewPersistenceWithClient(client goredis.UniversalClient, logger *slog.Logger) *Persistence {
	p := &Persistence{client: client, logger: logger}
	p.flowRepo = &FlowRepository{client: client}
	p.conversationRepo = &ConversationRepository{client: client}
	p.messageRepo = &MessageRepository{client: client}

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

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func flowKey(id string) string               { return "flow:" + id }
func tenantFlowsKey(tenantID string) string  { return "tenant:" + tenantID + ":flows" }
func activeFlowKey(tenantID string) string   { return "tenant:" + tenantID + ":active_flow" }
func conversationKey(id string) string       { return "conversation:" + id }
func senderKey(tenantID, phone string) string { return "sender:" + tenantID + ":" + phone }
func messagesKey(conversationID string) string { return "messages:" + conversationID }

// FlowRepository stores each flow as a JSON document plus a per-tenant index set.
type FlowRepository struct {
	client goredis.UniversalClient
}

func (r *FlowRepository) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var ids []string

	if opts.TenantID != "" {
		members, err := r.client.SMembers(ctx, tenantFlowsKey(opts.TenantID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read tenant flow index: %w", err)
		}

		ids = members
	} else {
		keys, err := r.client.Keys(ctx, "flow:*").Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow keys: %w", err)
		}

		for _, key := range keys {
			ids = append(ids, key[len("flow:"):])
		}
	}

	matched := make([]*models.Flow, 0, len(ids))

	for _, id := range ids {
		flow, err := r.getFlow(ctx, id)
		if err != nil {
			if persistence.IsFlowNotFound(err) {
				continue // index member without a document; skip
			}

			return nil, err
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

	sortFlowsByCreatedAtDesc(matched)

	total := int64(len(matched))

	start := opts.Offset
	if start > len(matched) {
		start = len(matched)
	}

	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return &persistence.FlowListResult{
		Flows:       matched[start:end],
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+opts.Limit) < total,
	}, nil
}

func (r *FlowRepository) getFlow(ctx context.Context, id string) (*models.Flow, error) {
	payload, err := r.client.Get(ctx, flowKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to read flow %s: %w", id, err)
	}

	var flow models.Flow

	err = json.Unmarshal(payload, &flow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow %s: %w", id, err)
	}

	return &flow, nil
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	return r.getFlow(ctx, id)
}

func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	payload, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, flowKey(flow.ID), payload, 0)
	pipe.SAdd(ctx, tenantFlowsKey(flow.TenantID), flow.ID)

	if flow.IsActive {
		pipe.Set(ctx, activeFlowKey(flow.TenantID), flow.ID, 0)
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	flow, err := r.getFlow(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, flowKey(id))
	pipe.SRem(ctx, tenantFlowsKey(flow.TenantID), id)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	active, err := r.client.Get(ctx, activeFlowKey(flow.TenantID)).Result()
	if err == nil && active == id {
		_ = r.client.Del(ctx, activeFlowKey(flow.TenantID)).Err()
	}

	return nil
}

func (r *FlowRepository) ActiveFlow(ctx context.Context, tenantID string) (*models.Flow, error) {
	id, err := r.client.Get(ctx, activeFlowKey(tenantID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, &persistence.FlowError{Op: "ActiveFlow", TenantID: tenantID, Err: persistence.ErrFlowNotFound}
		}

		return nil, fmt.Errorf("failed to read active flow pointer: %w", err)
	}

	flow, err := r.getFlow(ctx, id)
	if err != nil {
		return nil, err
	}

	// The pointer, not the document flag, is authoritative here.
	flow.IsActive = true

	return flow, nil
}

func (r *FlowRepository) Activate(ctx context.Context, tenantID, flowID string) error {
	flow, err := r.getFlow(ctx, flowID)
	if err != nil {
		return err
	}

	if flow.TenantID != tenantID {
		return persistence.NewFlowError("Activate", flowID, persistence.ErrFlowNotFound)
	}

	err = r.DeactivateAll(ctx, tenantID)
	if err != nil {
		return err
	}

	flow.IsActive = true

	payload, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, flowKey(flowID), payload, 0)
	pipe.Set(ctx, activeFlowKey(tenantID), flowID, 0)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to activate flow %s: %w", flowID, err)
	}

	return nil
}

func (r *FlowRepository) DeactivateAll(ctx context.Context, tenantID string) error {
	ids, err := r.client.SMembers(ctx, tenantFlowsKey(tenantID)).Result()
	if err != nil {
		return fmt.Errorf("failed to read tenant flow index: %w", err)
	}

	for _, id := range ids {
		flow, err := r.getFlow(ctx, id)
		if err != nil {
			if persistence.IsFlowNotFound(err) {
				continue
			}

			return err
		}

		if !flow.IsActive {
			continue
		}

		flow.IsActive = false

		payload, err := json.Marshal(flow)
		if err != nil {
			return fmt.Errorf("failed to marshal flow: %w", err)
		}

		err = r.client.Set(ctx, flowKey(id), payload, 0).Err()
		if err != nil {
			return fmt.Errorf("failed to deactivate flow %s: %w", id, err)
		}
	}

	return r.client.Del(ctx, activeFlowKey(tenantID)).Err()
}

// ConversationRepository stores conversations keyed by id with a sender index.
type ConversationRepository struct {
	client goredis.UniversalClient
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	payload, err := r.client.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewConversationError("GetByID", id, persistence.ErrConversationNotFound)
		}

		return nil, fmt.Errorf("failed to read conversation %s: %w", id, err)
	}

	var conversation models.Conversation

	err = json.Unmarshal(payload, &conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation %s: %w", id, err)
	}

	return &conversation, nil
}

func (r *ConversationRepository) GetBySender(ctx context.Context, tenantID, phoneNumber string) (*models.Conversation, error) {
	id, err := r.client.Get(ctx, senderKey(tenantID, phoneNumber)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, &persistence.ConversationError{
				Op:          "GetBySender",
				PhoneNumber: phoneNumber,
				Err:         persistence.ErrConversationNotFound,
			}
		}

		return nil, fmt.Errorf("failed to read sender index: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *ConversationRepository) Save(ctx context.Context, conversation *models.Conversation) error {
	payload, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, conversationKey(conversation.ID), payload, 0)
	pipe.Set(ctx, senderKey(conversation.TenantID, conversation.PhoneNumber), conversation.ID, 0)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conversation.ID, err)
	}

	return nil
}

// MessageRepository appends messages to a per-conversation list.
type MessageRepository struct {
	client goredis.UniversalClient
}

func (r *MessageRepository) Append(ctx context.Context, message *models.Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = r.client.RPush(ctx, messagesKey(message.ConversationID), payload).Err()
	if err != nil {
		return fmt.Errorf("failed to append message %s: %w", message.ID, err)
	}

	return nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	payloads, err := r.client.LRange(ctx, messagesKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	messages := make([]*models.Message, 0, len(payloads))

	for _, payload := range payloads {
		var message models.Message

		err = json.Unmarshal([]byte(payload), &message)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}

		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *MessageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	count, err := r.client.LLen(ctx, messagesKey(conversationID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

func sortFlowsByCreatedAtDesc(flows []*models.Flow) {
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})
}
