// Package resilient provides a storage facade that prefers a durable
// backend but demotes itself to an in-memory backend on the first
// infrastructure failure and stays demoted for the process lifetime.
// Recovery requires a restart.
package resilient

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// Mode is the facade's operating state. The transition is strictly one-way:
// Healthy -> Degraded.
type Mode int32

const (
	ModeHealthy Mode = iota
	ModeDegraded
)

func (m Mode) String() string {
	if m == ModeDegraded {
		return "degraded"
	}

	return "healthy"
}

// DefaultTimeout bounds every call to the durable backend. A timeout is
// treated identically to any other store failure.
const DefaultTimeout = 5 * time.Second

// Store is a persistence.Persistence that fronts a durable backend with an
// in-memory fallback. Domain errors (not found, already exists) pass
// through untouched; infrastructure errors demote the store.
type Store struct {
	primary  persistence.Persistence
	fallback persistence.Persistence
	logger   *slog.Logger
	timeout  time.Duration
	mode     atomic.Int32
}

// NewStore creates a resilient store over the given backends.
func NewStore(primary, fallback persistence.Persistence, logger *slog.Logger) *Store {
	return &Store{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		timeout:  DefaultTimeout,
	}
}

// NewDegradedStore creates a store already pinned to the fallback. Used
// when the durable backend cannot even be constructed at startup.
func NewDegradedStore(fallback persistence.Persistence, logger *slog.Logger) *Store {
	s := NewStore(fallback, fallback, logger)
	s.mode.Store(int32(ModeDegraded))

	return s
}

// WithTimeout overrides the per-call bound on the durable backend.
func (s *Store) WithTimeout(timeout time.Duration) *Store {
	s.timeout = timeout

	return s
}

// Mode reports the current operating state.
func (s *Store) Mode() Mode {
	return Mode(s.mode.Load())
}

// Backend names the backend currently serving calls. Used as a probe by
// tests and the health endpoint.
func (s *Store) Backend() string {
	if s.Mode() == ModeDegraded {
		return "memory"
	}

	return "durable"
}

// demote flips the store into degraded mode. Idempotent.
func (s *Store) demote(err error) {
	if s.mode.CompareAndSwap(int32(ModeHealthy), int32(ModeDegraded)) {
		s.logger.Error("durable store failed, demoting to in-memory backend for process lifetime", "error", err)
	}
}

// isDomainError reports whether err is business data state rather than an
// infrastructure fault. Domain errors must never demote the store.
func isDomainError(err error) bool {
	return persistence.IsFlowNotFound(err) ||
		persistence.IsNodeNotFound(err) ||
		persistence.IsConversationNotFound(err)
}

// call runs op against the preferred backend. When the durable backend
// returns an infrastructure error or times out, the store demotes and the
// op is replayed once against the fallback.
func call[T any](ctx context.Context, s *Store, op func(ctx context.Context, p persistence.Persistence) (T, error)) (T, error) {
	if s.Mode() == ModeDegraded {
		return op(ctx, s.fallback)
	}

	boundCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := op(boundCtx, s.primary)
	if err == nil || isDomainError(err) {
		return result, err
	}

	s.demote(err)

	return op(ctx, s.fallback)
}

func (s *Store) FlowRepository() persistence.FlowRepository {
	return &flowRepository{store: s}
}

func (s *Store) ConversationRepository() persistence.ConversationRepository {
	return &conversationRepository{store: s}
}

func (s *Store) MessageRepository() persistence.MessageRepository {
	return &messageRepository{store: s}
}

// HealthCheck reports the health of whichever backend is serving calls.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.Mode() == ModeDegraded {
		return s.fallback.HealthCheck(ctx)
	}

	return s.primary.HealthCheck(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	err := s.primary.Close(ctx)

	fallbackErr := s.fallback.Close(ctx)
	if err == nil {
		err = fallbackErr
	}

	return err
}

type flowRepository struct {
	store *Store
}

func (r *flowRepository) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	return call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (*persistence.FlowListResult, error) {
		return p.FlowRepository().ListFlows(ctx, opts)
	})
}

func (r *flowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	return call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (*models.Flow, error) {
		return p.FlowRepository().GetByID(ctx, id)
	})
}

func (r *flowRepository) Save(ctx context.Context, flow *models.Flow) error {
	_, err := call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (struct{}, error) {
		return struct{}{}, p.FlowRepository().Save(ctx, flow)
	})

	return err
}

func (r *flowRepository) Delete(ctx context.Context, id string) error {
	_, err := call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (struct{}, error) {
		return struct{}{}, p.FlowRepository().Delete(ctx, id)
	})

	return err
}

func (r *flowRepository) ActiveFlow(ctx context.Context, tenantID string) (*models.Flow, error) {
	return call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (*models.Flow, error) {
		return p.FlowRepository().ActiveFlow(ctx, tenantID)
	})
}

func (r *flowRepository) Activate(ctx context.Context, tenantID, flowID string) error {
	_, err := call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (struct{}, error) {
		return struct{}{}, p.FlowRepository().Activate(ctx, tenantID, flowID)
	})

	return err
}

func (r *flowRepository) DeactivateAll(ctx context.Context, tenantID string) error {
	_, err := call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (struct{}, error) {
		return struct{}{}, p.FlowRepository().DeactivateAll(ctx, tenantID)
	})

	return err
}

type conversationRepository struct {
	store *Store
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	return call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (*models.Conversation, error) {
		return p.ConversationRepository().GetByID(ctx, id)
	})
}

func (r *conversationRepository) GetBySender(ctx context.Context, tenantID, phoneNumber string) (*models.Conversation, error) {
	return call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (*models.Conversation, error) {
		return p.ConversationRepository().GetBySender(ctx, tenantID, phoneNumber)
	})
}

func (r *conversationRepository) Save(ctx context.Context, conversation *models.Conversation) error {
	_, err := call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (struct{}, error) {
		return struct{}{}, p.ConversationRepository().Save(ctx, conversation)
	})

	return err
}

type messageRepository struct {
	store *Store
}

func (r *messageRepository) Append(ctx context.Context, message *models.Message) error {
	_, err := call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (struct{}, error) {
		return struct{}{}, p.MessageRepository().Append(ctx, message)
	})

	return err
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	return call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) ([]*models.Message, error) {
		return p.MessageRepository().ListByConversation(ctx, conversationID)
	})
}

func (r *messageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	return call(ctx, r.store, func(ctx context.Context, p persistence.Persistence) (int64, error) {
		return p.MessageRepository().CountByConversation(ctx, conversationID)
	})
}
