package resilient_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
	"github.com/reservly/flowengine/pkg/persistence/memory"
	"github.com/reservly/flowengine/pkg/resilient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConnRefused = errors.New("dial tcp: connection refused")

// brokenPersistence fails every call with an infrastructure error.
type brokenPersistence struct{}

func (brokenPersistence) FlowRepository() persistence.FlowRepository { return brokenFlowRepo{} }

func (brokenPersistence) ConversationRepository() persistence.ConversationRepository {
	return brokenConversationRepo{}
}

func (brokenPersistence) MessageRepository() persistence.MessageRepository {
	return brokenMessageRepo{}
}

func (brokenPersistence) HealthCheck(context.Context) error { return errConnRefused }
func (brokenPersistence) Close(context.Context) error { return nil }

type brokenFlowRepo struct{}

func (brokenFlowRepo) ListFlows(context.Context, persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	return nil, errConnRefused
}

func (brokenFlowRepo) GetByID(context.Context, string) (*models.Flow, error) {
	return nil, errConnRefused
}

func (brokenFlowRepo) Save(context.Context, *models.Flow) error { return errConnRefused }
func (brokenFlowRepo) Delete(context.Context, string) error { return errConnRefused }
func (brokenFlowRepo) Activate(context.Context, string, string) error { return errConnRefused }
func (brokenFlowRepo) DeactivateAll(context.Context, string) error { return errConnRefused }

func (brokenFlowRepo) ActiveFlow(context.Context, string) (*models.Flow, error) {
	return nil, errConnRefused
}

type brokenConversationRepo struct{}

func (brokenConversationRepo) GetByID(context.Context, string) (*models.Conversation, error) {
	return nil, errConnRefused
}

func (brokenConversationRepo) GetBySender(context.Context, string, string) (*models.Conversation, error) {
	return nil, errConnRefused
}

func (brokenConversationRepo) Save(context.Context, *models.Conversation) error {
	return errConnRefused
}

type brokenMessageRepo struct{}

func (brokenMessageRepo) Append(context.Context, *models.Message) error { return errConnRefused }

func (brokenMessageRepo) ListByConversation(context.Context, string) ([]*models.Message, error) {
	return nil, errConnRefused
}

func (brokenMessageRepo) CountByConversation(context.Context, string) (int64, error) {
	return 0, errConnRefused
}

func TestStoreDemotesOnInfrastructureFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := resilient.NewStore(brokenPersistence{}, memory.NewPersistence(), slog.Default())

	require.Equal(t, resilient.ModeHealthy, store.Mode())
	assert.Equal(t, "durable", store.Backend())

	// The failed call demotes the store and is replayed on the fallback,
	// so the caller never sees the infrastructure error.
	err := store.FlowRepository().Save(ctx, &models.Flow{ID: "flow-1", TenantID: "tenant-1", Name: "booking"})
	require.NoError(t, err)

	assert.Equal(t, resilient.ModeDegraded, store.Mode())
	assert.Equal(t, "memory", store.Backend())

	// Subsequent operations keep working against the fallback.
	got, err := store.FlowRepository().GetByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "booking", got.Name)
}

func TestStoreDomainErrorsDoNotDemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := resilient.NewStore(memory.NewPersistence(), memory.NewPersistence(), slog.Default())

	_, err := store.FlowRepository().GetByID(ctx, "missing")
	assert.True(t, persistence.IsFlowNotFound(err))

	_, err = store.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	assert.True(t, persistence.IsConversationNotFound(err))

	assert.Equal(t, resilient.ModeHealthy, store.Mode(),
		"a missing record is data, not a store failure")
}

func TestStoreStaysDemotedForProcessLifetime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := resilient.NewStore(brokenPersistence{}, memory.NewPersistence(), slog.Default())

	_, err := store.FlowRepository().GetByID(ctx, "anything")
	assert.True(t, persistence.IsFlowNotFound(err), "replayed on the empty fallback")
	require.Equal(t, resilient.ModeDegraded, store.Mode())

	// There is no promotion path, even if the durable backend comes back.
	require.NoError(t, store.ConversationRepository().Save(ctx, &models.Conversation{
		ID:          "conv-1",
		TenantID:    "tenant-1",
		PhoneNumber: "+15550001",
	}))

	got, err := store.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ID)
	assert.Equal(t, resilient.ModeDegraded, store.Mode())
}

func TestNewDegradedStore(t *testing.T) {
	t.Parallel()

	store := resilient.NewDegradedStore(memory.NewPersistence(), slog.Default())

	assert.Equal(t, resilient.ModeDegraded, store.Mode())
	assert.Equal(t, "memory", store.Backend())
	assert.NoError(t, store.HealthCheck(context.Background()))
}
