package redis_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
	"github.com/reservly/flowengine/pkg/persistence/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPersistence(t *testing.T) *redis.Persistence {
	t.Helper()

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return redis.NewPersistenceWithClient(client, slog.Default())
}

func sampleFlow(id, tenantID string, createdAt time.Time) *models.Flow {
	return &models.Flow{
		ID:          id,
		TenantID:    tenantID,
		Name:        "flow " + id,
		FlowType:    models.FlowTypeBooking,
		StartNodeID: "start",
		Nodes: []*models.FlowNode{
			{
				ID:   "start",
				Type: models.NodeTypeStart,
				Name: "start",
				Connections: []*models.Connection{
					{ID: "start->hello", SourceNodeID: "start", TargetNodeID: "hello"},
				},
			},
			{
				ID:            "hello",
				Type:          models.NodeTypeMessage,
				Name:          "hello",
				Configuration: map[string]any{"message_text": "hi"},
			},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestFlowRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupPersistence(t).FlowRepository()

	require.NoError(t, repo.Save(ctx, sampleFlow("flow-1", "tenant-1", time.Now().UTC())))

	got, err := repo.GetByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "flow flow-1", got.Name)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "hi", got.Nodes[1].Configuration["message_text"])

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestFlowRepositoryListByTenant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupPersistence(t).FlowRepository()

	base := time.Now().UTC()
	require.NoError(t, repo.Save(ctx, sampleFlow("flow-1", "tenant-1", base.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, sampleFlow("flow-2", "tenant-1", base)))
	require.NoError(t, repo.Save(ctx, sampleFlow("flow-3", "tenant-2", base)))

	result, err := repo.ListFlows(ctx, persistence.ListFlowsOptions{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.TotalCount)
	require.Len(t, result.Flows, 2)
	assert.Equal(t, "flow-2", result.Flows[0].ID, "newest first")
}

func TestFlowRepositoryActivePointer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupPersistence(t).FlowRepository()

	require.NoError(t, repo.Save(ctx, sampleFlow("flow-1", "tenant-1", time.Now().UTC())))
	require.NoError(t, repo.Save(ctx, sampleFlow("flow-2", "tenant-1", time.Now().UTC())))

	_, err := repo.ActiveFlow(ctx, "tenant-1")
	assert.True(t, persistence.IsFlowNotFound(err), "no active flow yet")

	require.NoError(t, repo.Activate(ctx, "tenant-1", "flow-1"))
	require.NoError(t, repo.Activate(ctx, "tenant-1", "flow-2"))

	active, err := repo.ActiveFlow(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "flow-2", active.ID)
	assert.True(t, active.IsActive)

	first, err := repo.GetByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	// Deleting the active flow clears the pointer too.
	require.NoError(t, repo.Delete(ctx, "flow-2"))

	_, err = repo.ActiveFlow(ctx, "tenant-1")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestConversationRepositorySenderIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupPersistence(t).ConversationRepository()

	conv := &models.Conversation{
		ID:           "conv-1",
		TenantID:     "tenant-1",
		PhoneNumber:  "+15550001",
		CurrentState: models.StateAwaitingDate,
		SelectedDate: "2026-09-04",
	}
	require.NoError(t, repo.Save(ctx, conv))

	got, err := repo.GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ID)
	assert.Equal(t, models.StateAwaitingDate, got.CurrentState)
	assert.Equal(t, "2026-09-04", got.SelectedDate)

	_, err = repo.GetBySender(ctx, "tenant-2", "+15550001")
	assert.True(t, persistence.IsConversationNotFound(err))
}

func TestMessageRepositoryList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupPersistence(t).MessageRepository()

	for _, content := range []string{"hi", "welcome back"} {
		require.NoError(t, repo.Append(ctx, &models.Message{
			ID:             content,
			ConversationID: "conv-1",
			Content:        content,
			MessageType:    models.MessageTypeText,
		}))
	}

	messages, err := repo.ListByConversation(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Content)

	count, err := repo.CountByConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
