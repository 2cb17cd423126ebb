package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
	"github.com/reservly/flowengine/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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
	p := memory.NewPersistence()
	repo := p.FlowRepository()

	f := sampleFlow("flow-1", "tenant-1", time.Now())
	require.NoError(t, repo.Save(ctx, f))

	got, err := repo.GetByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "flow flow-1", got.Name)
	require.Len(t, got.Nodes, 2)

	// Stored state is isolated from caller mutations.
	got.Nodes[1].Configuration["message_text"] = "mutated"
	again, err := repo.GetByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Nodes[1].Configuration["message_text"])

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestFlowRepositoryListFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := memory.NewPersistence()
	repo := p.FlowRepository()

	base := time.Now()
	older := sampleFlow("flow-1", "tenant-1", base.Add(-time.Hour))
	newer := sampleFlow("flow-2", "tenant-1", base)
	newer.IsTemplate = true
	other := sampleFlow("flow-3", "tenant-2", base)

	for _, f := range []*models.Flow{older, newer, other} {
		require.NoError(t, repo.Save(ctx, f))
	}

	result, err := repo.ListFlows(ctx, persistence.ListFlowsOptions{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.TotalCount)
	require.Len(t, result.Flows, 2)
	assert.Equal(t, "flow-2", result.Flows[0].ID, "newest first")

	isTemplate := false
	result, err = repo.ListFlows(ctx, persistence.ListFlowsOptions{TenantID: "tenant-1", IsTemplate: &isTemplate})
	require.NoError(t, err)
	require.Len(t, result.Flows, 1)
	assert.Equal(t, "flow-1", result.Flows[0].ID)
}

func TestFlowRepositorySingleActiveFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := memory.NewPersistence()
	repo := p.FlowRepository()

	require.NoError(t, repo.Save(ctx, sampleFlow("flow-1", "tenant-1", time.Now())))
	require.NoError(t, repo.Save(ctx, sampleFlow("flow-2", "tenant-1", time.Now())))

	require.NoError(t, repo.Activate(ctx, "tenant-1", "flow-1"))
	require.NoError(t, repo.Activate(ctx, "tenant-1", "flow-2"))

	active, err := repo.ActiveFlow(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "flow-2", active.ID)

	first, err := repo.GetByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.False(t, first.IsActive, "activating a second flow deactivates the first")

	require.NoError(t, repo.DeactivateAll(ctx, "tenant-1"))
	_, err = repo.ActiveFlow(ctx, "tenant-1")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestFlowRepositoryActivateRejectsCrossTenant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := memory.NewPersistence()
	repo := p.FlowRepository()

	require.NoError(t, repo.Save(ctx, sampleFlow("flow-1", "tenant-1", time.Now())))

	err := repo.Activate(ctx, "tenant-2", "flow-1")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestConversationRepositoryBySender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := memory.NewPersistence()
	repo := p.ConversationRepository()

	conv := &models.Conversation{
		ID:           "conv-1",
		TenantID:     "tenant-1",
		PhoneNumber:  "+15550001",
		CurrentState: models.StateGreeting,
	}
	require.NoError(t, repo.Save(ctx, conv))

	got, err := repo.GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ID)

	byID, err := repo.GetByID(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateGreeting, byID.CurrentState)

	_, err = repo.GetBySender(ctx, "tenant-1", "+19999999")
	assert.True(t, persistence.IsConversationNotFound(err))

	// Same phone number under a different tenant is a different conversation.
	_, err = repo.GetBySender(ctx, "tenant-2", "+15550001")
	assert.True(t, persistence.IsConversationNotFound(err))

	// Saving again overwrites in place, it never duplicates.
	conv.CurrentState = models.StateAwaitingService
	require.NoError(t, repo.Save(ctx, conv))

	got, err = repo.GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingService, got.CurrentState)
}

func TestMessageRepositoryAppendOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := memory.NewPersistence()
	repo := p.MessageRepository()

	for i, content := range []string{"hi", "welcome", "1"} {
		require.NoError(t, repo.Append(ctx, &models.Message{
			ID:             string(rune('a' + i)),
			ConversationID: "conv-1",
			Content:        content,
			MessageType:    models.MessageTypeText,
			IsFromBot:      i == 1,
		}))
	}

	messages, err := repo.ListByConversation(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "hi", messages[0].Content)
	assert.True(t, messages[1].IsFromBot)

	count, err := repo.CountByConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	count, err = repo.CountByConversation(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, count)
}
