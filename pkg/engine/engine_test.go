package engine_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/reservly/flowengine/pkg/engine"
	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence/memory"
	"github.com/reservly/flowengine/pkg/services"
	"github.com/reservly/flowengine/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-09-01 is a Tuesday.
var fixedNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func setupEngine(t *testing.T) (*engine.Engine, *memory.Persistence) {
	t.Helper()

	p := memory.NewPersistence()
	e := engine.NewEngine(p, engine.NewFlowCache(p), slog.Default(),
		engine.WithPayee("mario"),
		engine.WithClock(func() time.Time { return fixedNow }),
	)

	return e, p
}

func TestHandleMessageHappyPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	reply, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply, "Welcome")
	assert.Contains(t, reply, "1) Standard booking - $25.00")
	assert.Contains(t, reply, "3) Group booking - $80.00")

	reply, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "2")
	require.NoError(t, err)
	assert.Contains(t, reply, "Premium booking")
	assert.Contains(t, reply, "$45.00")
	assert.Contains(t, reply, "1) Wednesday, Sep 2")

	reply, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "3")
	require.NoError(t, err)
	assert.Contains(t, reply, "Friday, September 4, 2026")
	assert.Contains(t, reply, "1) 10:00")

	reply, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "2")
	require.NoError(t, err)
	assert.Contains(t, reply, "12:00")
	assert.Contains(t, reply, "https://pay.reservly.io/mario?amount=45.00")

	reply, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "paid")
	require.NoError(t, err)
	assert.Contains(t, reply, "confirmed")

	conv, err := p.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, conv.CurrentState)
	assert.Equal(t, "Premium booking", conv.SelectedService)
	assert.Equal(t, "2026-09-04", conv.SelectedDate)
	assert.Equal(t, "12:00", conv.SelectedTime)
}

func TestHandleMessageInvalidInputDoesNotAdvance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	_, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "hi")
	require.NoError(t, err)
	_, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "1")
	require.NoError(t, err)
	_, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "3")
	require.NoError(t, err)

	// awaiting_time now. An out-of-range slot gets a corrective reply
	// naming the valid range, and the state does not move.
	reply, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "99")
	require.NoError(t, err)
	assert.Contains(t, reply, "1 to 5")

	conv, err := p.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingTime, conv.CurrentState)
	assert.Empty(t, conv.SelectedTime)

	// Valid input still works afterwards.
	_, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "5")
	require.NoError(t, err)

	conv, err = p.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingPayment, conv.CurrentState)
	assert.Equal(t, "18:00", conv.SelectedTime)
}

func TestHandleMessageServiceByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	_, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "hi")
	require.NoError(t, err)

	_, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "group BOOKING")
	require.NoError(t, err)

	conv, err := p.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, "Group booking", conv.SelectedService)
}

func TestHandleMessageDateIsDeterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	_, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "hi")
	require.NoError(t, err)
	_, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "1")
	require.NoError(t, err)
	_, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "7")
	require.NoError(t, err)

	conv, err := p.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-08", conv.SelectedDate, "input N is always today plus N days")
}

func TestHandleMessageCompletedIsReentrant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	for _, input := range []string{"hi", "1", "2", "3", "paid"} {
		_, err := e.HandleMessage(ctx, "tenant-1", "+15550001", input)
		require.NoError(t, err)
	}

	reply, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "hello again")
	require.NoError(t, err)
	assert.Contains(t, reply, "confirmed", "completed conversations replay the summary")

	conv, err := p.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, conv.CurrentState)
}

func TestHandleMessageUnknownStateResets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	require.NoError(t, p.ConversationRepository().Save(ctx, &models.Conversation{
		ID:           "conv-1",
		TenantID:     "tenant-1",
		PhoneNumber:  "+15550001",
		CurrentState: models.ConversationState("haunted"),
	}))

	reply, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply, "Welcome", "unknown states reset to the greeting")

	conv, err := p.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingService, conv.CurrentState)
}

func TestHandleMessageLogsBothDirections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	_, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "hi")
	require.NoError(t, err)

	// Invalid input is logged too, in both directions.
	_, err = e.HandleMessage(ctx, "tenant-1", "+15550001", "banana")
	require.NoError(t, err)

	conv, err := p.ConversationRepository().GetBySender(ctx, "tenant-1", "+15550001")
	require.NoError(t, err)

	count, err := p.MessageRepository().CountByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	messages, err := p.MessageRepository().ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, messages[0].IsFromBot)
	assert.True(t, messages[1].IsFromBot)
}

func TestHandleMessageUsesTenantFlowCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	templateService := services.NewTemplate(template.NewCatalog(), p).WithCacheInvalidator(e.Cache())
	flowService := services.NewFlow(p).WithCacheInvalidator(e.Cache())

	instance, err := templateService.Instantiate(ctx, "restaurant-booking", "tenant-1", template.Customization{
		Variables: map[string]any{"restaurantName": "Mario's", "payeeId": "mario"},
	})
	require.NoError(t, err)
	require.NoError(t, flowService.Activate(ctx, "tenant-1", instance.ID))

	reply, err := e.HandleMessage(ctx, "tenant-1", "+15550001", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply, "Welcome to Mario's!", "tenant copy overrides the static script")
	assert.Contains(t, reply, "1) Standard booking", "runtime tokens still expand")

	// A different tenant without an active flow stays on the static script.
	reply, err = e.HandleMessage(ctx, "tenant-2", "+15550002", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply, "Welcome! I can help you make a booking.")
}

func TestHandleMessageDefaultFlowServesFirstContact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	templateService := services.NewTemplate(template.NewCatalog(), p).WithCacheInvalidator(e.Cache())

	instance, err := templateService.Instantiate(ctx, "restaurant-booking", "tenant-1", template.Customization{
		Variables: map[string]any{"restaurantName": "Luigi's", "payeeId": "luigi"},
	})
	require.NoError(t, err)

	// Never activated, but flagged as the tenant default.
	instance.IsDefault = true
	require.NoError(t, p.FlowRepository().Save(ctx, instance))

	reply, err := e.HandleMessage(ctx, "tenant-1", "+15550003", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply, "Welcome to Luigi's!")
}

func TestTestDriveIsEphemeral(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, p := setupEngine(t)

	templateService := services.NewTemplate(template.NewCatalog(), p)
	instance, err := templateService.Instantiate(ctx, "salon-booking", "tenant-1", template.Customization{
		Variables: map[string]any{"salonName": "Shear Bliss", "payeeId": "bliss"},
	})
	require.NoError(t, err)

	replies, err := e.TestDrive(ctx, "tenant-1", instance.ID, []string{"hi", "1", "2"})
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.Contains(t, replies[0], "Shear Bliss")

	// Nothing touched real conversation state.
	_, err = p.ConversationRepository().GetBySender(ctx, "tenant-1", "test-drive")
	assert.Error(t, err)

	// Cross-tenant flow ids are rejected.
	_, err = e.TestDrive(ctx, "tenant-2", instance.ID, []string{"hi"})
	assert.Error(t, err)
}
