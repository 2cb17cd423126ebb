package engine

import (
	"context"
	"fmt"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// TestDrive replays a scripted sequence of inputs against a flow using an
// ephemeral conversation. Nothing is persisted and no real conversation
// state is touched, so tenants can exercise a draft flow safely.
func (e *Engine) TestDrive(ctx context.Context, tenantID, flowID string, inputs []string) ([]string, error) {
	flow, err := e.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to load flow for test drive: %w", err)
	}

	if flow.TenantID != tenantID {
		return nil, persistence.ErrFlowNotFound
	}

	conversation := &models.Conversation{
		ID:           "test-drive",
		TenantID:     tenantID,
		PhoneNumber:  "test-drive",
		CurrentState: models.StateGreeting,
		ContextData:  make(map[string]any),
	}

	replies := make([]string, 0, len(inputs))

	for _, input := range inputs {
		reply, _ := e.step(conversation, flow, input)
		replies = append(replies, reply)
	}

	return replies, nil
}
