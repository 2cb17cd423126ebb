package engine

import (
	"context"
	"sync"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// FlowCache holds each tenant's active flow. Refresh policy: pull-on-miss
// from the store, explicit Invalidate when the builder or sync path
// changes the tenant's flows. Entries are process-local and rebuilt after
// a restart.
//
// A negative entry (tenant has no active flow) is cached too, so tenants
// running purely on the static script do not hit the store on every
// message.
type FlowCache struct {
	mu       sync.RWMutex
	flows    map[string]*models.Flow
	flowRepo func() persistence.FlowRepository
}

// NewFlowCache creates a cache backed by the given persistence layer.
func NewFlowCache(p persistence.Persistence) *FlowCache {
	return &FlowCache{
		flows:    make(map[string]*models.Flow),
		flowRepo: p.FlowRepository,
	}
}

// ActiveFlow returns the tenant's active flow, loading it from the store
// on a cache miss. A nil flow with nil error means the tenant has none.
func (c *FlowCache) ActiveFlow(ctx context.Context, tenantID string) (*models.Flow, error) {
	c.mu.RLock()
	cached, ok := c.flows[tenantID]
	c.mu.RUnlock()

	if ok {
		return cached, nil
	}

	active, err := c.flowRepo().ActiveFlow(ctx, tenantID)
	if err != nil {
		if !persistence.IsFlowNotFound(err) {
			return nil, err
		}

		// No active flow. A flow marked as the tenant's default still
		// serves first contacts; otherwise the tenant runs on the static
		// script.
		active, err = c.defaultFlow(ctx, tenantID)
		if err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.flows[tenantID] = active
	c.mu.Unlock()

	return active, nil
}

func (c *FlowCache) defaultFlow(ctx context.Context, tenantID string) (*models.Flow, error) {
	isTemplate := false

	result, err := c.flowRepo().ListFlows(ctx, persistence.ListFlowsOptions{
		TenantID:   tenantID,
		IsTemplate: &isTemplate,
	})
	if err != nil {
		return nil, err
	}

	for _, candidate := range result.Flows {
		if candidate.IsDefault {
			return candidate, nil
		}
	}

	return nil, nil
}

// Invalidate drops the tenant's entry so the next message pulls fresh
// state. Called on every flow mutation, activation, and sync.
func (c *FlowCache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.flows, tenantID)
	c.mu.Unlock()
}
