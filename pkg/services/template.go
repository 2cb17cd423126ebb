// Package services provides template instantiation on top of the catalog.
package services

import (
	"context"
	"fmt"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
	"github.com/reservly/flowengine/pkg/template"
)

// Template handles catalog lookups and skeleton instantiation.
type Template struct {
	catalog     *template.Catalog
	persistence persistence.Persistence
	cache       CacheInvalidator
}

// NewTemplate creates a new template service.
func NewTemplate(catalog *template.Catalog, p persistence.Persistence) *Template {
	return &Template{catalog: catalog, persistence: p, cache: noopInvalidator{}}
}

// WithCacheInvalidator wires the engine's flow cache into mutation paths.
func (s *Template) WithCacheInvalidator(cache CacheInvalidator) *Template {
	s.cache = cache

	return s
}

// List returns every template in the catalog.
func (s *Template) List(_ context.Context) []*models.Flow {
	return s.catalog.List()
}

// Get returns a template by id.
func (s *Template) Get(_ context.Context, id string) (*models.Flow, error) {
	tmpl := s.catalog.Get(id)
	if tmpl == nil {
		return nil, NewServiceError("Get", CodeTemplateNotFound,
			fmt.Sprintf("template %s not found", id), ErrTemplateNotFound)
	}

	return tmpl, nil
}

// Instantiate clones the template into a new flow owned by the tenant and
// persists it. The new flow's node ids are disjoint from the template's.
func (s *Template) Instantiate(ctx context.Context, templateID, tenantID string, customization template.Customization) (*models.Flow, error) {
	if tenantID == "" {
		return nil, NewServiceError("Instantiate", CodeInvalidRequest, "tenant id is required", ErrTenantRequired)
	}

	tmpl := s.catalog.Get(templateID)
	if tmpl == nil {
		return nil, NewServiceError("Instantiate", CodeTemplateNotFound,
			fmt.Sprintf("template %s not found", templateID), ErrTemplateNotFound)
	}

	instance, err := template.Instantiate(tmpl, tenantID, customization)
	if err != nil {
		return nil, NewServiceError("Instantiate", CodeInvalidRequest, err.Error(), ErrFlowValidationFailed)
	}

	err = s.persistence.FlowRepository().Save(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to persist instantiated flow: %w", err)
	}

	s.cache.Invalidate(tenantID)

	return instance, nil
}
