package template

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reservly/flowengine/pkg/models"
)

// Customization carries the tenant-supplied values applied while a
// template is instantiated.
type Customization struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Variables   map[string]any `json:"variables"`
}

// Instantiate clones a template skeleton into a flow owned by the tenant.
// Every node and connection receives a freshly minted id, so instantiating
// the same template twice yields fully disjoint identity sets. Connection
// endpoints in templates reference nodes by name (the template's stable
// human-readable key); they are rewritten through a name-to-id mapping.
//
// An endpoint that matches neither a node name nor a template node id is
// carried over verbatim as a best-effort fallback rather than failing the
// whole instantiation. The resulting dangling reference surfaces as an
// INVALID_CONNECTION_TARGET finding on the next validation.
func Instantiate(tmpl *models.Flow, tenantID string, customization Customization) (*models.Flow, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("template is nil")
	}

	// A customization without a name inherits the template's, with
	// design-time tokens resolved.
	name := customization.Name
	if name == "" {
		name = Substitute(tmpl.Name, customization.Variables)
	}

	now := time.Now().UTC()

	instance := &models.Flow{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        name,
		Description: customization.Description,
		FlowType:    tmpl.FlowType,
		Version:     1,
		Nodes:       make([]*models.FlowNode, 0, len(tmpl.Nodes)),
		Variables:   make([]*models.Variable, 0, len(tmpl.Variables)),
		Metadata:    map[string]any{"template_id": tmpl.ID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if instance.Description == "" {
		instance.Description = Substitute(tmpl.Description, customization.Variables)
	}

	// First pass: mint nodes and build the endpoint mappings.
	nameToID := make(map[string]string, len(tmpl.Nodes))
	idToID := make(map[string]string, len(tmpl.Nodes))

	for _, templateNode := range tmpl.Nodes {
		node := &models.FlowNode{
			ID:            uuid.New().String(),
			FlowID:        instance.ID,
			Type:          templateNode.Type,
			Name:          templateNode.Name,
			Description:   Substitute(templateNode.Description, customization.Variables),
			Position:      templateNode.Position,
			Configuration: SubstituteConfig(templateNode.Configuration, customization.Variables),
			Connections:   make([]*models.Connection, 0, len(templateNode.Connections)),
		}

		nameToID[templateNode.Name] = node.ID
		idToID[templateNode.ID] = node.ID

		if templateNode.Type == models.NodeTypeStart {
			instance.StartNodeID = node.ID
			instance.Metadata["entry_node_id"] = node.ID
		}

		instance.Nodes = append(instance.Nodes, node)
	}

	resolve := func(endpoint string) string {
		if id, ok := nameToID[endpoint]; ok {
			return id
		}

		if id, ok := idToID[endpoint]; ok {
			return id
		}

		return endpoint // lenient fallback, see doc comment
	}

	// Second pass: rewrite connection endpoints through the mapping.
	for i, templateNode := range tmpl.Nodes {
		node := instance.Nodes[i]

		for _, conn := range templateNode.Connections {
			node.Connections = append(node.Connections, &models.Connection{
				ID:           uuid.New().String(),
				SourceNodeID: node.ID,
				TargetNodeID: resolve(conn.TargetNodeID),
				Label:        conn.Label,
			})
		}
	}

	for _, variable := range tmpl.Variables {
		clone := *variable

		if value, ok := customization.Variables[variable.Name]; ok {
			clone.DefaultValue = value
		}

		instance.Variables = append(instance.Variables, &clone)
	}

	return instance, nil
}
