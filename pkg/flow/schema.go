package flow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema describes the flow JSON interchange shape. The same shape
// is used for persisted flows, exports, templates, and sync payloads, so a
// synced flow can be re-imported as a template unchanged.
const documentSchema = `{
	"type": "object",
	"required": ["name", "nodes"],
	"properties": {
		"id": {"type": "string"},
		"tenant_id": {"type": "string"},
		"name": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"flow_type": {"type": "string"},
		"start_node_id": {"type": "string"},
		"is_active": {"type": "boolean"},
		"is_default": {"type": "boolean"},
		"is_template": {"type": "boolean"},
		"version": {"type": "integer"},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type", "name"],
				"properties": {
					"id": {"type": "string"},
					"type": {
						"type": "string",
						"enum": ["start", "message", "question", "condition", "action", "integration", "end"]
					},
					"name": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"position": {
						"type": "object",
						"properties": {
							"x": {"type": "integer"},
							"y": {"type": "integer"}
						}
					},
					"configuration": {"type": "object"},
					"connections": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["source_node_id", "target_node_id"],
							"properties": {
								"id": {"type": "string"},
								"source_node_id": {"type": "string"},
								"target_node_id": {"type": "string"},
								"label": {"type": "string"}
							}
						}
					},
					"metadata": {"type": "object"}
				}
			}
		},
		"variables": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string"},
					"description": {"type": "string"},
					"is_required": {"type": "boolean"}
				}
			}
		},
		"metadata": {"type": "object"}
	}
}`

// ValidateDocument checks a raw flow payload against the interchange
// schema before it is decoded into a models.Flow.
func ValidateDocument(payload []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	dataLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate flow document: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("flow document is invalid: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
