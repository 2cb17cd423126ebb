package flow_test

import (
	"testing"

	"github.com/reservly/flowengine/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocumentAcceptsInterchangeShape(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"name": "booking",
		"flow_type": "booking",
		"nodes": [
			{
				"id": "start",
				"type": "start",
				"name": "start",
				"connections": [
					{"id": "start->welcome", "source_node_id": "start", "target_node_id": "welcome"}
				]
			},
			{
				"id": "welcome",
				"type": "message",
				"name": "welcome",
				"configuration": {"message_text": "hello"}
			}
		]
	}`)

	require.NoError(t, flow.ValidateDocument(payload))
}

func TestValidateDocumentRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	assert.Error(t, flow.ValidateDocument([]byte(`not json`)))
	assert.Error(t, flow.ValidateDocument([]byte(`{"nodes": "nope"}`)), "nodes must be an array")
	assert.Error(t, flow.ValidateDocument([]byte(`{"name": "xyz", "nodes": [{"type": "message"}]}`)),
		"nodes require a name")
	assert.Error(t, flow.ValidateDocument([]byte(`{"name": "ab", "nodes": []}`)),
		"flow names have a minimum length")
}
