package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/reservly/flowengine/pkg/engine"
	"github.com/reservly/flowengine/pkg/gateway"
	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence/memory"
	"github.com/reservly/flowengine/pkg/resilient"
	"github.com/reservly/flowengine/pkg/services"
	"github.com/reservly/flowengine/pkg/template"
	"github.com/reservly/flowengine/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := resilient.NewStore(memory.NewPersistence(), memory.NewPersistence(), slog.Default())
	flowCache := engine.NewFlowCache(store)
	conversationEngine := engine.NewEngine(store, flowCache, slog.Default())

	flowService := services.NewFlow(store).WithCacheInvalidator(flowCache)
	nodeService := services.NewNode(store).WithCacheInvalidator(flowCache)
	templateService := services.NewTemplate(template.NewCatalog(), store).WithCacheInvalidator(flowCache)

	handlers := web.NewAPIHandlers(flowService, nodeService, templateService, conversationEngine,
		gateway.NewLogGateway(slog.Default()), validator.New(validator.WithRequiredStructEnabled()), store)

	app := fiber.New()

	tenants := app.Group("/tenants/:tenantId")
	flows := tenants.Group("/flows")
	flows.Get("/", handlers.GetFlows)
	flows.Post("/", handlers.CreateFlow)
	flows.Post("/import", handlers.ImportFlow)
	flows.Get("/:id", handlers.GetFlow)
	flows.Patch("/:id", handlers.UpdateFlow)
	flows.Delete("/:id", handlers.DeleteFlow)
	flows.Post("/:id/validate", handlers.ValidateFlow)
	flows.Post("/:id/activate", handlers.ActivateFlow)
	flows.Get("/:id/export", handlers.ExportFlow)
	flows.Post("/:id/test-drive", handlers.TestDriveFlow)
	flows.Post("/:id/nodes", handlers.CreateFlowNode)

	templates := tenants.Group("/templates")
	templates.Get("/", handlers.GetTemplates)
	templates.Post("/:templateId/instantiate", handlers.InstantiateTemplate)

	app.Post("/webhook/:tenantId", handlers.Webhook)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func decodeEnvelope(t *testing.T, raw []byte) web.Envelope {
	t.Helper()

	var envelope web.Envelope
	require.NoError(t, json.Unmarshal(raw, &envelope))

	return envelope
}

func validCreateRequest(name string) web.CreateFlowRequest {
	return web.CreateFlowRequest{
		Name: name,
		Nodes: []*models.FlowNode{
			{
				ID:   "start",
				Type: models.NodeTypeStart,
				Name: "start",
				Connections: []*models.Connection{
					{ID: "start->welcome", SourceNodeID: "start", TargetNodeID: "welcome"},
				},
			},
			{
				ID:            "welcome",
				Type:          models.NodeTypeMessage,
				Name:          "welcome",
				Configuration: map[string]any{"message_text": "hello"},
			},
		},
	}
}

func createFlow(t *testing.T, app *fiber.App, tenantID, name string) string {
	t.Helper()

	resp, raw := doJSON(t, app, http.MethodPost, "/tenants/"+tenantID+"/flows/", validCreateRequest(name))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	envelope := decodeEnvelope(t, raw)
	data, _ := envelope.Data.(map[string]any)
	flowData, _ := data["flow"].(map[string]any)
	id, _ := flowData["id"].(string)
	require.NotEmpty(t, id)

	return id
}

func TestCreateFlowEndpoint(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, raw := doJSON(t, app, http.MethodPost, "/tenants/tenant-1/flows/", validCreateRequest("booking bot"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	envelope := decodeEnvelope(t, raw)
	assert.True(t, envelope.Success)
	assert.Nil(t, envelope.Error)
}

func TestCreateFlowRejectsShortName(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, raw := doJSON(t, app, http.MethodPost, "/tenants/tenant-1/flows/", web.CreateFlowRequest{Name: "ab"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	envelope := decodeEnvelope(t, raw)
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
}

func TestCreateFlowReportsValidationFindings(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	broken := validCreateRequest("broken bot")
	broken.Nodes[1].Configuration = map[string]any{}

	resp, raw := doJSON(t, app, http.MethodPost, "/tenants/tenant-1/flows/", broken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	envelope := decodeEnvelope(t, raw)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, services.CodeFlowValidationFailed, envelope.Error.Code)
	assert.NotNil(t, envelope.Error.Details, "findings ride along for the editor UI")
}

func TestGetFlowIsTenantScoped(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	id := createFlow(t, app, "tenant-1", "booking bot")

	resp, _ := doJSON(t, app, http.MethodGet, "/tenants/tenant-1/flows/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Another tenant cannot see it, and the response is indistinguishable
	// from a missing flow.
	resp, raw := doJSON(t, app, http.MethodGet, "/tenants/tenant-2/flows/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	envelope := decodeEnvelope(t, raw)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, services.CodeFlowNotFound, envelope.Error.Code)
}

func TestUpdateFlowValidateOnly(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	id := createFlow(t, app, "tenant-1", "booking bot")

	name := "renamed bot"
	resp, raw := doJSON(t, app, http.MethodPatch,
		"/tenants/tenant-1/flows/"+id+"?validate_only=true", web.UpdateFlowRequest{Name: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	// The stored flow is untouched.
	_, raw = doJSON(t, app, http.MethodGet, "/tenants/tenant-1/flows/"+id, nil)
	envelope := decodeEnvelope(t, raw)
	data, _ := envelope.Data.(map[string]any)
	assert.Equal(t, "booking bot", data["name"])
}

func TestDeleteFlowEndpoint(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	id := createFlow(t, app, "tenant-1", "booking bot")

	resp, _ := doJSON(t, app, http.MethodDelete, "/tenants/tenant-1/flows/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/tenants/tenant-1/flows/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportImportEndpoints(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	id := createFlow(t, app, "tenant-1", "booking bot")

	resp, raw := doJSON(t, app, http.MethodGet, "/tenants/tenant-1/flows/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var document map[string]any
	require.NoError(t, json.Unmarshal(raw, &document))
	assert.Equal(t, "booking bot", document["name"])

	req := httptest.NewRequest(http.MethodPost, "/tenants/tenant-1/flows/import", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	importResp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, importResp.StatusCode)
}

func TestTemplateEndpoints(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, raw := doJSON(t, app, http.MethodGet, "/tenants/tenant-1/templates/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, raw)
	templates, _ := envelope.Data.([]any)
	assert.GreaterOrEqual(t, len(templates), 2)

	resp, raw = doJSON(t, app, http.MethodPost, "/tenants/tenant-1/templates/restaurant-booking/instantiate",
		web.InstantiateTemplateRequest{
			Variables: map[string]any{"restaurantName": "Mario's", "payeeId": "mario"},
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	envelope = decodeEnvelope(t, raw)
	data, _ := envelope.Data.(map[string]any)
	assert.Equal(t, "tenant-1", data["tenant_id"])

	resp, raw = doJSON(t, app, http.MethodPost, "/tenants/tenant-1/templates/no-such/instantiate",
		web.InstantiateTemplateRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	envelope = decodeEnvelope(t, raw)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, services.CodeTemplateNotFound, envelope.Error.Code)
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, raw := doJSON(t, app, http.MethodPost, "/webhook/tenant-1",
		web.WebhookRequest{From: "+15550001", Text: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	reply, _ := body["reply"].(string)
	assert.Contains(t, reply, "Welcome")
	assert.Equal(t, true, body["delivered"], "log gateway accepts delivery")

	// Missing fields render as a problem document.
	resp, raw = doJSON(t, app, http.MethodPost, "/webhook/tenant-1", map[string]any{"from": "+15550001"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(raw, &problem))
	assert.Equal(t, "validation_error", problem["type"])
}

func TestTestDriveEndpoint(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	id := createFlow(t, app, "tenant-1", "booking bot")

	resp, raw := doJSON(t, app, http.MethodPost, "/tenants/tenant-1/flows/"+id+"/test-drive",
		web.TestDriveRequest{Inputs: []string{"hi", "1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	envelope := decodeEnvelope(t, raw)
	data, _ := envelope.Data.(map[string]any)
	replies, _ := data["replies"].([]any)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "hello", "the tenant's own welcome node is used")
}

func TestHealthEndpointReportsBackend(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, raw := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "durable", body["storage_backend"])
}
