// Package web provides HTTP handlers and REST API endpoints for flow management.
package web

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/reservly/flowengine/pkg/engine"
	"github.com/reservly/flowengine/pkg/gateway"
	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
	"github.com/reservly/flowengine/pkg/services"
	"github.com/reservly/flowengine/pkg/template"
)

// BackendReporter reports which storage backend is currently serving
// traffic. The resilient store implements it.
type BackendReporter interface {
	Backend() string
}

type APIHandlers struct {
	flowService     *services.Flow
	nodeService     *services.Node
	templateService *services.Template
	engine          *engine.Engine
	gateway         gateway.Gateway
	validator       *validator.Validate
	backend         BackendReporter
}

func NewAPIHandlers(
	flowService *services.Flow,
	nodeService *services.Node,
	templateService *services.Template,
	engine *engine.Engine,
	gateway gateway.Gateway,
	validator *validator.Validate,
	backend BackendReporter,
) *APIHandlers {
	return &APIHandlers{
		flowService:     flowService,
		nodeService:     nodeService,
		templateService: templateService,
		engine:          engine,
		gateway:         gateway,
		validator:       validator,
		backend:         backend,
	}
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	req, err := h.parseListFlowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.flowService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, fiber.Map{
		"flows":       result.Flows,
		"total_count": result.TotalCount,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parseListFlowsRequest parses and validates query parameters for listing flows.
func (h *APIHandlers) parseListFlowsRequest(c fiber.Ctx) (*services.ListFlowsRequest, error) {
	req := &services.ListFlowsRequest{TenantID: c.Params("tenantId")}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if flowTypeStr := c.Query("flow_type"); flowTypeStr != "" {
		flowType := models.FlowType(flowTypeStr)
		req.FlowType = &flowType
	}

	if isActiveStr := c.Query("is_active"); isActiveStr != "" {
		isActive, err := strconv.ParseBool(isActiveStr)
		if err != nil {
			return nil, err
		}

		req.IsActive = &isActive
	}

	if isTemplateStr := c.Query("is_template"); isTemplateStr != "" {
		isTemplate, err := strconv.ParseBool(isTemplateStr)
		if err != nil {
			return nil, err
		}

		req.IsTemplate = &isTemplate
	}

	return req, nil
}

// requireTenantFlow loads a flow and verifies the path tenant owns it.
// Cross-tenant flow ids behave exactly like missing ones.
func (h *APIHandlers) requireTenantFlow(c fiber.Ctx) (*models.Flow, error) {
	id := c.Params("id")
	if id == "" {
		return nil, services.ErrFlowNotFound
	}

	f, err := h.flowService.GetByID(c.Context(), id)
	if err != nil {
		return nil, err
	}

	if f.TenantID != c.Params("tenantId") {
		return nil, services.ErrFlowNotFound
	}

	return f, nil
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	f, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, f)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	f := &models.Flow{
		TenantID:    c.Params("tenantId"),
		Name:        req.Name,
		Description: req.Description,
		FlowType:    models.FlowType(req.FlowType),
		Nodes:       req.Nodes,
		Variables:   req.Variables,
		Metadata:    req.Metadata,
	}

	result, err := h.flowService.Create(c.Context(), f)
	if err != nil {
		if result != nil && result.Validation != nil {
			return failWithDetails(c, fiber.StatusBadRequest,
				services.CodeFlowValidationFailed, "flow has validation errors", result.Validation)
		}

		return handleServiceError(c, err)
	}

	return created(c, result)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	validateOnly, _ := strconv.ParseBool(c.Query("validate_only"))

	result, err := h.flowService.Update(c.Context(), existing.ID, services.UpdateFlowRequest{
		Name:         req.Name,
		Description:  req.Description,
		Nodes:        req.Nodes,
		Variables:    req.Variables,
		Metadata:     req.Metadata,
		ValidateOnly: validateOnly,
	})
	if err != nil {
		if result != nil && result.Validation != nil {
			return failWithDetails(c, fiber.StatusBadRequest,
				services.CodeFlowValidationFailed, "flow has validation errors", result.Validation)
		}

		return handleServiceError(c, err)
	}

	return ok(c, result)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	err = h.flowService.Delete(c.Context(), existing.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	result, err := h.flowService.Validate(c.Context(), existing.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, result)
}

func (h *APIHandlers) ActivateFlow(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	err = h.flowService.Activate(c.Context(), existing.TenantID, existing.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, fiber.Map{"id": existing.ID, "is_active": true})
}

func (h *APIHandlers) DeactivateFlows(c fiber.Ctx) error {
	tenantID := c.Params("tenantId")

	err := h.flowService.Deactivate(c.Context(), tenantID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, fiber.Map{"tenant_id": tenantID, "is_active": false})
}

func (h *APIHandlers) ToggleFlow(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	active, err := h.flowService.Toggle(c.Context(), existing.TenantID, existing.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, fiber.Map{"id": existing.ID, "is_active": active})
}

func (h *APIHandlers) ImportFlow(c fiber.Ctx) error {
	result, err := h.flowService.Import(c.Context(), c.Params("tenantId"), c.Body())
	if err != nil {
		if result != nil && result.Validation != nil {
			return failWithDetails(c, fiber.StatusBadRequest,
				services.CodeFlowValidationFailed, "flow has validation errors", result.Validation)
		}

		return handleServiceError(c, err)
	}

	return created(c, result)
}

func (h *APIHandlers) ExportFlow(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	payload, err := h.flowService.Export(c.Context(), existing.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(payload)
}

func (h *APIHandlers) CreateFlowNode(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req CreateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.CreateNode(c.Context(), existing.ID, &services.CreateNodeRequest{
		Type:          models.NodeType(req.Type),
		Name:          req.Name,
		Description:   req.Description,
		Position:      req.Position,
		Configuration: req.Configuration,
		Connections:   req.Connections,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return created(c, node)
}

func (h *APIHandlers) GetFlowNode(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	node, err := h.nodeService.GetNode(c.Context(), existing.ID, c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, node)
}

func (h *APIHandlers) UpdateFlowNode(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.UpdateNode(c.Context(), existing.ID, c.Params("nodeId"), &services.UpdateNodeRequest{
		Name:          req.Name,
		Description:   req.Description,
		Position:      req.Position,
		Configuration: req.Configuration,
		Connections:   req.Connections,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, node)
}

func (h *APIHandlers) DeleteFlowNode(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	err = h.nodeService.DeleteNode(c.Context(), existing.ID, c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	return ok(c, h.templateService.List(c.Context()))
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	tmpl, err := h.templateService.Get(c.Context(), c.Params("templateId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return ok(c, tmpl)
}

func (h *APIHandlers) InstantiateTemplate(c fiber.Ctx) error {
	var req InstantiateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	instance, err := h.templateService.Instantiate(
		c.Context(), c.Params("templateId"), c.Params("tenantId"),
		template.Customization{
			Name:        req.Name,
			Description: req.Description,
			Variables:   req.Variables,
		})
	if err != nil {
		return handleServiceError(c, err)
	}

	return created(c, instance)
}

func (h *APIHandlers) TestDriveFlow(c fiber.Ctx) error {
	existing, err := h.requireTenantFlow(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req TestDriveRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	replies, err := h.engine.TestDrive(c.Context(), existing.TenantID, existing.ID, req.Inputs)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return notFound(c, services.CodeFlowNotFound, "flow not found")
		}

		return internalError(c)
	}

	return ok(c, fiber.Map{"replies": replies})
}

func (h *APIHandlers) GetConversationHistory(c fiber.Ctx) error {
	messages, err := h.engine.History(c.Context(), c.Params("tenantId"), c.Params("phone"))
	if err != nil {
		if persistence.IsConversationNotFound(err) {
			return notFound(c, "CONVERSATION_NOT_FOUND", "conversation not found")
		}

		return internalError(c)
	}

	return ok(c, fiber.Map{
		"messages":      messages,
		"message_count": len(messages),
	})
}

// Webhook receives an inbound customer message, runs it through the
// conversation engine, and returns the reply. This surface is called by
// channel infrastructure, so errors render as problem documents.
func (h *APIHandlers) Webhook(c fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	if tenantID == "" {
		return webhookProblem(c, fiber.StatusBadRequest, "validation_error", "tenant id is required")
	}

	var req WebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return webhookProblem(c, fiber.StatusBadRequest, "validation_error", "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return webhookProblem(c, fiber.StatusBadRequest, "validation_error", err.Error())
	}

	reply, err := h.engine.HandleMessage(c.Context(), tenantID, req.From, req.Text)
	if err != nil {
		return webhookProblem(c, fiber.StatusInternalServerError, "internal_error", "failed to handle message")
	}

	// Delivery is fire-and-forget. A gateway refusal does not fail the
	// webhook since the conversation state is already committed.
	delivered, _ := h.gateway.SendMessage(c.Context(), req.From, reply)

	return c.JSON(fiber.Map{"reply": reply, "delivered": delivered})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := fiber.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = fiber.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"storage_backend": h.backend.Backend(),
		"timestamp":       time.Now().UTC(),
	})
}
