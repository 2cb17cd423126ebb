// Package main provides the flowengine API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/reservly/flowengine/pkg/engine"
	"github.com/reservly/flowengine/pkg/gateway"
	"github.com/reservly/flowengine/pkg/resilient"
	"github.com/reservly/flowengine/pkg/services"
	"github.com/reservly/flowengine/pkg/template"
	"github.com/reservly/flowengine/pkg/web"
)

type API struct {
	logger   *slog.Logger
	store    *resilient.Store
	catalog  *template.Catalog
	payeeID  string
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, store *resilient.Store, catalog *template.Catalog, payeeID string) *API {
	return &API{
		logger:   logger,
		store:    store,
		catalog:  catalog,
		payeeID:  payeeID,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	flowCache := engine.NewFlowCache(a.store)
	conversationEngine := engine.NewEngine(a.store, flowCache, a.logger, engine.WithPayee(a.payeeID))

	flowService := services.NewFlow(a.store).WithCacheInvalidator(flowCache)
	nodeService := services.NewNode(a.store).WithCacheInvalidator(flowCache)
	templateService := services.NewTemplate(a.catalog, a.store).WithCacheInvalidator(flowCache)

	messageGateway := gateway.NewLogGateway(a.logger)

	handlers := web.NewAPIHandlers(flowService, nodeService, templateService, conversationEngine, messageGateway, a.validate, a.store)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowengine API")
	})

	tenants := app.Group("/tenants/:tenantId")

	flows := tenants.Group("/flows")
	flows.Get("/", handlers.GetFlows)
	flows.Post("/", handlers.CreateFlow)
	flows.Post("/import", handlers.ImportFlow)
	flows.Delete("/active", handlers.DeactivateFlows)
	flows.Get("/:id", handlers.GetFlow)
	flows.Patch("/:id", handlers.UpdateFlow)
	flows.Delete("/:id", handlers.DeleteFlow)
	flows.Post("/:id/validate", handlers.ValidateFlow)
	flows.Post("/:id/activate", handlers.ActivateFlow)
	flows.Post("/:id/toggle", handlers.ToggleFlow)
	flows.Get("/:id/export", handlers.ExportFlow)
	flows.Post("/:id/test-drive", handlers.TestDriveFlow)

	// Node endpoints:
	flows.Post("/:id/nodes", handlers.CreateFlowNode)
	flows.Get("/:id/nodes/:nodeId", handlers.GetFlowNode)
	flows.Patch("/:id/nodes/:nodeId", handlers.UpdateFlowNode)
	flows.Delete("/:id/nodes/:nodeId", handlers.DeleteFlowNode)

	templates := tenants.Group("/templates")
	templates.Get("/", handlers.GetTemplates)
	templates.Get("/:templateId", handlers.GetTemplate)
	templates.Post("/:templateId/instantiate", handlers.InstantiateTemplate)

	tenants.Get("/conversations/:phone/messages", handlers.GetConversationHistory)

	app.Post("/webhook/:tenantId", handlers.Webhook)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
