// Package main provides the Flowbot API server implementation.
package main

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowbot-io/flowbot/pkg/eventbus"
	"github.com/flowbot-io/flowbot/pkg/expression"
	"github.com/flowbot-io/flowbot/pkg/lock"
	"github.com/flowbot-io/flowbot/pkg/persistence"
	"github.com/flowbot-io/flowbot/pkg/services"
	"github.com/flowbot-io/flowbot/pkg/web"
	"github.com/flowbot-io/flowbot/pkg/workflow"
)

type API struct {
	logger             *slog.Logger
	persistence        persistence.Persistence
	eventBus           eventbus.EventBus
	locker             lock.ExecutionLocker
	tracer             trace.Tracer
	integrationTimeout time.Duration
	validate           *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	locker lock.ExecutionLocker,
	tracer trace.Tracer,
	integrationTimeout time.Duration,
) *API {
	return &API{
		logger:             logger,
		persistence:        persistence,
		eventBus:           eventBus,
		locker:             locker,
		tracer:             tracer,
		integrationTimeout: integrationTimeout,
		validate:           validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) Engine() *workflow.Engine {
	return workflow.NewEngine(workflow.Dependencies{
		Workflows:    a.persistence.WorkflowRepository(),
		Executions:   a.persistence.ExecutionRepository(),
		Locker:       a.locker,
		Publisher:    a.eventBus,
		Actions:      workflow.NewActionExecutor(a.logger, expression.NewEngine()),
		Integrations: workflow.NewIntegrationInvoker(a.logger, http.DefaultClient, a.integrationTimeout),
		Contexts:     workflow.NewContextUpdater(a.logger),
		Tracer:       a.tracer,
		Logger:       a.logger,
	})
}

func (a *API) App() *fiber.App {
	engine := a.Engine()
	workflowService := services.NewWorkflow(a.persistence, a.validate, a.logger)
	executionService := services.NewExecution(engine, a.persistence, a.logger)

	handlers := web.NewAPIHandlers(workflowService, executionService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowbot API")
	})

	w := app.Group("/chatbots/:chatbotId/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	// Execution endpoints:
	w.Post("/:id/executions", handlers.StartExecution)
	w.Get("/:id/executions", handlers.GetExecutions)
	w.Get("/:id/analytics", handlers.GetAnalytics)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/input", handlers.SubmitInput)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
