// Package main provides the Blockflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/blockflow/pkg/metrics"
	"github.com/dukex/blockflow/pkg/registry"
	"github.com/dukex/blockflow/pkg/services"
	"github.com/dukex/blockflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger       *slog.Logger
	workflows    *services.Workflow
	executions   *services.Execution
	environments *services.Environment
	registry     *registry.Registry
	metrics      *metrics.Metrics
	validate     *validator.Validate

	app *fiber.App
}

func NewAPI(
	logger *slog.Logger,
	workflows *services.Workflow,
	executions *services.Execution,
	environments *services.Environment,
	registry *registry.Registry,
	metrics *metrics.Metrics,
) *API {
	return &API{
		logger:       logger,
		workflows:    workflows,
		executions:   executions,
		environments: environments,
		registry:     registry,
		metrics:      metrics,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workflows, a.executions, a.environments, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Blockflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/execute", handlers.ExecuteWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	app.Get("/executions/:id", handlers.GetExecution)

	e := app.Group("/environments")
	e.Get("/:userId", handlers.GetEnvironment)
	e.Put("/:userId", handlers.SaveEnvironment)

	app.Get("/blocks", handlers.GetBlocks)
	app.Get("/health", handlers.HealthCheck)

	if a.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))
	}

	return app
}

// Start serves on port until ctx is done, then shuts down gracefully.
func (a *API) Start(ctx context.Context, port int) error {
	a.app = a.App()

	errs := make(chan error, 1)

	go func() {
		errs <- a.app.Listen(":" + strconv.Itoa(port))
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		a.logger.Info("Shutting down Blockflow API")

		return a.app.ShutdownWithContext(context.WithoutCancel(ctx))
	}
}
