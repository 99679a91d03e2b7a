// Package main provides the Archon API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/archonhq/archon/pkg/auth"
	"github.com/archonhq/archon/pkg/cmd"
	"github.com/archonhq/archon/pkg/eventbus"
	"github.com/archonhq/archon/pkg/features"
	"github.com/archonhq/archon/pkg/locks"
	"github.com/archonhq/archon/pkg/nodes"
	"github.com/archonhq/archon/pkg/otelhelper"
	"github.com/archonhq/archon/pkg/persistence"
	"github.com/archonhq/archon/pkg/registry"
	"github.com/archonhq/archon/pkg/scheduler"
	"github.com/archonhq/archon/pkg/web"
	"github.com/archonhq/archon/pkg/workflows"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	repository  features.Repository
	definitions workflows.DefinitionSource
	authorizer  auth.Authorizer
	lockStore   locks.Store
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	repository features.Repository,
	definitions workflows.DefinitionSource,
	authorizer auth.Authorizer,
	lockStore locks.Store,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		repository:  repository,
		definitions: definitions,
		authorizer:  authorizer,
		lockStore:   lockStore,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, *scheduler.Scheduler) {
	nodeService := nodes.NewMemoryService(a.lockStore)

	featuresEngine := features.NewEngine(features.Config{
		Logger:     a.logger,
		Repository: a.repository,
		Registry:   a.registry,
		Nodes:      nodeService,
		Authorizer: a.authorizer,
		EventBus:   a.eventBus,
	})

	workflowEngine := workflows.NewEngine(workflows.Config{
		Logger:      a.logger,
		Instances:   a.persistence.InstanceRepository(),
		Definitions: a.definitions,
		Features:    featuresEngine,
		Nodes:       nodeService,
		Authorizer:  a.authorizer,
		Audit:       cmd.NewAuditStore(a.persistence),
		EventBus:    a.eventBus,
	})

	handlers := web.NewAPIHandlers(workflowEngine, featuresEngine, a.repository, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Archon API")
	})

	w := app.Group("/workflows/instances")
	w.Post("/", handlers.StartWorkflow)
	w.Get("/", handlers.FindActiveInstances)
	w.Get("/:id", handlers.GetInstance)
	w.Post("/:id/transitions", handlers.Transition)
	w.Post("/:id/cancel", handlers.CancelWorkflow)
	w.Delete("/:id", handlers.DeleteInstance)
	w.Get("/:id/audit", handlers.GetAuditTrail)
	w.Patch("/:id/nodes/:nodeId", handlers.UpdateGovernedNode)

	f := app.Group("/features")
	f.Get("/", handlers.ListFeatures)
	f.Post("/:id/run", handlers.RunAction)
	f.Post("/:id/ai-tool", handlers.RunAITool)

	app.Post("/extensions/:id", handlers.RunExtension)

	app.Get("/health", handlers.HealthCheck)

	return app, scheduler.NewScheduler(a.logger, a.repository, featuresEngine)
}

func (a *API) Start(ctx context.Context, port int) error {
	if _, err := otelhelper.NewTracer(ctx, "archon-api"); err != nil {
		a.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	app, sched := a.App()

	if _, err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	return app.Listen(":" + strconv.Itoa(port))
}
