// Package main provides the Stageflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stageflow/stageflow/pkg/audit"
	"github.com/stageflow/stageflow/pkg/cmd"
	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/metrics"
	"github.com/stageflow/stageflow/pkg/notify"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/protocol"
	"github.com/stageflow/stageflow/pkg/registry"
	"github.com/stageflow/stageflow/pkg/services"
	"github.com/stageflow/stageflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	messaging   *cmd.Messaging
	identity    protocol.IdentitySource
	validate    *validator.Validate
	prometheus  *prometheus.Registry
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	messaging *cmd.Messaging,
	identity protocol.IdentitySource,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		messaging:   messaging,
		identity:    identity,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		prometheus:  prometheus.NewRegistry(),
	}
}

func (a *API) App() (*fiber.App, error) {
	recorder := audit.NewRecorder(a.logger, nil,
		audit.NewRepositorySink(a.persistence.AuditRepository()),
		audit.NewLogSink(a.logger),
		audit.NewBusSink(a.messaging.Bus),
	)

	notifier := notify.NewBusNotifier(a.logger, a.messaging.Publisher, nil, notify.RetryPolicy{})

	eng, err := engine.New(a.logger, engine.Config{
		Registry:  a.registry,
		Instances: a.persistence.InstanceRepository(),
		Recorder:  recorder,
		Notifier:  notifier,
		Publisher: a.messaging.Bus,
		Metrics:   metrics.New(a.prometheus),
	})
	if err != nil {
		return nil, err
	}

	workflowService := services.NewWorkflow(eng, a.persistence)
	templateService := services.NewTemplate(a.registry)

	handlers := web.NewAPIHandlers(workflowService, templateService, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stageflow API")
	})

	t := app.Group("/templates")
	t.Get("/", handlers.GetTemplates)
	t.Get("/:id", handlers.GetTemplate)
	t.Get("/:id/warnings", handlers.GetTemplateWarnings)

	contents := app.Group("/contents", web.RequirePrincipal(a.identity))
	contents.Post("/:uid/workflow", handlers.ApplyTemplate)
	contents.Get("/:uid/workflow", handlers.GetWorkflowState)
	contents.Delete("/:uid/workflow", handlers.RemoveTemplate)
	contents.Post("/:uid/workflow/transitions", handlers.ExecuteTransition)

	app.Get("/instances", handlers.GetInstances)
	app.Get("/audit", handlers.GetAuditTrail)

	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.prometheus, promhttp.HandlerOpts{})))

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
