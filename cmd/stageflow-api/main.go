package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/stageflow/stageflow/pkg/cmd"
	"github.com/stageflow/stageflow/pkg/identity"
	"github.com/stageflow/stageflow/pkg/log"
)

const defaultPort = 9091

func main() {
	app := &cli.Command{
		Name:                  "stageflow-api",
		Usage:                 "Serve the content workflow HTTP API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (memory://, file://, postgres://, redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Required: true,
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
			},
			&cli.StringFlag{
				Name:     "jwt-secret",
				Usage:    "HMAC secret for bearer token verification",
				Required: true,
				Sources:  cli.EnvVars("JWT_SECRET"),
			},
			&cli.StringFlag{
				Name:    "jwt-issuer",
				Usage:   "Expected token issuer (unchecked when empty)",
				Sources: cli.EnvVars("JWT_ISSUER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Stageflow API")

			registry, err := cmd.NewRegistry(logger, command.String("templates-path"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to initialize persistence: %w", err)
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			messaging, err := cmd.NewMessaging(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := messaging.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			source := identity.NewJWTSource(
				[]byte(command.String("jwt-secret")),
				command.String("jwt-issuer"),
				nil,
			)

			api := NewAPI(
				logger,
				persistence,
				registry,
				messaging,
				source,
			)

			if err := api.Start(command.Int("port")); err != nil {
				return fmt.Errorf("failed to start API server: %w", err)
			}

			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
