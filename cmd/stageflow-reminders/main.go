// Package main provides the Stageflow reminder sweep daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/stageflow/stageflow/pkg/cmd"
	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/log"
	"github.com/stageflow/stageflow/pkg/notify"
	"github.com/stageflow/stageflow/pkg/protocol"
	"github.com/stageflow/stageflow/pkg/reminders"
)

const stopTimeout = 30 * time.Second

func main() {
	app := &cli.Command{
		Name:                  "stageflow-reminders",
		Usage:                 "Remind users about content parked in a workflow state",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (memory://, file://, postgres://, redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Required: true,
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka); reminders are only logged when empty",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression controlling when sweeps run",
				Value:   "0 9 * * *",
				Sources: cli.EnvVars("REMINDER_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "max-idle",
				Usage:   "How long content may sit in a non-final state before a reminder",
				Value:   72 * time.Hour,
				Sources: cli.EnvVars("REMINDER_MAX_IDLE"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Instances fetched per sweep page",
				Value:   reminders.DefaultBatchSize,
				Sources: cli.EnvVars("REMINDER_BATCH_SIZE"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep and exit instead of scheduling",
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

			logger := log.WithModule("reminders")
			logger.InfoContext(ctx, "Initializing Stageflow reminder sweeper")

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

			var (
				notifier  protocol.Notifier
				publisher eventbus.EventPublisher
			)

			if provider := command.String("event-bus"); provider != "" {
				messaging, err := cmd.NewMessaging(provider, logger)
				if err != nil {
					return err
				}

				defer func() {
					if err := messaging.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()

				notifier = notify.NewBusNotifier(logger, messaging.Publisher, nil, notify.RetryPolicy{})
				publisher = messaging.Bus
			} else {
				notifier = notify.NewLogNotifier(logger)
			}

			sweeper, err := reminders.New(logger, reminders.Config{
				Schedule:  command.String("schedule"),
				MaxIdle:   command.Duration("max-idle"),
				BatchSize: command.Int("batch-size"),
				Registry:  registry,
				Instances: persistence.InstanceRepository(),
				Notifier:  notifier,
				Publisher: publisher,
			})
			if err != nil {
				return err
			}

			if command.Bool("once") {
				report, err := sweeper.Sweep(ctx)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Reminder sweep finished",
					"scanned", report.Scanned,
					"reminded", report.Reminded,
					"skipped", report.Skipped,
					"failed", report.Failed)

				return nil
			}

			if err := sweeper.Start(ctx); err != nil {
				return err
			}

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

			sig := <-signals
			logger.InfoContext(ctx, "Received signal, shutting down", "signal", sig)

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()

			return sweeper.Stop(stopCtx)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
