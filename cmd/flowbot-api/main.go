package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowbot-io/flowbot/pkg/cmd"
	"github.com/flowbot-io/flowbot/pkg/log"
	"github.com/flowbot-io/flowbot/pkg/tracer"
	"github.com/flowbot-io/flowbot/pkg/workflow"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowbot-api",
		Usage:                 "Create chatbot workflows and drive their executions",
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
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for distributed execution locking, in-process locking when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "integration-timeout",
				Usage:   "Timeout for outbound integration calls",
				Value:   workflow.DefaultIntegrationTimeout,
				Sources: cli.EnvVars("INTEGRATION_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "waiting-ttl",
				Usage:   "How long an execution may wait for user input before expiring",
				Value:   workflow.DefaultWaitingTTL,
				Sources: cli.EnvVars("WAITING_TTL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowbot API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			locker, err := cmd.NewLocker(ctx, logger, command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := locker.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close locker", "error", err)
				}
			}()

			trc := tracer.NewNoopTracer()
			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				trc, err = tracer.NewTracer(ctx, "flowbot-api")
				if err != nil {
					return err
				}
			}

			janitor := workflow.NewJanitor(
				logger,
				persistence.ExecutionRepository(),
				eventBus,
				command.Duration("waiting-ttl"),
			)
			if err := janitor.Start(ctx); err != nil {
				return err
			}
			defer janitor.Stop()

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				locker,
				trc,
				command.Duration("integration-timeout"),
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
