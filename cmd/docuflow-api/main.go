package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/docuflow/docuflow/pkg/cmd"
	"github.com/docuflow/docuflow/pkg/engine"
	"github.com/docuflow/docuflow/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "docuflow-api",
		Usage:                 "Create and manage document workflows",
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
				Name:    "database-url",
				Usage:   "Database connection URL for persistence (memory:// or redis://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "rules-service-url",
				Usage:   "Base URL of the rule-evaluation service",
				Value:   "http://localhost:9095",
				Sources: cli.EnvVars("RULES_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "script-service-url",
				Usage:   "Base URL of the sandboxed script runner",
				Value:   "http://localhost:9096",
				Sources: cli.EnvVars("SCRIPT_SERVICE_URL"),
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

			logger.InfoContext(ctx, "Initializing Docuflow API")

			registry := cmd.NewRegistry(
				logger,
				command.String("rules-service-url"),
				command.String("script-service-url"),
			)
			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			eng := engine.NewEngine(logger, persistence, registry, eventBus)

			api := NewAPI(logger, persistence, registry, eng)

			err := api.Start(command.Int("port"))
			if err != nil {
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
