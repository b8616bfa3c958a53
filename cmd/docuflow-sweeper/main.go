// Package main provides the escalation sweeper. It periodically re-evaluates
// the escalation ladders of in-flight instances; the engine itself keeps no
// timers, so this process is what makes deadlines fire.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/docuflow/docuflow/pkg/cmd"
	"github.com/docuflow/docuflow/pkg/engine"
	"github.com/docuflow/docuflow/pkg/log"
)

func main() {
	logger := log.WithModule("sweeper")

	command := &cli.Command{
		Name:                  "docuflow-sweeper",
		Usage:                 "Evaluate escalation deadlines for active workflow instances",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule for escalation sweeps",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
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
				Value:   "kafka",
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

			logger.InfoContext(ctx, "Initializing Docuflow sweeper",
				"schedule", command.String("schedule"))

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

			scheduler := cron.New()

			_, err := scheduler.AddFunc(command.String("schedule"), func() {
				raised, err := eng.SweepEscalations(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Escalation sweep failed", "error", err)

					return
				}

				logger.InfoContext(ctx, "Escalation sweep completed", "raised", raised)
			})
			if err != nil {
				return err
			}

			scheduler.Start()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-stop:
			case <-ctx.Done():
			}

			logger.Info("Stopping sweeper")
			<-scheduler.Stop().Done()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
