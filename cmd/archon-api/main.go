package main

import (
	"context"
	"os"

	"github.com/archonhq/archon/pkg/cmd"
	"github.com/archonhq/archon/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9191

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "archon-api",
		Usage:                 "Run the Archon workflow and feature execution API",
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
				Usage:    "Database connection URL for persistence (postgres:// or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for shared node locks; empty uses in-process locks",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "catalog-path",
				Usage:   "Directory holding feature and workflow definition JSON files",
				Value:   "./catalog",
				Sources: cli.EnvVars("CATALOG_PATH"),
			},
			&cli.StringFlag{
				Name:    "groups-file",
				Usage:   "JSON file mapping user emails to extra group memberships",
				Sources: cli.EnvVars("GROUPS_FILE"),
			},
			&cli.StringFlag{
				Name:     "plugins-path",
				Usage:    "Path to the directory containing feature plugins",
				Value:    "./plugins",
				Required: false,
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

			logger.InfoContext(ctx, "Initializing Archon API")

			registry := cmd.NewRegistry(logger, command.String("plugins-path"))
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

			repository, err := cmd.LoadFeatures(ctx, command.String("catalog-path"))
			if err != nil {
				return err
			}

			definitions, err := cmd.LoadDefinitions(command.String("catalog-path"))
			if err != nil {
				return err
			}

			authorizer, err := cmd.NewAuthorizer(command.String("groups-file"))
			if err != nil {
				return err
			}

			api := NewAPI(
				logger,
				persistence,
				registry,
				eventBus,
				repository,
				definitions,
				authorizer,
				cmd.NewLockStore(command.String("redis-url")),
			)

			return api.Start(ctx, command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
