package main

import (
	"context"
	"os"

	"github.com/reservly/flowengine/pkg/cmd"
	"github.com/reservly/flowengine/pkg/log"
	"github.com/reservly/flowengine/pkg/template"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowengine-api",
		Usage:                 "Create and manage booking conversation flows",
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
				Usage:   "Storage backend URL (postgres://, redis://, empty for in-memory)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "templates-dir",
				Usage:   "Directory of extra flow template documents to load at startup",
				Sources: cli.EnvVars("TEMPLATES_DIR"),
			},
			&cli.StringFlag{
				Name:    "payee-id",
				Usage:   "Payee identifier used when building payment links",
				Value:   "default",
				Sources: cli.EnvVars("PAYEE_ID"),
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

			logger.InfoContext(ctx, "Initializing flowengine API")

			store := cmd.NewResilientPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			catalog := template.NewCatalog()

			if dir := command.String("templates-dir"); dir != "" {
				err := catalog.LoadDir(dir)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to load template directory", "dir", dir, "error", err)
				}
			}

			api := NewAPI(
				logger,
				store,
				catalog,
				command.String("payee-id"),
			)

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
