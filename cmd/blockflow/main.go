// Package main provides the blockflow command line: run and validate workflow
// documents locally and run stored workflows on their schedules.
package main

import (
	"context"
	"os"

	"github.com/dukex/blockflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("cli")

	command := &cli.Command{
		Name:                  "blockflow",
		Usage:                 "Run, validate and schedule workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing block plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			RunCommand(),
			ValidateCommand(),
			ScheduleCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("blockflow failed", "error", err)
		os.Exit(1)
	}
}
