package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/blockflow/pkg/cmd"
	"github.com/dukex/blockflow/pkg/config"
	"github.com/dukex/blockflow/pkg/engine"
	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/log"
	"github.com/dukex/blockflow/pkg/registry"
	"github.com/dukex/blockflow/pkg/scheduler"
	"github.com/dukex/blockflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

var errRunFailed = errors.New("workflow run did not succeed")

func engineFlags() []cli.Flag {
	defaults := config.DefaultEngine()

	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "block-timeout",
			Usage:   "Maximum duration of a single block invocation",
			Value:   defaults.BlockTimeout,
			Sources: cli.EnvVars("BLOCK_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    "run-timeout",
			Usage:   "Maximum duration of a whole run (0 disables)",
			Sources: cli.EnvVars("RUN_TIMEOUT"),
		},
		&cli.IntFlag{
			Name:    "max-concurrency",
			Usage:   "Maximum concurrent block invocations (0 is unlimited)",
			Sources: cli.EnvVars("MAX_CONCURRENCY"),
		},
	}
}

func engineConfig(command *cli.Command) (config.Engine, error) {
	cfg := config.DefaultEngine()
	cfg.BlockTimeout = command.Duration("block-timeout")
	cfg.RunTimeout = command.Duration("run-timeout")
	cfg.MaxConcurrency = command.Int("max-concurrency")

	return cfg, config.Validate(cfg)
}

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Execute a workflow document and print its result",
		ArgsUsage: "<workflow.json|->",
		Flags: append(engineFlags(),
			&cli.StringSliceFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Runtime input as KEY=VALUE (JSON values keep their type)",
			},
			&cli.StringSliceFlag{
				Name:    "secret",
				Aliases: []string{"s"},
				Usage:   "Secret as NAME=VALUE",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			return runWorkflow(ctx, command, os.Stdin, os.Stdout)
		},
	}
}

func runWorkflow(ctx context.Context, command *cli.Command, stdin io.Reader, stdout io.Writer) error {
	if command.Args().Len() != 1 {
		return errors.New("expected exactly one workflow document")
	}

	g, err := loadGraph(command.Args().First(), stdin)
	if err != nil {
		return err
	}

	inputs, err := parsePairs(command.StringSlice("input"))
	if err != nil {
		return err
	}

	runSecrets, err := parseSecrets(command.StringSlice("secret"))
	if err != nil {
		return err
	}

	cfg, err := engineConfig(command)
	if err != nil {
		return err
	}

	logger := log.WithModule("run")

	reg, err := cmd.NewRegistry(logger, command.String("plugins-path"), registry.BuiltinOptions{})
	if err != nil {
		return err
	}

	result, runErr := engine.New(logger, cfg.Options()...).Execute(ctx, g, inputs, runSecrets, reg)

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(result); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("%w: %w", errRunFailed, runErr)
	}

	return nil
}

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check a workflow document without running it",
		ArgsUsage: "<workflow.json|->",
		Action: func(_ context.Context, command *cli.Command) error {
			return validateWorkflow(command, os.Stdin, os.Stdout)
		},
	}
}

func validateWorkflow(command *cli.Command, stdin io.Reader, stdout io.Writer) error {
	if command.Args().Len() != 1 {
		return errors.New("expected exactly one workflow document")
	}

	g, err := loadGraph(command.Args().First(), stdin)
	if err != nil {
		return err
	}

	reg, err := cmd.NewRegistry(log.WithModule("validate"), command.String("plugins-path"), registry.BuiltinOptions{})
	if err != nil {
		return err
	}

	validated, err := graph.Validate(g, reg)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout, "valid: %d blocks, %d edges, %d loops\n",
		len(validated.BlockIDs), len(g.Edges), len(validated.LoopIDs))

	return err
}

func ScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:    "schedule",
		Aliases: []string{"s"},
		Usage:   "Run stored workflows on their cron schedule",
		Flags: append(engineFlags(),
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file://, postgres://, redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "secret-key",
				Usage:   "32 byte key (raw or base64) sealing environment variables",
				Sources: cli.EnvVars("BLOCKFLOW_SECRET_KEY"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.DurationFlag{
				Name:    "sync-interval",
				Usage:   "How often stored schedules are reloaded",
				Value:   time.Minute,
				Sources: cli.EnvVars("SCHEDULE_SYNC_INTERVAL"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.WithModule("schedule")

			cfg, err := engineConfig(command)
			if err != nil {
				return err
			}

			reg, err := cmd.NewRegistry(logger, command.String("plugins-path"), registry.BuiltinOptions{})
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"), 0)
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			store, _, err := cmd.NewSecretStore(command.String("secret-key"))
			if err != nil {
				return err
			}

			executions := services.NewExecution(logger, persistence, engine.New(logger, cfg.Options()...), reg, store,
				services.WithPublisher(eventBus))

			logger.InfoContext(ctx, "Starting scheduler")

			return scheduler.New(logger, persistence, executions, services.TriggerSchedule).
				Run(ctx, command.Duration("sync-interval"))
		},
	}
}
