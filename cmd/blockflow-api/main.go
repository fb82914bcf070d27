package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/blockflow/pkg/cmd"
	"github.com/dukex/blockflow/pkg/config"
	"github.com/dukex/blockflow/pkg/engine"
	"github.com/dukex/blockflow/pkg/log"
	"github.com/dukex/blockflow/pkg/metrics"
	"github.com/dukex/blockflow/pkg/otelhelper"
	"github.com/dukex/blockflow/pkg/registry"
	"github.com/dukex/blockflow/pkg/scheduler"
	"github.com/dukex/blockflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "blockflow-api",
		Usage:                 "Serve and execute workflows over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file; flags override its values",
				Sources: cli.EnvVars("BLOCKFLOW_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (file://, postgres://, redis://)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "secret-key",
				Usage:   "32 byte key (raw or base64) sealing environment variables",
				Sources: cli.EnvVars("BLOCKFLOW_SECRET_KEY"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing block plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.DurationFlag{
				Name:    "block-timeout",
				Usage:   "Maximum duration of a single block invocation",
				Sources: cli.EnvVars("BLOCK_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "run-timeout",
				Usage:   "Maximum duration of a whole run (0 disables)",
				Sources: cli.EnvVars("RUN_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "max-concurrency",
				Usage:   "Maximum concurrent block invocations per run (0 is unlimited)",
				Sources: cli.EnvVars("MAX_CONCURRENCY"),
			},
			&cli.BoolFlag{
				Name:    "scheduler",
				Usage:   "Also run workflows on their cron schedule",
				Sources: cli.EnvVars("BLOCKFLOW_SCHEDULER"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces with OTLP/HTTP (configured by OTEL_EXPORTER_OTLP_* variables)",
				Sources: cli.EnvVars("BLOCKFLOW_TRACING"),
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

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing Blockflow API")

			cfg, err := serverConfig(command)
			if err != nil {
				return err
			}

			engineOpts := cfg.Engine.Options()

			if command.Bool("tracing") {
				tracer, shutdown, err := otelhelper.NewTracer(ctx, "blockflow-api")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()

				engineOpts = append(engineOpts, engine.WithTracer(tracer))
			}

			reg, err := cmd.NewRegistry(logger, cfg.PluginsPath, registry.BuiltinOptions{
				NotionBaseURL: cfg.NotionBaseURL,
				OpenAIBaseURL: cfg.OpenAIBaseURL,
			})
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL, cfg.ExecutionLogTTL)
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(cfg.EventBus, cfg.KafkaBrokers, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			store, sealer, err := cmd.NewSecretStore(cfg.SecretKey)
			if err != nil {
				return err
			}

			var encrypter services.Encrypter
			if sealer != nil {
				encrypter = sealer
			}

			m := metrics.New()
			executions := services.NewExecution(logger, persistence, engine.New(logger, engineOpts...), reg, store,
				services.WithPublisher(eventBus), services.WithMetrics(m))

			if command.Bool("scheduler") {
				s := scheduler.New(logger, persistence, executions, services.TriggerSchedule)

				go func() {
					if err := s.Run(ctx, time.Minute); err != nil {
						logger.ErrorContext(ctx, "Scheduler stopped", "error", err)
					}
				}()
			}

			api := NewAPI(
				logger,
				services.NewWorkflow(persistence, reg),
				executions,
				services.NewEnvironment(persistence, encrypter),
				reg,
				m,
			)

			return api.Start(ctx, cfg.Port)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("blockflow-api failed", "error", err)
		os.Exit(1)
	}
}

// serverConfig loads the optional config file and applies the flags that were set.
func serverConfig(command *cli.Command) (config.Server, error) {
	cfg, err := config.LoadServer(command.String("config"))
	if err != nil {
		return cfg, err
	}

	if command.IsSet("port") || command.String("config") == "" {
		cfg.Port = command.Int("port")
	}

	if command.IsSet("database-url") {
		cfg.DatabaseURL = command.String("database-url")
	}

	if command.IsSet("event-bus") {
		cfg.EventBus = command.String("event-bus")
	}

	if command.IsSet("kafka-brokers") {
		cfg.KafkaBrokers = command.StringSlice("kafka-brokers")
	}

	if command.IsSet("secret-key") {
		cfg.SecretKey = command.String("secret-key")
	}

	if command.IsSet("plugins-path") || cfg.PluginsPath == "" {
		cfg.PluginsPath = command.String("plugins-path")
	}

	if command.IsSet("block-timeout") {
		cfg.Engine.BlockTimeout = command.Duration("block-timeout")
	}

	if command.IsSet("run-timeout") {
		cfg.Engine.RunTimeout = command.Duration("run-timeout")
	}

	if command.IsSet("max-concurrency") {
		cfg.Engine.MaxConcurrency = command.Int("max-concurrency")
	}

	return cfg, config.Validate(cfg)
}
