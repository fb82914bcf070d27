// Package config holds the engine and server settings shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dukex/blockflow/pkg/engine"
	"github.com/dukex/blockflow/pkg/invoker"
	"github.com/dukex/blockflow/pkg/recorder"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Engine collects the scheduler knobs.
type Engine struct {
	BlockTimeout   time.Duration `yaml:"block_timeout"   validate:"gt=0"`
	RunTimeout     time.Duration `yaml:"run_timeout"     validate:"gte=0"`
	MaxConcurrency int           `yaml:"max_concurrency" validate:"gte=0,lte=1024"`
	PreviewLimit   int           `yaml:"preview_limit"   validate:"gte=16"`
}

// Server configures the HTTP front door and its backing services.
type Server struct {
	Port            int           `yaml:"port"              validate:"min=1,max=65535"`
	DatabaseURL     string        `yaml:"database_url"      validate:"required"`
	EventBus        string        `yaml:"event_bus"         validate:"omitempty,oneof=gochannel kafka"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"     validate:"required_if=EventBus kafka"`
	SecretKey       string        `yaml:"secret_key"`
	PluginsPath     string        `yaml:"plugins_path"`
	NotionBaseURL   string        `yaml:"notion_base_url"   validate:"omitempty,url"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"   validate:"omitempty,url"`
	ExecutionLogTTL time.Duration `yaml:"execution_log_ttl" validate:"gte=0"`
	Engine          Engine        `yaml:"engine"`
}

// DefaultEngine returns the settings used when nothing is configured.
func DefaultEngine() Engine {
	return Engine{
		BlockTimeout: invoker.DefaultTimeout,
		PreviewLimit: recorder.DefaultPreviewLimit,
	}
}

// DefaultServer returns a server listening on 9091 with a local file store.
func DefaultServer() Server {
	return Server{
		Port:        9091,
		DatabaseURL: "file://./data",
		EventBus:    "gochannel",
		Engine:      DefaultEngine(),
	}
}

// Validate checks the settings and reports every offending field.
func Validate(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	errs := make([]error, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		errs = append(errs, fmt.Errorf("%s: failed %q check", fieldError.Namespace(), fieldError.Tag()))
	}

	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

// LoadServer reads a YAML file over the defaults. An empty path returns the defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return cfg, nil
}

// Options turns the settings into engine options.
func (e Engine) Options() []engine.Option {
	return []engine.Option{
		engine.WithBlockTimeout(e.BlockTimeout),
		engine.WithRunTimeout(e.RunTimeout),
		engine.WithMaxConcurrency(e.MaxConcurrency),
		engine.WithPreviewLimit(e.PreviewLimit),
	}
}
