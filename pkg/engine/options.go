package engine

import (
	"time"

	"github.com/dukex/blockflow/pkg/graph"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Engine.
type Option func(*Engine)

// WithTracer sets the tracer invocation spans are recorded with.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithBlockTimeout bounds each block invocation.
func WithBlockTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.blockTimeout = timeout
	}
}

// WithRunTimeout bounds a whole run. When it fires the run stops like a
// cancellation: nothing new starts, in-flight blocks finish.
func WithRunTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.runTimeout = timeout
	}
}

// WithMaxConcurrency caps concurrent invocations per run. Zero means no cap.
func WithMaxConcurrency(limit int) Option {
	return func(e *Engine) {
		e.maxConcurrency = limit
	}
}

// WithPreviewLimit sets the length of output previews in log entries.
func WithPreviewLimit(limit int) Option {
	return func(e *Engine) {
		e.previewLimit = limit
	}
}

// WithSchemas sets the block type definitions used for validation. Without
// it the capability resolver is used when it provides definitions.
func WithSchemas(schemas graph.SchemaProvider) Option {
	return func(e *Engine) {
		e.schemas = schemas
	}
}

// RunOption tags a single run.
type RunOption func(*runConfig)

type runConfig struct {
	executionID string
	workflowID  string
}

// WithExecutionID fixes the execution id instead of generating one.
func WithExecutionID(id string) RunOption {
	return func(c *runConfig) {
		c.executionID = id
	}
}

// WithWorkflowID records which stored workflow the run belongs to.
func WithWorkflowID(id string) RunOption {
	return func(c *runConfig) {
		c.workflowID = id
	}
}
