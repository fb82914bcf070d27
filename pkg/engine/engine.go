// Package engine runs workflow graphs to completion.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/invoker"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/otelhelper"
	"github.com/dukex/blockflow/pkg/recorder"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dukex/blockflow/pkg/engine"

// Engine executes workflow graphs. It holds configuration only, so one
// Engine serves any number of concurrent runs.
type Engine struct {
	logger         *slog.Logger
	tracer         trace.Tracer
	schemas        graph.SchemaProvider
	blockTimeout   time.Duration
	runTimeout     time.Duration
	maxConcurrency int
	previewLimit   int
}

// New creates an engine.
func New(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:       logger,
		tracer:       otelhelper.Tracer(tracerName),
		blockTimeout: invoker.DefaultTimeout,
		previewLimit: recorder.DefaultPreviewLimit,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs g with the given runtime inputs and secrets, calling blocks
// through resolver. The result is always returned, with the logs and trace
// gathered so far; the error is the reason the run did not succeed.
func (e *Engine) Execute(
	ctx context.Context,
	g *models.WorkflowGraph,
	inputs map[string]any,
	secrets map[string]string,
	resolver invoker.CapabilityResolver,
	opts ...RunOption,
) (*models.ExecutionResult, error) {
	cfg := runConfig{executionID: "exec-" + uuid.NewString()}
	for _, opt := range opts {
		opt(&cfg)
	}

	startTime := time.Now()
	logger := e.logger.With("execution_id", cfg.executionID, "workflow_id", cfg.workflowID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.ExecutionIDKey, cfg.executionID),
		attribute.String(otelhelper.WorkflowIDKey, cfg.workflowID),
	)
	defer span.End()

	result := &models.ExecutionResult{
		ID:         cfg.executionID,
		WorkflowID: cfg.workflowID,
		Logs:       []*models.LogEntry{},
		Trace:      models.ExecutionTrace{Spans: []*models.TraceSpan{}},
	}

	finish := func(status models.RunStatus, output any, err error) (*models.ExecutionResult, error) {
		endTime := time.Now()

		result.Status = status
		result.Success = status == models.RunStatusSucceeded
		result.Output = output
		result.Metadata = models.ExecutionMetadata{
			Duration:  endTime.Sub(startTime).Milliseconds(),
			StartTime: startTime,
			EndTime:   endTime,
		}

		span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(status)))

		if err != nil {
			result.Error = err.Error()
			otelhelper.SetError(span, err)
		}

		logOutcome(ctx, logger, status, result.Metadata.Duration, err)

		return result, err
	}

	schemas := e.schemas
	if schemas == nil {
		if provider, ok := resolver.(graph.SchemaProvider); ok {
			schemas = provider
		}
	}

	validated, err := graph.Validate(g, schemas)
	if err != nil {
		return finish(models.RunStatusFailed, nil, err)
	}

	inv := invoker.New(resolver, logger, invoker.WithTimeout(e.blockTimeout))

	capabilities, err := inv.ResolveAll(validated)
	if err != nil {
		return finish(models.RunStatusFailed, nil, err)
	}

	if e.runTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	ec := models.NewExecutionContext(cfg.executionID, inputs, secrets)
	ec.WorkflowID = cfg.workflowID

	logger.InfoContext(ctx, "Workflow execution started", "blocks", len(validated.BlockIDs), "loops", len(validated.LoopIDs))

	r := newRun(e, logger, validated, ec, inv, capabilities,
		recorder.New(recorder.WithPreviewLimit(e.previewLimit), recorder.WithSecrets(secrets)))
	r.execute(ctx)

	result.Logs = r.recorder.Logs()
	result.Trace = r.recorder.Trace()

	if result.Logs == nil {
		result.Logs = []*models.LogEntry{}
	}

	switch {
	case r.failure != nil:
		return finish(models.RunStatusFailed, nil, r.failure)
	case r.cancellation != nil:
		return finish(models.RunStatusCancelled, nil, r.cancellation)
	}

	if pending := r.resolver.Unresolved(ec); len(pending) > 0 {
		return finish(models.RunStatusFailed, nil, &StalledExecutionError{BlockIDs: pending})
	}

	return finish(models.RunStatusSucceeded, terminalOutput(validated, ec), nil)
}

// terminalOutput collects outputs of the blocks that produced the run's
// answer: response blocks when the graph has any, otherwise blocks without
// outgoing edges. Only blocks that completed count.
func terminalOutput(v *graph.Validated, ec *models.ExecutionContext) any {
	var candidates []string

	for _, id := range v.BlockIDs {
		if def := v.Definition(id); def != nil && def.Response && v.Block(id).Enabled {
			candidates = append(candidates, id)
		}
	}

	if len(candidates) == 0 {
		candidates = v.Terminal()
	}

	outputs := make(map[string]any)

	var last string

	for _, id := range candidates {
		if ec.State(id) == models.BlockStateCompleted {
			outputs[id] = ec.BlockOutputs[id]
			last = id
		}
	}

	switch len(outputs) {
	case 0:
		return nil
	case 1:
		return outputs[last]
	default:
		return outputs
	}
}

// IsCancelled reports whether err ended a run by cancellation or run timeout.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// logOutcome reports how a run ended. A stalled run is an engine fault, not
// a workflow failure, and gets its own message.
func logOutcome(ctx context.Context, logger *slog.Logger, status models.RunStatus, durationMs int64, err error) {
	var stalled *StalledExecutionError

	switch {
	case err == nil:
		logger.InfoContext(ctx, "Workflow execution succeeded", "duration_ms", durationMs)
	case errors.As(err, &stalled):
		logger.ErrorContext(ctx, "Engine stalled with unresolved blocks", "blocks", stalled.BlockIDs, "internal", true)
	default:
		logger.ErrorContext(ctx, "Workflow execution did not succeed", "status", status, "error", err)
	}
}
