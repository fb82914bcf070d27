package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/dukex/blockflow/pkg/engine"
	"github.com/dukex/blockflow/pkg/eventbus"
	"github.com/dukex/blockflow/pkg/events"
	"github.com/dukex/blockflow/pkg/invoker"
	"github.com/dukex/blockflow/pkg/metrics"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
	"github.com/dukex/blockflow/pkg/secrets"
	"github.com/google/uuid"
)

// Trigger names recorded with each run.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Execution runs stored workflows and keeps their logs.
type Execution struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	resolver    invoker.CapabilityResolver
	secrets     secrets.Store
	publisher   eventbus.EventPublisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type ExecutionOption func(*Execution)

// WithPublisher publishes lifecycle events of every run.
func WithPublisher(publisher eventbus.EventPublisher) ExecutionOption {
	return func(e *Execution) {
		e.publisher = publisher
	}
}

// WithMetrics records every run on m.
func WithMetrics(m *metrics.Metrics) ExecutionOption {
	return func(e *Execution) {
		e.metrics = m
	}
}

func NewExecution(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eng *engine.Engine,
	resolver invoker.CapabilityResolver,
	store secrets.Store,
	opts ...ExecutionOption,
) *Execution {
	e := &Execution{
		persistence: persistence,
		engine:      eng,
		resolver:    resolver,
		secrets:     store,
		logger:      logger.With("module", "execution_service"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ExecuteRequest asks for a run of a stored workflow.
type ExecuteRequest struct {
	WorkflowID string
	APIKey     string
	Inputs     map[string]any
	Trigger    string
}

// Execute loads the workflow, checks the caller's key and runs it. A
// workflow without a key accepts any caller. The returned error is a
// lookup or access error; a run that did not succeed is reported in the
// result together with its error.
func (e *Execution) Execute(ctx context.Context, req ExecuteRequest) (*models.ExecutionResult, error) {
	workflow, err := e.persistence.WorkflowByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if workflow.APIKey != "" && subtle.ConstantTimeCompare([]byte(workflow.APIKey), []byte(req.APIKey)) != 1 {
		return nil, &ServiceError{Op: "Execute", Code: "UNAUTHORIZED", Err: ErrUnauthorized}
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerAPI
	}

	return e.Run(ctx, workflow, req.Inputs, trigger)
}

// Run executes an already loaded workflow with its owner's secrets,
// persists the run log and publishes its events. The error is non-nil
// when secrets could not be resolved (result is nil) or when the run did
// not succeed (result is set).
func (e *Execution) Run(ctx context.Context, workflow *models.Workflow, inputs map[string]any, trigger string) (*models.ExecutionResult, error) {
	runSecrets, err := e.ownerSecrets(ctx, workflow.Owner)
	if err != nil {
		return nil, err
	}

	if inputs == nil {
		inputs = map[string]any{}
	}

	executionID := "exec-" + uuid.NewString()
	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", executionID, "trigger", trigger)

	e.publish(ctx, logger, executionID, events.Started(workflow.ID, executionID, trigger, inputs))

	if e.metrics != nil {
		e.metrics.RunStarted()
	}

	result, runErr := e.engine.Execute(ctx, workflow.Graph, inputs, runSecrets, e.resolver,
		engine.WithExecutionID(executionID),
		engine.WithWorkflowID(workflow.ID),
	)

	if e.metrics != nil {
		e.metrics.ObserveRun(result)
	}

	record := &models.ExecutionRecord{
		ID:         executionID,
		WorkflowID: workflow.ID,
		Trigger:    trigger,
		Result:     result,
	}

	if err := e.persistence.SaveExecution(context.WithoutCancel(ctx), record); err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution log", "error", err)
	}

	e.publish(ctx, logger, executionID, events.FromResult(result)...)

	return result, runErr
}

// FetchExecution returns a stored run log.
func (e *Execution) FetchExecution(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	return e.persistence.ExecutionByID(ctx, id)
}

// ListExecutions returns the run logs of a workflow, newest first.
func (e *Execution) ListExecutions(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	if _, err := e.persistence.WorkflowByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return e.persistence.ExecutionsByWorkflow(ctx, workflowID)
}

func (e *Execution) ownerSecrets(ctx context.Context, owner string) (map[string]string, error) {
	if owner == "" {
		return map[string]string{}, nil
	}

	env, err := e.persistence.EnvironmentByUser(ctx, owner)
	if persistence.IsEnvironmentNotFound(err) {
		return map[string]string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSecretAccess, err)
	}

	resolved, err := secrets.ResolveAll(e.secrets, env.Variables)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSecretAccess, err)
	}

	return resolved, nil
}

func (e *Execution) publish(ctx context.Context, logger *slog.Logger, executionID string, list ...events.Event) {
	if e.publisher == nil {
		return
	}

	if err := eventbus.PublishAll(ctx, e.publisher, executionID, list); err != nil {
		logger.WarnContext(ctx, "Failed to publish execution events", "error", err)
	}
}
