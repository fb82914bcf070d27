package services

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

type Workflow struct {
	persistence persistence.Persistence
	schemas     graph.SchemaProvider
}

// NewWorkflow creates a new workflow service. Graphs are checked against
// schemas when it is not nil.
func NewWorkflow(persistence persistence.Persistence, schemas graph.SchemaProvider) *Workflow {
	return &Workflow{
		persistence: persistence,
		schemas:     schemas,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every stored workflow.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return w.persistence.Workflows(ctx)
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowByID(ctx, id)
}

// Create validates the workflow graph and stores it under a new id.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := w.check("Create", workflow); err != nil {
		return nil, err
	}

	workflow.ID = uuid.NewString()
	workflow.CreatedAt = time.Time{}

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update replaces the stored workflow with the given id.
func (w *Workflow) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := w.check("Update", workflow); err != nil {
		return nil, err
	}

	workflow.ID = existing.ID
	workflow.CreatedAt = existing.CreatedAt

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Delete removes a workflow.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if _, err := w.persistence.WorkflowByID(ctx, id); err != nil {
		return err
	}

	return w.persistence.DeleteWorkflow(ctx, id)
}

func (w *Workflow) check(op string, workflow *models.Workflow) error {
	if workflow == nil {
		return NewValidationError(op, "WORKFLOW_NIL", "", ErrWorkflowNil)
	}

	if workflow.Graph == nil {
		return NewValidationError(op, "GRAPH_REQUIRED", "", ErrGraphRequired)
	}

	graph.Normalize(workflow.Graph)

	if _, err := graph.Validate(workflow.Graph, w.schemas); err != nil {
		return NewValidationError(op, "INVALID_GRAPH", err.Error(), errors.Join(ErrInvalidRequest, err))
	}

	if workflow.Schedule != "" {
		if _, err := cron.ParseStandard(workflow.Schedule); err != nil {
			return NewValidationError(op, "INVALID_SCHEDULE", "invalid cron expression: "+err.Error(), ErrInvalidRequest)
		}
	}

	return nil
}
