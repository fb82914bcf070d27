// Package persistence provides the storage abstraction for workflows, environments and execution logs.
package persistence

import (
	"context"

	"github.com/dukex/blockflow/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	EnvironmentByUser(ctx context.Context, userID string) (*models.Environment, error)
	SaveEnvironment(ctx context.Context, env *models.Environment) error

	SaveExecution(ctx context.Context, record *models.ExecutionRecord) error
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	// ExecutionsByWorkflow lists the runs of a workflow, newest first.
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
