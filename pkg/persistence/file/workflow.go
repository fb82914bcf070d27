package file

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
)

// Workflows returns every stored workflow, newest first.
func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	ids, err := fp.ids(workflowsDir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		var workflow models.Workflow
		if err := fp.read(workflowsDir, id, &workflow); err != nil {
			return nil, persistence.NewWorkflowError("Workflows", id, err)
		}

		workflows = append(workflows, &workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// WorkflowByID returns a workflow or persistence.ErrWorkflowNotFound.
func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var workflow models.Workflow

	err := fp.read(workflowsDir, id, &workflow)
	if isNotExist(err) {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return &workflow, nil
}

// SaveWorkflow creates or replaces a workflow, stamping its timestamps.
func (fp *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if err := fp.write(workflowsDir, workflow.ID, workflow); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

// DeleteWorkflow removes a workflow; deleting a missing one is not an error.
func (fp *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(fp.path(workflowsDir, id))
	if err != nil && !isNotExist(err) {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}
