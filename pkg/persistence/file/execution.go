package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
)

// SaveExecution stores the log of a run.
func (fp *Persistence) SaveExecution(_ context.Context, record *models.ExecutionRecord) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if err := fp.write(executionsDir, record.ID, record); err != nil {
		return persistence.NewExecutionError("SaveExecution", record.ID, err)
	}

	return nil
}

// ExecutionByID returns a run log or persistence.ErrExecutionNotFound.
func (fp *Persistence) ExecutionByID(_ context.Context, id string) (*models.ExecutionRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var record models.ExecutionRecord

	err := fp.read(executionsDir, id, &record)
	if isNotExist(err) {
		return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return &record, nil
}

// ExecutionsByWorkflow scans every stored run log.
func (fp *Persistence) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	ids, err := fp.ids(executionsDir)
	if err != nil {
		return nil, err
	}

	records := make([]*models.ExecutionRecord, 0)

	for _, id := range ids {
		var record models.ExecutionRecord
		if err := fp.read(executionsDir, id, &record); err != nil {
			return nil, persistence.NewExecutionError("ExecutionsByWorkflow", id, err)
		}

		if record.WorkflowID == workflowID {
			records = append(records, &record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}
