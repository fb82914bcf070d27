package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
)

func scanExecution(row rowScanner) (*models.ExecutionRecord, error) {
	var (
		record models.ExecutionRecord
		result []byte
	)

	if err := row.Scan(&record.ID, &record.WorkflowID, &record.Trigger, &result, &record.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(result, &record.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &record, nil
}

// SaveExecution stores the log of a run.
func (p *Persistence) SaveExecution(ctx context.Context, record *models.ExecutionRecord) error {
	result, err := json.Marshal(record.Result)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", record.ID, err)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	status := ""
	if record.Result != nil {
		status = string(record.Result.Status)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, trigger, status, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, result = EXCLUDED.result
	`, record.ID, record.WorkflowID, record.Trigger, status, string(result), record.CreatedAt)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", record.ID, err)
	}

	return nil
}

// ExecutionByID returns a run log or persistence.ErrExecutionNotFound.
func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	record, err := scanExecution(p.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, trigger, result, created_at FROM executions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return record, nil
}

// ExecutionsByWorkflow lists the runs of a workflow, newest first.
func (p *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, workflow_id, trigger, result, created_at
		FROM executions
		WHERE workflow_id = $1
		ORDER BY created_at DESC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer p.closeRows(ctx, rows)

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		record, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return records, nil
}
