// Package persistencetest holds the behaviour every persistence.Persistence must share.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Workflow returns a small valid workflow with a fresh id.
func Workflow() *models.Workflow {
	return &models.Workflow{
		ID:          uuid.NewString(),
		Name:        "Summarize inbox",
		Description: "Starter to agent",
		Owner:       "user-1",
		APIKey:      "key-1",
		Schedule:    "*/5 * * * *",
		Graph: &models.WorkflowGraph{
			Blocks: map[string]*models.Block{
				"start": {ID: "start", Type: "starter", Name: "Start", Enabled: true, Config: map[string]any{}},
				"agent": {ID: "agent", Type: "agent", Name: "Agent", Enabled: true, Config: map[string]any{"prompt": "hi"}},
			},
			Edges: []*models.Edge{{ID: "e1", Source: "start", Target: "agent"}},
			Loops: map[string]*models.LoopScope{},
		},
	}
}

// Run exercises p through every operation of the interface.
func Run(t *testing.T, p persistence.Persistence) {
	t.Helper()

	ctx := context.Background()

	t.Run("health", func(t *testing.T) {
		require.NoError(t, p.HealthCheck(ctx))
	})

	t.Run("workflows", func(t *testing.T) {
		workflow := Workflow()
		require.NoError(t, p.SaveWorkflow(ctx, workflow))
		assert.False(t, workflow.CreatedAt.IsZero())

		loaded, err := p.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.Name, loaded.Name)
		assert.Equal(t, workflow.APIKey, loaded.APIKey)
		assert.Equal(t, "hi", loaded.Graph.Blocks["agent"].Config["prompt"])
		require.Len(t, loaded.Graph.Edges, 1)

		workflow.Name = "Summarize inbox daily"
		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		all, err := p.Workflows(ctx)
		require.NoError(t, err)

		names := map[string]string{}
		for _, w := range all {
			names[w.ID] = w.Name
		}

		assert.Equal(t, "Summarize inbox daily", names[workflow.ID])

		require.NoError(t, p.DeleteWorkflow(ctx, workflow.ID))

		_, err = p.WorkflowByID(ctx, workflow.ID)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("environments", func(t *testing.T) {
		_, err := p.EnvironmentByUser(ctx, "nobody")
		assert.True(t, persistence.IsEnvironmentNotFound(err))

		env := &models.Environment{UserID: "user-1", Variables: map[string]string{"OPENAI_KEY": "encrypted:abc"}}
		require.NoError(t, p.SaveEnvironment(ctx, env))

		loaded, err := p.EnvironmentByUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, env.Variables, loaded.Variables)
	})

	t.Run("executions", func(t *testing.T) {
		workflowID := uuid.NewString()
		base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

		for i, status := range []models.RunStatus{models.RunStatusSucceeded, models.RunStatusFailed} {
			record := &models.ExecutionRecord{
				ID:         "exec-" + uuid.NewString(),
				WorkflowID: workflowID,
				Trigger:    "api",
				CreatedAt:  base.Add(time.Duration(i) * time.Minute),
				Result: &models.ExecutionResult{
					WorkflowID: workflowID,
					Status:     status,
					Success:    status == models.RunStatusSucceeded,
					Logs:       []*models.LogEntry{{BlockID: "agent", Success: true, Output: `{"response":"hi"}`}},
				},
			}
			record.Result.ID = record.ID

			require.NoError(t, p.SaveExecution(ctx, record))
		}

		records, err := p.ExecutionsByWorkflow(ctx, workflowID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, models.RunStatusFailed, records[0].Result.Status, "newest first")

		loaded, err := p.ExecutionByID(ctx, records[1].ID)
		require.NoError(t, err)
		assert.True(t, loaded.Result.Success)
		require.Len(t, loaded.Result.Logs, 1)
		assert.Equal(t, "agent", loaded.Result.Logs[0].BlockID)

		_, err = p.ExecutionByID(ctx, "exec-missing")
		assert.True(t, persistence.IsExecutionNotFound(err))

		none, err := p.ExecutionsByWorkflow(ctx, "no-runs")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
