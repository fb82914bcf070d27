// Package redis provides Redis persistence: workflows and environments as JSON
// values, execution logs with a retention TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

// DefaultExecutionTTL is how long execution logs are kept.
const DefaultExecutionTTL = 7 * 24 * time.Hour

const keyPrefix = "blockflow:"

func workflowKey(id string) string        { return keyPrefix + "workflow:" + id }
func environmentKey(userID string) string { return keyPrefix + "environment:" + userID }
func executionKey(id string) string       { return keyPrefix + "execution:" + id }
func workflowRunsKey(workflowID string) string {
	return keyPrefix + "workflow-executions:" + workflowID
}

const workflowIndexKey = keyPrefix + "workflows"

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client       redis.UniversalClient
	logger       *slog.Logger
	executionTTL time.Duration
}

// NewPersistence connects to a redis:// or rediss:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string, executionTTL time.Duration) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if executionTTL <= 0 {
		executionTTL = DefaultExecutionTTL
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &Persistence{client: client, logger: logger, executionTTL: executionTTL}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) get(ctx context.Context, key string, value any) error {
	data, err := p.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, value)
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := p.client.ZRevRange(ctx, workflowIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := p.WorkflowByID(ctx, id)
		if persistence.IsWorkflowNotFound(err) {
			continue
		}

		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := p.get(ctx, workflowKey(id), &workflow)
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return &workflow, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	data, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, workflowKey(workflow.ID), data, 0)
		pipe.ZAdd(ctx, workflowIndexKey, redis.Z{Score: float64(workflow.CreatedAt.UnixMilli()), Member: workflow.ID})

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, workflowKey(id))
		pipe.ZRem(ctx, workflowIndexKey, id)

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}

func (p *Persistence) EnvironmentByUser(ctx context.Context, userID string) (*models.Environment, error) {
	var env models.Environment

	err := p.get(ctx, environmentKey(userID), &env)
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("user %s: %w", userID, persistence.ErrEnvironmentNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read environment of user %s: %w", userID, err)
	}

	return &env, nil
}

func (p *Persistence) SaveEnvironment(ctx context.Context, env *models.Environment) error {
	env.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal environment of user %s: %w", env.UserID, err)
	}

	if err := p.client.Set(ctx, environmentKey(env.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save environment of user %s: %w", env.UserID, err)
	}

	return nil
}

// SaveExecution stores a run log with the execution TTL and indexes it
// under its workflow. Index entries of expired logs are dropped on read.
func (p *Persistence) SaveExecution(ctx context.Context, record *models.ExecutionRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", record.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, executionKey(record.ID), data, p.executionTTL)
		pipe.ZAdd(ctx, workflowRunsKey(record.WorkflowID), redis.Z{
			Score:  float64(record.CreatedAt.UnixMilli()),
			Member: record.ID,
		})

		return nil
	})
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", record.ID, err)
	}

	return nil
}

func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	var record models.ExecutionRecord

	err := p.get(ctx, executionKey(id), &record)
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return &record, nil
}

func (p *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	ids, err := p.client.ZRevRange(ctx, workflowRunsKey(workflowID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of workflow %s: %w", workflowID, err)
	}

	records := make([]*models.ExecutionRecord, 0, len(ids))

	var expired []any

	for _, id := range ids {
		record, err := p.ExecutionByID(ctx, id)
		if persistence.IsExecutionNotFound(err) {
			expired = append(expired, id)

			continue
		}

		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	if len(expired) > 0 {
		if err := p.client.ZRem(ctx, workflowRunsKey(workflowID), expired...).Err(); err != nil {
			p.logger.WarnContext(ctx, "failed to prune expired executions", "workflow_id", workflowID, "error", err)
		}
	}

	return records, nil
}
