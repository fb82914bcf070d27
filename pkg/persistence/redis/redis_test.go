package redis_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
	"github.com/dukex/blockflow/pkg/persistence/persistencetest"
	"github.com/dukex/blockflow/pkg/persistence/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T, ttl time.Duration) *redis.Persistence {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := redis.NewPersistence(ctx, logger, fmt.Sprintf("redis://%s/0", endpoint), ttl)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close(context.Background())
	})

	return p
}

func TestPersistence(t *testing.T) {
	persistencetest.Run(t, setupRedis(t, 0))
}

func TestPersistence_ExecutionsExpire(t *testing.T) {
	p := setupRedis(t, time.Second)
	ctx := context.Background()

	require.NoError(t, p.SaveExecution(ctx, &models.ExecutionRecord{
		ID:         "exec-short",
		WorkflowID: "wf-ttl",
		Result:     &models.ExecutionResult{ID: "exec-short", Status: models.RunStatusSucceeded},
	}))

	assert.Eventually(t, func() bool {
		_, err := p.ExecutionByID(ctx, "exec-short")

		return persistence.IsExecutionNotFound(err)
	}, 5*time.Second, 100*time.Millisecond)

	records, err := p.ExecutionsByWorkflow(ctx, "wf-ttl")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	_, err := redis.NewPersistence(context.Background(), logger, "http://nope", 0)
	assert.ErrorContains(t, err, "invalid redis url")
}
