package invoker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	capabilities map[string]protocol.Capability
}

func (f *fakeResolver) Resolve(blockType, operation string) (string, error) {
	id := blockType
	if operation != "" {
		id = blockType + "_" + operation
	}

	if _, ok := f.capabilities[id]; !ok {
		return "", errors.New("not registered")
	}

	return id, nil
}

func (f *fakeResolver) Call(ctx context.Context, capabilityID string, req protocol.CallRequest) (protocol.CallResult, error) {
	return f.capabilities[capabilityID].Call(ctx, req)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func echo() protocol.Capability {
	return protocol.CapabilityFunc(func(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
		return protocol.CallResult{Success: true, Output: req.Config}, nil
	})
}

func TestInvoke_Success(t *testing.T) {
	inv := New(&fakeResolver{capabilities: map[string]protocol.Capability{"echo": echo()}}, testLogger())
	block := &models.Block{ID: "b", Type: "echo", Enabled: true, Config: map[string]any{"x": 1}}

	result, err := inv.Invoke(context.Background(), Call{Block: block, CapabilityID: "echo", Request: protocol.CallRequest{Config: block.Config}})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, map[string]any{"x": 1}, result.Output)
}

func TestInvoke_Failures(t *testing.T) {
	capabilities := map[string]protocol.Capability{
		"error": protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
			return protocol.CallResult{}, errors.New("upstream 502")
		}),
		"unsuccessful": protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
			return protocol.CallResult{Success: false, Error: "quota exceeded"}, nil
		}),
		"panic": protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
			panic("boom")
		}),
	}
	inv := New(&fakeResolver{capabilities: capabilities}, testLogger())

	for id, want := range map[string]string{
		"error":        "upstream 502",
		"unsuccessful": "quota exceeded",
		"panic":        "capability panicked: boom",
	} {
		t.Run(id, func(t *testing.T) {
			block := &models.Block{ID: "blk-" + id, Name: "Block " + id, Type: id}

			result, err := inv.Invoke(context.Background(), Call{Block: block, CapabilityID: id})

			var blockErr *BlockExecutionError
			require.ErrorAs(t, err, &blockErr)
			assert.Equal(t, "blk-"+id, blockErr.BlockID)
			assert.Contains(t, err.Error(), want)
			assert.Contains(t, err.Error(), "Block "+id)
			assert.False(t, result.Success)
		})
	}
}

func TestInvoke_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	slow := protocol.CapabilityFunc(func(ctx context.Context, _ protocol.CallRequest) (protocol.CallResult, error) {
		<-release

		return protocol.CallResult{Success: true}, nil
	})
	inv := New(&fakeResolver{capabilities: map[string]protocol.Capability{"slow": slow}}, testLogger(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := inv.Invoke(context.Background(), Call{Block: &models.Block{ID: "slow"}, CapabilityID: "slow"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPrepare_RendersConfigAndSecrets(t *testing.T) {
	inv := New(&fakeResolver{}, testLogger())
	ec := models.NewExecutionContext("exec-1", map[string]any{"topic": "go"}, map[string]string{"OPENAI_API_KEY": "sk-test"})
	ec.Complete("start", map[string]any{"input": map[string]any{"topic": "go"}}, "")
	ec.IterationCounts["loop"] = 2

	block := &models.Block{ID: "agent", Type: "agent", Enabled: true, Config: map[string]any{
		"prompt":  "Write about {{ .inputs.topic }} (pass {{ .loop.iteration }})",
		"apiKey":  "{{OPENAI_API_KEY}}",
		"altKey":  "OPENAI_API_KEY",
		"rawKey":  "sk-literal",
		"model":   "gpt-4o",
		"history": []any{`{{ index .blocks "start" "input" "topic" }}`},
	}}
	def := &models.BlockDefinition{Type: "agent", SecretFields: []string{"apiKey", "altKey", "rawKey"}}

	call, err := inv.Prepare(ec, block, def, "openai_chat", []string{"start"}, "loop")
	require.NoError(t, err)

	cfg := call.Request.Config
	assert.Equal(t, "Write about go (pass 2)", cfg["prompt"])
	assert.Equal(t, "sk-test", cfg["apiKey"])
	assert.Equal(t, "sk-test", cfg["altKey"])
	assert.Equal(t, "sk-literal", cfg["rawKey"])
	assert.Equal(t, "gpt-4o", cfg["model"])
	assert.Equal(t, []any{"go"}, cfg["history"])
	assert.Equal(t, 2, call.Request.Iteration)
	assert.Equal(t, "exec-1", call.Request.ExecutionID)
	assert.Contains(t, call.Request.Inputs, "start")
	assert.Equal(t, "{{OPENAI_API_KEY}}", block.Config["apiKey"], "block configuration stays untouched")
}

func TestPrepare_MissingSecret(t *testing.T) {
	inv := New(&fakeResolver{}, testLogger())
	ec := models.NewExecutionContext("exec-1", nil, nil)
	block := &models.Block{ID: "agent", Type: "agent", Config: map[string]any{"apiKey": "{{MISSING}}"}}
	def := &models.BlockDefinition{SecretFields: []string{"apiKey"}}

	_, err := inv.Prepare(ec, block, def, "openai_chat", nil, "")

	var blockErr *BlockExecutionError
	require.ErrorAs(t, err, &blockErr)
	assert.Contains(t, err.Error(), "MISSING")
}

func TestResolveAll(t *testing.T) {
	g := &models.WorkflowGraph{Blocks: map[string]*models.Block{
		"a":   {ID: "a", Type: "echo", Enabled: true},
		"off": {ID: "off", Type: "missing", Enabled: false},
	}}
	v, err := graph.Validate(g, nil)
	require.NoError(t, err)

	inv := New(&fakeResolver{capabilities: map[string]protocol.Capability{"echo": echo()}}, testLogger())

	ids, err := inv.ResolveAll(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "echo"}, ids)

	g.Blocks["off"].Enabled = true
	_, err = inv.ResolveAll(v)

	var unknown *UnknownCapabilityError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "off", unknown.BlockID)
}
