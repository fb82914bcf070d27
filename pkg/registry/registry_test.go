package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/invoker"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ invoker.CapabilityResolver = (*Registry)(nil)
	_ graph.SchemaProvider       = (*Registry)(nil)
)

type echoFactory struct{}

func (echoFactory) ID() string          { return "echo" }
func (echoFactory) Name() string        { return "Echo" }
func (echoFactory) Description() string { return "Echoes its config" }

func (echoFactory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Operations: map[string]string{"loud": "echo_loud", "quiet": "echo_quiet"},
		Capability: "echo_quiet",
	}
}

func (echoFactory) Capabilities() map[string]protocol.Capability {
	reply := func(volume string) protocol.Capability {
		return protocol.CapabilityFunc(func(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
			return protocol.CallResult{Success: true, Output: map[string]any{"volume": volume, "said": req.Config["text"]}}, nil
		})
	}

	return map[string]protocol.Capability{"echo_loud": reply("loud"), "echo_quiet": reply("quiet")}
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestRegisterBlock_FillsDefinitionFromFactory(t *testing.T) {
	r := newTestRegistry()
	r.RegisterBlock(echoFactory{})

	def, ok := r.BlockDefinition("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", def.Type)
	assert.Equal(t, "Echo", def.Name)
	assert.Equal(t, "Echoes its config", def.Description)

	_, ok = r.BlockDefinition("missing")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	r := newTestRegistry()
	r.RegisterBlock(echoFactory{})

	tests := []struct {
		name      string
		blockType string
		operation string
		want      string
		err       error
	}{
		{"operation mapped", "echo", "loud", "echo_loud", nil},
		{"default capability", "echo", "", "echo_quiet", nil},
		{"unknown operation", "echo", "whisper", "", ErrUnknownOperation},
		{"unknown type", "ghost", "", "", ErrBlockTypeNotRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.blockType, tt.operation)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_CapabilityMissing(t *testing.T) {
	r := newTestRegistry()
	r.RegisterBlock(echoFactory{})
	r.mu.Lock()
	delete(r.capabilities, "echo_loud")
	r.mu.Unlock()

	_, err := r.Resolve("echo", "loud")
	require.ErrorIs(t, err, ErrCapabilityNotRegistered)
}

func TestCall(t *testing.T) {
	r := newTestRegistry()
	r.RegisterBlock(echoFactory{})

	result, err := r.Call(context.Background(), "echo_loud", protocol.CallRequest{Config: map[string]any{"text": "hey"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"volume": "loud", "said": "hey"}, result.Output)

	_, err = r.Call(context.Background(), "nope", protocol.CallRequest{})
	require.ErrorIs(t, err, ErrCapabilityNotRegistered)
}

func TestRegisterCapability_Overrides(t *testing.T) {
	r := newTestRegistry()
	r.RegisterBlock(echoFactory{})
	r.RegisterCapability("echo_quiet", protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
		return protocol.CallResult{Success: true, Output: "stubbed"}, nil
	}))

	result, err := r.Call(context.Background(), "echo_quiet", protocol.CallRequest{})
	require.NoError(t, err)
	assert.Equal(t, "stubbed", result.Output)
}

func TestRegisterDefaultBlocks(t *testing.T) {
	r := newTestRegistry()
	r.RegisterDefaultBlocks(BuiltinOptions{})

	types := make([]string, 0)
	for _, def := range r.Definitions() {
		types = append(types, def.Type)
	}

	assert.Equal(t, []string{"agent", "condition", "http", "notion", "response", "router", "starter", "transform"}, types)

	for operation, capability := range map[string]string{
		"read_notion":     "notion_read",
		"write_notion":    "notion_write",
		"read_database":   "notion_database_read",
		"write_database":  "notion_database_write",
		"update_database": "notion_database_update",
	} {
		got, err := r.Resolve("notion", operation)
		require.NoError(t, err)
		assert.Equal(t, capability, got)
	}

	got, err := r.Resolve("notion", "")
	require.NoError(t, err)
	assert.Equal(t, "notion_read", got)
}

func TestLoadBlockPlugins_EmptyDirectory(t *testing.T) {
	r := newTestRegistry()

	factories, err := r.LoadBlockPlugins(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, factories)
}
