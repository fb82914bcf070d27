package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_UnmarshalDefaultsEnabled(t *testing.T) {
	var graph WorkflowGraph

	err := json.Unmarshal([]byte(`{
		"blocks": {
			"a": {"id": "a", "type": "starter"},
			"b": {"id": "b", "type": "agent", "enabled": false}
		},
		"edges": [{"source": "a", "target": "b"}]
	}`), &graph)
	require.NoError(t, err)

	assert.True(t, graph.Blocks["a"].Enabled)
	assert.False(t, graph.Blocks["b"].Enabled)
	assert.Equal(t, DefaultSourceHandle, graph.Edges[0].SourcePort())
	assert.Equal(t, DefaultTargetHandle, graph.Edges[0].TargetPort())
	assert.Equal(t, "a:source->b:target", graph.Edges[0].Key())
}

func TestBlock_DisplayNameAndOperation(t *testing.T) {
	block := &Block{ID: "notion-1", Config: map[string]any{"operation": "read_notion"}}
	assert.Equal(t, "notion-1", block.DisplayName())
	assert.Equal(t, "read_notion", block.Operation())

	block.Name = "Read page"
	assert.Equal(t, "Read page", block.DisplayName())
}

func TestHandleID(t *testing.T) {
	id := MakeHandleID("cond:1", "true")
	assert.Equal(t, "cond:1:true", id)

	blockID, handle, ok := ParseHandleID(id)
	require.True(t, ok)
	assert.Equal(t, "cond:1", blockID)
	assert.Equal(t, "true", handle)

	_, _, ok = ParseHandleID("no-separator")
	assert.False(t, ok)
}

func TestLoopScope_Contains(t *testing.T) {
	loop := &LoopScope{ID: "l", Nodes: []string{"a", "b"}, MaxIterations: 2}
	assert.True(t, loop.Contains("b"))
	assert.False(t, loop.Contains("c"))
}

func TestExecutionContext_Handles(t *testing.T) {
	ec := NewExecutionContext("exec-1", nil, nil)

	assert.Equal(t, BlockStatePending, ec.State("cond"))
	assert.Equal(t, LoopStateIdle, ec.Loop("loop"))

	ec.Complete("cond", map[string]any{"result": true}, "true")
	assert.Equal(t, BlockStateCompleted, ec.State("cond"))
	assert.True(t, ec.HandleActive("cond", "true"))
	assert.False(t, ec.HandleActive("cond", "false"))

	ec.Complete("plain", 1, "")
	assert.True(t, ec.HandleActive("plain", DefaultSourceHandle))

	ec.Skip("cond")
	assert.Equal(t, BlockStateSkipped, ec.State("cond"))

	snapshot := ec.OutputsSnapshot()
	snapshot["plain"] = 2
	assert.Equal(t, 1, ec.BlockOutputs["plain"])
}

func TestBlockDefinition_Handles(t *testing.T) {
	def := &BlockDefinition{Type: "condition", Outputs: []string{"true", "false"}, SecretFields: []string{"apiKey"}}
	assert.Equal(t, []string{"true", "false"}, def.OutputHandles())
	assert.Equal(t, []string{DefaultTargetHandle}, def.InputHandles())
	assert.True(t, def.IsSecret("apiKey"))
	assert.False(t, def.IsSecret("model"))
}
