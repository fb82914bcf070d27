package loop

import (
	"testing"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopGraph(t *testing.T, maxIterations int, condition string) *graph.Validated {
	t.Helper()

	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{
			"a":   {ID: "a", Type: "transform", Enabled: true},
			"b":   {ID: "b", Type: "transform", Enabled: true},
			"off": {ID: "off", Type: "transform", Enabled: false},
		},
		Edges: []*models.Edge{
			{ID: "ab", Source: "a", Target: "b"},
			{ID: "ba", Source: "b", Target: "a"},
		},
		Loops: map[string]*models.LoopScope{
			"l": {ID: "l", Nodes: []string{"a", "b", "off"}, MaxIterations: maxIterations, Condition: condition},
		},
	}

	v, err := graph.Validate(g, nil)
	require.NoError(t, err)

	return v
}

func runPass(ec *models.ExecutionContext, iteration int) {
	ec.Complete("a", map[string]any{"n": iteration}, "")
	ec.Complete("b", map[string]any{"n": iteration}, "")
}

func TestController_RunsToMaxIterations(t *testing.T) {
	v := loopGraph(t, 3, "")
	c := NewController(v)
	ec := models.NewExecutionContext("exec", nil, nil)

	c.Enter(ec, "l")
	assert.Equal(t, models.LoopStateRunning, ec.Loop("l"))
	assert.Equal(t, 1, ec.IterationCounts["l"])
	assert.Equal(t, models.BlockStateSkipped, ec.State("off"))
	assert.Equal(t, []string{"l"}, c.Running(ec))

	for i := 1; i <= 3; i++ {
		assert.False(t, c.PassComplete(ec, "l"))
		runPass(ec, i)
		require.True(t, c.PassComplete(ec, "l"))

		done, err := c.Advance(ec, "l")
		require.NoError(t, err)
		assert.Equal(t, i == 3, done)
	}

	assert.Equal(t, models.LoopStateCompleted, ec.Loop("l"))
	assert.Equal(t, 3, ec.IterationCounts["l"])
	assert.Equal(t, map[string]any{"n": 3}, ec.BlockOutputs["b"])
	assert.Empty(t, c.Running(ec))
}

func TestController_ExitCondition(t *testing.T) {
	v := loopGraph(t, 10, "{{ ge .loop.iteration 2 }}")
	c := NewController(v)
	ec := models.NewExecutionContext("exec", nil, nil)

	c.Enter(ec, "l")
	runPass(ec, 1)

	done, err := c.Advance(ec, "l")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, models.BlockStatePending, ec.State("a"))

	runPass(ec, 2)

	done, err = c.Advance(ec, "l")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 2, ec.IterationCounts["l"])
}

func TestController_ExitConditionOnOutputs(t *testing.T) {
	v := loopGraph(t, 10, `{{ eq (index .blocks "b" "n") 1 }}`)
	c := NewController(v)
	ec := models.NewExecutionContext("exec", nil, nil)

	c.Enter(ec, "l")
	runPass(ec, 1)

	done, err := c.Advance(ec, "l")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestController_BrokenCondition(t *testing.T) {
	v := loopGraph(t, 3, "{{ nope }}")
	c := NewController(v)
	ec := models.NewExecutionContext("exec", nil, nil)

	c.Enter(ec, "l")
	runPass(ec, 1)

	_, err := c.Advance(ec, "l")

	var condErr *LoopConditionError
	require.ErrorAs(t, err, &condErr)
	assert.Equal(t, "l", condErr.LoopID)
	assert.Equal(t, 1, condErr.Iteration)
}

func TestController_Skip(t *testing.T) {
	v := loopGraph(t, 3, "")
	c := NewController(v)
	ec := models.NewExecutionContext("exec", nil, nil)

	c.Skip(ec, "l")
	assert.Equal(t, models.LoopStateSkipped, ec.Loop("l"))
	assert.Equal(t, models.BlockStateSkipped, ec.State("a"))
	assert.False(t, c.PassComplete(ec, "l"))
}
