package graph

import (
	"testing"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schemas map[string]*models.BlockDefinition

func (s schemas) BlockDefinition(blockType string) (*models.BlockDefinition, bool) {
	def, ok := s[blockType]

	return def, ok
}

func testSchemas() schemas {
	return schemas{
		"starter": {Type: "starter"},
		"agent": {
			Type: "agent",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"model":       map[string]any{"type": "string"},
					"temperature": map[string]any{"type": "number"},
				},
				"required": []string{"model"},
			},
		},
		"condition": {Type: "condition", Outputs: []string{"true", "false"}},
	}
}

func block(id, blockType string) *models.Block {
	return &models.Block{ID: id, Type: blockType, Enabled: true, Config: map[string]any{}}
}

func edge(source, target string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target}
}

func TestParse(t *testing.T) {
	g, err := Parse([]byte(`{
		"blocks": {"start": {"type": "starter"}, "a": {"type": "agent", "config": {"model": "gpt-4o"}}},
		"edges": [{"source": "start", "target": "a"}],
		"loops": {"l": {"nodes": ["a"], "maxIterations": 2}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "start", g.Blocks["start"].ID)
	assert.NotNil(t, g.Blocks["start"].Config)
	assert.Equal(t, "edge-0", g.Edges[0].ID)
	assert.Equal(t, "l", g.Loops["l"].ID)

	_, err = Parse([]byte(`{"blocks": `))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidate_Linear(t *testing.T) {
	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{
			"start": block("start", "starter"),
			"agent": {ID: "agent", Type: "agent", Enabled: true, Config: map[string]any{"model": "gpt-4o"}},
		},
		Edges: []*models.Edge{edge("start", "agent")},
	}

	v, err := Validate(g, testSchemas())
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "agent"}, v.Order)
	assert.Equal(t, []string{"agent"}, v.Terminal())
	assert.Less(t, v.Position("start"), v.Position("agent"))
	assert.Equal(t, "agent", v.Definition("agent").Type)
}

func TestValidate_ShapeErrors(t *testing.T) {
	_, err := Validate(nil, nil)
	require.Error(t, err)

	_, err = Validate(&models.WorkflowGraph{}, nil)
	var shape *ShapeError
	require.ErrorAs(t, err, &shape)

	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{"a": block("a", "starter")},
		Loops:  map[string]*models.LoopScope{"l": {ID: "l", Nodes: []string{"a"}, MaxIterations: 0}},
	}
	_, err = Validate(g, nil)
	require.ErrorAs(t, err, &shape)
	assert.Contains(t, err.Error(), "MaxIterations")

	g = &models.WorkflowGraph{Blocks: map[string]*models.Block{"a": block("b", "starter")}}
	_, err = Validate(g, nil)
	require.ErrorAs(t, err, &shape)
}

func TestValidate_DanglingEdge(t *testing.T) {
	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{"a": block("a", "starter")},
		Edges:  []*models.Edge{edge("a", "ghost")},
	}

	_, err := Validate(g, nil)

	var dangling *DanglingEdgeError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "ghost", dangling.BlockID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidate_Handles(t *testing.T) {
	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{
			"c": block("c", "condition"),
			"s": block("s", "starter"),
		},
		Edges: []*models.Edge{{ID: "e", Source: "c", Target: "s", SourceHandle: "maybe"}},
	}

	_, err := Validate(g, testSchemas())

	var handle *InvalidHandleError
	require.ErrorAs(t, err, &handle)
	assert.Equal(t, "maybe", handle.Handle)

	g.Edges[0].SourceHandle = "true"
	_, err = Validate(g, testSchemas())
	require.NoError(t, err)

	g.Blocks["x"] = block("x", "mystery")
	_, err = Validate(g, testSchemas())

	var unknown *UnknownBlockTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "mystery", unknown.Type)
}

func TestValidate_LoopMembership(t *testing.T) {
	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{"a": block("a", "starter"), "b": block("b", "starter")},
		Loops: map[string]*models.LoopScope{
			"l1": {ID: "l1", Nodes: []string{"a", "b"}, MaxIterations: 2},
			"l2": {ID: "l2", Nodes: []string{"b"}, MaxIterations: 2},
		},
	}

	_, err := Validate(g, nil)

	var membership *LoopMembershipError
	require.ErrorAs(t, err, &membership)
	assert.Equal(t, "b", membership.BlockID)
	assert.Equal(t, "l1", membership.Other)

	g.Loops = map[string]*models.LoopScope{"l1": {ID: "l1", Nodes: []string{"missing"}, MaxIterations: 1}}
	_, err = Validate(g, nil)
	require.ErrorAs(t, err, &membership)
	assert.Equal(t, "missing", membership.BlockID)
}

func TestValidate_CycleOutsideLoop(t *testing.T) {
	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{
			"start": block("start", "starter"),
			"a":     block("a", "starter"),
			"b":     block("b", "starter"),
			"after": block("after", "starter"),
		},
		Edges: []*models.Edge{edge("start", "a"), edge("a", "b"), edge("b", "a"), edge("b", "after")},
	}

	_, err := Validate(g, nil)

	var cyclic *CyclicGraphError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, []string{"a", "b"}, cyclic.BlockIDs)
	assert.Contains(t, err.Error(), "a, b")
}

func TestValidate_CycleInsideLoop(t *testing.T) {
	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{
			"start": block("start", "starter"),
			"a":     block("a", "starter"),
			"b":     block("b", "starter"),
			"after": block("after", "starter"),
		},
		Edges: []*models.Edge{edge("start", "a"), edge("a", "b"), edge("b", "a"), edge("b", "after")},
		Loops: map[string]*models.LoopScope{"l": {ID: "l", Nodes: []string{"a", "b"}, MaxIterations: 3}},
	}

	v, err := Validate(g, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "loop:l", "after"}, v.Order)

	loop := v.Loops["l"]
	require.NotNil(t, loop)
	assert.Equal(t, []string{"a", "b"}, loop.Members)
	require.Len(t, loop.BackEdges, 1)
	assert.Equal(t, "b", loop.BackEdges[0].Source)
	assert.True(t, loop.IsEntry("a"))
	assert.False(t, loop.IsEntry("b"))
	require.Len(t, loop.External, 1)
	assert.Equal(t, "start", loop.External[0].Source)
	require.Len(t, loop.Entering["a"], 1)
	assert.Empty(t, loop.Entering["b"])
	assert.True(t, v.IsInternal(g.Edges[1]))
	assert.False(t, v.IsInternal(g.Edges[3]))
}

func TestValidate_RequiredFields(t *testing.T) {
	g := &models.WorkflowGraph{
		Blocks: map[string]*models.Block{"agent": block("agent", "agent")},
	}

	_, err := Validate(g, testSchemas())

	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "agent", missing.BlockID)
	assert.Equal(t, "model", missing.Field)

	g.Blocks["agent"].Config = map[string]any{"model": "gpt-4o", "temperature": "hot"}
	_, err = Validate(g, testSchemas())

	var invalid *InvalidConfigError
	require.ErrorAs(t, err, &invalid)

	g.Blocks["agent"].Config = map[string]any{"model": "gpt-4o", "temperature": "{{ .inputs.t }}"}
	_, err = Validate(g, testSchemas())
	require.NoError(t, err)

	g.Blocks["agent"].Config = map[string]any{}
	g.Blocks["agent"].Enabled = false
	_, err = Validate(g, testSchemas())
	require.NoError(t, err)
}
