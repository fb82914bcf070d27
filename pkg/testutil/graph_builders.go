// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/blockflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestBlock creates an enabled block with default values that can be overridden.
func CreateTestBlock(id, blockType string, overrides ...func(*models.Block)) *models.Block {
	block := &models.Block{
		ID:      id,
		Type:    blockType,
		Name:    id,
		Enabled: true,
		Config:  map[string]any{},
	}

	for _, override := range overrides {
		override(block)
	}

	return block
}

// WithConfig sets a config field of the block.
func WithConfig(key string, value any) func(*models.Block) {
	return func(b *models.Block) {
		b.Config[key] = value
	}
}

// Disabled turns the block off.
func Disabled() func(*models.Block) {
	return func(b *models.Block) {
		b.Enabled = false
	}
}

// Connect creates an edge between the default handles of two blocks.
func Connect(source, target string) *models.Edge {
	return &models.Edge{ID: source + "->" + target, Source: source, Target: target}
}

// ConnectHandle creates an edge leaving source through handle.
func ConnectHandle(source, handle, target string) *models.Edge {
	return &models.Edge{ID: source + ":" + handle + "->" + target, Source: source, Target: target, SourceHandle: handle}
}

// CreateTestGraph assembles blocks, edges and loops into a graph.
func CreateTestGraph(blocks []*models.Block, edges []*models.Edge, loops ...*models.LoopScope) *models.WorkflowGraph {
	g := &models.WorkflowGraph{
		Blocks: make(map[string]*models.Block, len(blocks)),
		Edges:  edges,
		Loops:  make(map[string]*models.LoopScope, len(loops)),
	}

	for _, block := range blocks {
		g.Blocks[block.ID] = block
	}

	for _, loop := range loops {
		g.Loops[loop.ID] = loop
	}

	if g.Edges == nil {
		g.Edges = []*models.Edge{}
	}

	return g
}

// CreateTestWorkflow wraps a graph in a stored workflow with a fresh id.
func CreateTestWorkflow(g *models.WorkflowGraph, overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:    uuid.NewString(),
		Name:  "Test Workflow",
		Owner: "test-user",
		Graph: g,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}
