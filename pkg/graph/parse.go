package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dukex/blockflow/pkg/models"
)

// Parse decodes a serialized workflow document.
func Parse(data []byte) (*models.WorkflowGraph, error) {
	var g models.WorkflowGraph

	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: decode document: %w", ErrValidation, err)
	}

	Normalize(&g)

	return &g, nil
}

// Decode reads and parses a workflow document from r.
func Decode(r io.Reader) (*models.WorkflowGraph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	return Parse(data)
}

// Normalize fills ids the document may leave implicit.
func Normalize(g *models.WorkflowGraph) {
	for key, block := range g.Blocks {
		if block != nil && block.ID == "" {
			block.ID = key
		}

		if block != nil && block.Config == nil {
			block.Config = map[string]any{}
		}
	}

	for key, loop := range g.Loops {
		if loop != nil && loop.ID == "" {
			loop.ID = key
		}
	}

	for i, edge := range g.Edges {
		if edge != nil && edge.ID == "" {
			edge.ID = fmt.Sprintf("edge-%d", i)
		}
	}
}
