// Package transform provides the block that reshapes data with an expression.
package transform

import (
	"context"
	"errors"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

const Type = "transform"

// Factory publishes the transform block.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.BlockFactory {
	return &Factory{}
}

// ID returns the block type.
func (f *Factory) ID() string {
	return Type
}

// Name returns the block name.
func (f *Factory) Name() string {
	return "Transform"
}

// Description returns the block description.
func (f *Factory) Description() string {
	return "Transforms data using Go template expressions over inputs and upstream outputs."
}

// Definition returns the JSON schema of the transform block.
func (f *Factory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Type:        Type,
		Name:        f.Name(),
		Description: f.Description(),
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"description": "Template expression or object of expressions. Rendered values keep their JSON type.",
					"examples": []any{
						`{{.blocks.fetch.body.name}}`,
						map[string]any{"id": "{{.inputs.id}}", "total": "{{.blocks.sum.result}}"},
						`{"summary": {{json .blocks.agent.response}}}`,
					},
				},
			},
			"required": []string{"expression"},
		},
	}
}

// Capabilities returns the transform capability.
func (f *Factory) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{Type: protocol.CapabilityFunc(Transform)}
}

// Transform outputs the already rendered expression under "result".
func Transform(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	expression, ok := req.Config["expression"]
	if !ok {
		return protocol.CallResult{}, errors.New("missing required field 'expression'")
	}

	return protocol.CallResult{Success: true, Output: map[string]any{"result": expression}}, nil
}
