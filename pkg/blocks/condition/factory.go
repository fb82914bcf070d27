// Package condition provides the two-way branching block.
package condition

import (
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

const Type = "condition"

// Factory publishes the condition block.
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
	return "Condition"
}

// Description returns the block description.
func (f *Factory) Description() string {
	return "Evaluates a condition and routes execution to the true or false handle."
}

// Definition returns the JSON schema and handles of the condition block.
func (f *Factory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Type:        Type,
		Name:        f.Name(),
		Description: f.Description(),
		Outputs:     []string{HandleTrue, HandleFalse},
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"condition": map[string]any{
					"type":        "string",
					"description": "Condition expression to evaluate. Supports templating and == / != comparisons.",
					"examples": []string{
						`{{.inputs.status}} == "active"`,
						`{{gt .blocks.score.value 75}}`,
						`{{.blocks.check.result}}`,
					},
				},
			},
			"required": []string{"condition"},
		},
	}
}

// Capabilities returns the evaluate capability.
func (f *Factory) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{Type: protocol.CapabilityFunc(Evaluate)}
}
