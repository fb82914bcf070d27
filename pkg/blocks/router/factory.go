// Package router provides the multi-way branching block.
package router

import (
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

const Type = "router"

// Factory publishes the router block.
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
	return "Router"
}

// Description returns the block description.
func (f *Factory) Description() string {
	return "Routes execution to the handle whose case matches a value, or to the default handle."
}

// Definition returns the JSON schema of the router block. Handles are named by its cases.
func (f *Factory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Type:           Type,
		Name:           f.Name(),
		Description:    f.Description(),
		DynamicOutputs: true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{
					"description": "Value to match against the cases. Supports templating.",
				},
				"cases": map[string]any{
					"type":        "array",
					"description": "Ordered cases; the first whose value matches selects its handle.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"value":  map[string]any{},
							"handle": map[string]any{"type": "string"},
						},
						"required": []string{"value", "handle"},
					},
				},
				"default": map[string]any{
					"type":        "string",
					"description": "Handle selected when no case matches.",
					"default":     HandleDefault,
				},
			},
			"required": []string{"value", "cases"},
		},
	}
}

// Capabilities returns the route capability.
func (f *Factory) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{Type: protocol.CapabilityFunc(Route)}
}
