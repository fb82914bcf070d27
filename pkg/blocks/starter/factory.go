// Package starter provides the block that opens a workflow with its runtime inputs.
package starter

import (
	"context"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

const Type = "starter"

// Factory publishes the starter block.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.BlockFactory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return Type
}

func (f *Factory) Name() string {
	return "Starter"
}

func (f *Factory) Description() string {
	return "Entry point of a workflow. Exposes the runtime inputs to downstream blocks."
}

func (f *Factory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Type:        Type,
		Name:        f.Name(),
		Description: f.Description(),
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (f *Factory) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{Type: protocol.CapabilityFunc(Start)}
}

// Start outputs the runtime inputs under "input".
func Start(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	input := req.RuntimeInputs
	if input == nil {
		input = map[string]any{}
	}

	return protocol.CallResult{Success: true, Output: map[string]any{"input": input}}, nil
}
