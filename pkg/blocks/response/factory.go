// Package response provides the block that marks the answer of a run.
package response

import (
	"context"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

const Type = "response"

type Factory struct{}

func NewFactory() protocol.BlockFactory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return Type
}

func (f *Factory) Name() string {
	return "Response"
}

func (f *Factory) Description() string {
	return "Sets the output of the workflow run."
}

func (f *Factory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Type:        Type,
		Name:        f.Name(),
		Description: f.Description(),
		Response:    true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"data": map[string]any{
					"description": "Value returned as the run output. Supports templating.",
				},
				"status": map[string]any{
					"type":    "number",
					"default": 200,
				},
			},
		},
	}
}

func (f *Factory) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{Type: protocol.CapabilityFunc(Respond)}
}

// Respond outputs the rendered data, or the upstream outputs when no data is configured.
func Respond(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	data, ok := req.Config["data"]
	if !ok {
		data = req.Inputs
	}

	status := 200.0
	if s, ok := req.Config["status"].(float64); ok {
		status = s
	}

	return protocol.CallResult{Success: true, Output: map[string]any{"data": data, "status": status}}, nil
}
