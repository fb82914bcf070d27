// Package agent provides the block that asks a chat completion model.
package agent

import (
	"net/http"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

const Type = "agent"

// Factory publishes the agent block.
type Factory struct {
	completer *Completer
}

// NewFactory creates a factory for an OpenAI compatible API at baseURL.
// An empty baseURL targets api.openai.com.
func NewFactory(httpClient *http.Client, baseURL string) protocol.BlockFactory {
	return &Factory{completer: NewCompleter(httpClient, baseURL)}
}

// ID returns the block type.
func (f *Factory) ID() string {
	return Type
}

// Name returns the block name.
func (f *Factory) Name() string {
	return "Agent"
}

// Description returns the block description.
func (f *Factory) Description() string {
	return "Sends a prompt to a chat completion model and returns its answer."
}

// Definition returns the JSON schema of the agent block.
func (f *Factory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Type:         Type,
		Name:         f.Name(),
		Description:  f.Description(),
		SecretFields: []string{"apiKey"},
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model": map[string]any{
					"type":    "string",
					"default": DefaultModel,
				},
				"systemPrompt": map[string]any{"type": "string"},
				"prompt": map[string]any{
					"type":        "string",
					"description": "User message. Supports templating.",
				},
				"context": map[string]any{
					"description": "Extra data appended to the user message as JSON.",
				},
				"temperature": map[string]any{
					"type":    "number",
					"minimum": 0,
					"maximum": 2,
				},
				"maxTokens": map[string]any{"type": "number", "minimum": 1},
				"jsonResponse": map[string]any{
					"type":        "boolean",
					"description": "Ask the model for a JSON object and parse it.",
				},
				"apiKey": map[string]any{"type": "string"},
			},
			"required": []string{"prompt", "apiKey"},
		},
	}
}

// Capabilities returns the completion capability.
func (f *Factory) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{Type: f.completer}
}
