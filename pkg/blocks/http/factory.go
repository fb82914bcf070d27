// Package http provides the HTTP request block.
package http

import (
	nethttp "net/http"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

const Type = "http"

// Factory publishes the HTTP request block.
type Factory struct {
	client *nethttp.Client
}

// NewFactory creates a factory whose requests go through client. A nil
// client uses one with a 30 second timeout.
func NewFactory(client *nethttp.Client) protocol.BlockFactory {
	if client == nil {
		client = &nethttp.Client{Timeout: 30 * time.Second}
	}

	return &Factory{client: client}
}

// ID returns the block type.
func (f *Factory) ID() string {
	return Type
}

// Name returns the block name.
func (f *Factory) Name() string {
	return "HTTP Request"
}

// Description returns the block description.
func (f *Factory) Description() string {
	return "Performs an HTTP request with optional retries. Non-2xx responses fail the block."
}

// Definition returns the JSON schema of the HTTP request block.
func (f *Factory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Type:        Type,
		Name:        f.Name(),
		Description: f.Description(),
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "HTTP URL to request. Supports templating.",
					"examples": []string{
						"https://api.example.com/users",
						"https://{{.inputs.host}}/webhook/{{.blocks.create.body.id}}",
					},
				},
				"method": map[string]any{
					"type":    "string",
					"default": "GET",
					"enum":    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
				},
				"headers": map[string]any{
					"type":        "object",
					"description": "HTTP headers. Values support templating.",
				},
				"body": map[string]any{
					"description": "Request body. Objects and arrays are sent as JSON.",
				},
				"timeout": map[string]any{
					"type":        "number",
					"description": "Request timeout in seconds",
					"minimum":     1,
					"maximum":     300,
				},
				"retries": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"attempts": map[string]any{"type": "number", "minimum": 1, "maximum": 10},
						"delay":    map[string]any{"type": "number", "minimum": 0, "maximum": 30000},
					},
				},
			},
			"required": []string{"url"},
		},
	}
}

// Capabilities returns the request capability.
func (f *Factory) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{Type: &Requester{client: f.client}}
}
