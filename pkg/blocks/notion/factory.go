// Package notion provides the block that reads and writes Notion pages and databases.
package notion

import (
	"net/http"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

const (
	Type = "notion"

	CapabilityRead           = "notion_read"
	CapabilityWrite          = "notion_write"
	CapabilityDatabaseRead   = "notion_database_read"
	CapabilityDatabaseWrite  = "notion_database_write"
	CapabilityDatabaseUpdate = "notion_database_update"
)

// Factory publishes the notion block.
type Factory struct {
	client *Client
}

// NewFactory creates a factory calling the Notion API at baseURL. An empty
// baseURL targets api.notion.com.
func NewFactory(httpClient *http.Client, baseURL string) protocol.BlockFactory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Factory{client: NewClient(httpClient, baseURL)}
}

// ID returns the block type.
func (f *Factory) ID() string {
	return Type
}

// Name returns the block name.
func (f *Factory) Name() string {
	return "Notion"
}

// Description returns the block description.
func (f *Factory) Description() string {
	return "Read and write Notion pages and database records."
}

// Definition maps each operation to its capability and marks apiKey as a secret.
func (f *Factory) Definition() *models.BlockDefinition {
	return &models.BlockDefinition{
		Type:         Type,
		Name:         f.Name(),
		Description:  f.Description(),
		SecretFields: []string{"apiKey"},
		Capability:   CapabilityRead,
		Operations: map[string]string{
			"read_notion":     CapabilityRead,
			"write_notion":    CapabilityWrite,
			"read_database":   CapabilityDatabaseRead,
			"write_database":  CapabilityDatabaseWrite,
			"update_database": CapabilityDatabaseUpdate,
		},
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type": "string",
					"enum": []string{"read_notion", "write_notion", "read_database", "write_database", "update_database"},
				},
				"apiKey":     map[string]any{"type": "string", "description": "Notion integration token"},
				"pageId":     map[string]any{"type": "string"},
				"databaseId": map[string]any{"type": "string"},
				"content":    map[string]any{"type": "string", "description": "Text appended by write_notion"},
				"properties": map[string]any{"type": "object"},
				"filter":     map[string]any{"type": "object"},
				"sorts":      map[string]any{"type": "array"},
				"pageSize":   map[string]any{"type": "number", "minimum": 1, "maximum": 100},
			},
			"required": []string{"operation", "apiKey"},
		},
	}
}

// Capabilities returns one capability per Notion operation.
func (f *Factory) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{
		CapabilityRead:           protocol.CapabilityFunc(f.client.ReadPage),
		CapabilityWrite:          protocol.CapabilityFunc(f.client.WritePage),
		CapabilityDatabaseRead:   protocol.CapabilityFunc(f.client.QueryDatabase),
		CapabilityDatabaseWrite:  protocol.CapabilityFunc(f.client.CreateRecord),
		CapabilityDatabaseUpdate: protocol.CapabilityFunc(f.client.UpdateRecord),
	}
}
