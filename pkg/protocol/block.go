package protocol

import "github.com/dukex/blockflow/pkg/models"

// BlockFactory publishes a block type and the capabilities that serve it.
type BlockFactory interface {
	// ID returns the block type identifier
	ID() string

	// Name returns the human-readable name for this block type
	Name() string

	// Description returns a description of what this block does
	Description() string

	// Definition returns schema, handles and operation mapping of the block type
	Definition() *models.BlockDefinition

	// Capabilities returns the capabilities the definition refers to, keyed by capability id
	Capabilities() map[string]Capability
}
