package models

// BlockDefinition describes a block type: its configuration schema, its
// handles and which capability serves each operation.
type BlockDefinition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
	Inputs      []string       `json:"inputs,omitempty"`
	Outputs     []string       `json:"outputs,omitempty"`
	// DynamicOutputs accepts any outgoing handle; the block picks one per call.
	DynamicOutputs bool              `json:"dynamicOutputs,omitempty"`
	SecretFields   []string          `json:"secretFields,omitempty"`
	Response       bool              `json:"response,omitempty"`
	Operations     map[string]string `json:"operations,omitempty"`
	Capability     string            `json:"capability,omitempty"`
}

// InputHandles returns the accepted incoming handles.
func (d *BlockDefinition) InputHandles() []string {
	if len(d.Inputs) == 0 {
		return []string{DefaultTargetHandle}
	}

	return d.Inputs
}

// OutputHandles returns the accepted outgoing handles.
func (d *BlockDefinition) OutputHandles() []string {
	if len(d.Outputs) == 0 {
		return []string{DefaultSourceHandle}
	}

	return d.Outputs
}

// AcceptsOutput reports whether an edge may leave the block through handle.
func (d *BlockDefinition) AcceptsOutput(handle string) bool {
	if d.DynamicOutputs {
		return true
	}

	for _, h := range d.OutputHandles() {
		if h == handle {
			return true
		}
	}

	return false
}

// IsSecret reports whether field holds a credential.
func (d *BlockDefinition) IsSecret(field string) bool {
	for _, f := range d.SecretFields {
		if f == field {
			return true
		}
	}

	return false
}
