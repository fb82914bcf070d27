// Package protocol defines the contracts between the engine and pluggable block types.
package protocol

import "context"

// CallRequest is everything a capability receives for one invocation.
// Config is already rendered, secrets substituted.
type CallRequest struct {
	ExecutionID   string
	BlockID       string
	BlockType     string
	Operation     string
	Config        map[string]any
	Secrets       map[string]string
	Inputs        map[string]any
	RuntimeInputs map[string]any
	LoopID        string
	Iteration     int
}

// CallResult is the normalized outcome of a capability call. Handle selects
// the single outgoing handle to activate; empty activates all of them.
type CallResult struct {
	Success bool
	Output  any
	Handle  string
	Error   string
}

// Capability performs the external operation behind a block type.
type Capability interface {
	Call(ctx context.Context, req CallRequest) (CallResult, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, req CallRequest) (CallResult, error)

// Call implements Capability.
func (f CapabilityFunc) Call(ctx context.Context, req CallRequest) (CallResult, error) {
	return f(ctx, req)
}
