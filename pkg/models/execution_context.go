package models

// BlockState tracks a block within one run, or within the current iteration for loop members.
type BlockState string

const (
	BlockStatePending   BlockState = "pending"
	BlockStateRunning   BlockState = "running"
	BlockStateCompleted BlockState = "completed"
	BlockStateSkipped   BlockState = "skipped"
	BlockStateFailed    BlockState = "failed"
)

// LoopState is the lifecycle of a loop scope within one run.
type LoopState string

const (
	LoopStateIdle      LoopState = "idle"
	LoopStateRunning   LoopState = "running"
	LoopStateCompleted LoopState = "completed"
	LoopStateSkipped   LoopState = "skipped"
)

// ExecutionContext holds the mutable state of one run. It is owned by the
// scheduler goroutine; invocations only ever see snapshots of it.
type ExecutionContext struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id,omitempty"`

	BlockOutputs    map[string]any        `json:"block_outputs"`
	IterationCounts map[string]int        `json:"iteration_counts"`
	RuntimeInputs   map[string]any        `json:"runtime_inputs"`
	Secrets         map[string]string     `json:"-"`
	BlockStates     map[string]BlockState `json:"block_states"`
	ActiveHandles   map[string]string     `json:"active_handles"`
	LoopStates      map[string]LoopState  `json:"loop_states"`
}

// NewExecutionContext creates an empty context for a run.
func NewExecutionContext(id string, inputs map[string]any, secrets map[string]string) *ExecutionContext {
	if inputs == nil {
		inputs = map[string]any{}
	}

	if secrets == nil {
		secrets = map[string]string{}
	}

	return &ExecutionContext{
		ID:              id,
		BlockOutputs:    make(map[string]any),
		IterationCounts: make(map[string]int),
		RuntimeInputs:   inputs,
		Secrets:         secrets,
		BlockStates:     make(map[string]BlockState),
		ActiveHandles:   make(map[string]string),
		LoopStates:      make(map[string]LoopState),
	}
}

// State returns the block state, pending when unknown.
func (ec *ExecutionContext) State(blockID string) BlockState {
	if s, ok := ec.BlockStates[blockID]; ok {
		return s
	}

	return BlockStatePending
}

// Loop returns the loop state, idle when unknown.
func (ec *ExecutionContext) Loop(loopID string) LoopState {
	if s, ok := ec.LoopStates[loopID]; ok {
		return s
	}

	return LoopStateIdle
}

// Complete records a block output and the handle it selected. An empty
// handle keeps every outgoing handle active.
func (ec *ExecutionContext) Complete(blockID string, output any, handle string) {
	ec.BlockStates[blockID] = BlockStateCompleted
	ec.BlockOutputs[blockID] = output

	if handle == "" {
		delete(ec.ActiveHandles, blockID)
	} else {
		ec.ActiveHandles[blockID] = handle
	}
}

// Skip marks a block as pruned for the run or the current iteration.
func (ec *ExecutionContext) Skip(blockID string) {
	ec.BlockStates[blockID] = BlockStateSkipped
	delete(ec.ActiveHandles, blockID)
}

// HandleActive reports whether a completed block let the given outgoing handle through.
func (ec *ExecutionContext) HandleActive(blockID, handle string) bool {
	selected, ok := ec.ActiveHandles[blockID]

	return !ok || selected == handle
}

// OutputsSnapshot returns a shallow copy of the block outputs.
func (ec *ExecutionContext) OutputsSnapshot() map[string]any {
	snapshot := make(map[string]any, len(ec.BlockOutputs))
	for id, out := range ec.BlockOutputs {
		snapshot[id] = out
	}

	return snapshot
}
