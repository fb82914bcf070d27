package invoker

import (
	"errors"
	"fmt"
)

// ErrTimeout marks an invocation that outlived its deadline.
var ErrTimeout = errors.New("block invocation timed out")

// BlockExecutionError is the only failure an invocation reports: the
// capability errored, returned success=false, panicked or timed out.
type BlockExecutionError struct {
	BlockID   string
	BlockName string
	Cause     error
}

func (e *BlockExecutionError) Error() string {
	name := e.BlockName
	if name == "" {
		name = e.BlockID
	}

	return fmt.Sprintf("block %s (%s) failed: %v", name, e.BlockID, e.Cause)
}

func (e *BlockExecutionError) Unwrap() error {
	return e.Cause
}

// UnknownCapabilityError reports a block whose type and operation map to no capability.
type UnknownCapabilityError struct {
	BlockID   string
	BlockType string
	Operation string
	Err       error
}

func (e *UnknownCapabilityError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("block %s: no capability for type %q operation %q: %v", e.BlockID, e.BlockType, e.Operation, e.Err)
	}

	return fmt.Sprintf("block %s: no capability for type %q: %v", e.BlockID, e.BlockType, e.Err)
}

func (e *UnknownCapabilityError) Unwrap() error {
	return e.Err
}
