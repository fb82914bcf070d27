package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is wrapped by every error Validate returns.
var ErrValidation = errors.New("workflow validation failed")

// ShapeError reports a structurally invalid document: missing ids, bad loop bounds.
type ShapeError struct {
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid workflow: %s %s", e.Field, e.Reason)
}

func (e *ShapeError) Unwrap() error { return ErrValidation }

// DanglingEdgeError reports an edge whose endpoint is not a block of the graph.
type DanglingEdgeError struct {
	EdgeID  string
	BlockID string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %s references unknown block %s", e.EdgeID, e.BlockID)
}

func (e *DanglingEdgeError) Unwrap() error { return ErrValidation }

// InvalidHandleError reports an edge using a handle its block type does not expose.
type InvalidHandleError struct {
	EdgeID  string
	BlockID string
	Handle  string
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("edge %s uses unknown handle %q on block %s", e.EdgeID, e.Handle, e.BlockID)
}

func (e *InvalidHandleError) Unwrap() error { return ErrValidation }

// UnknownBlockTypeError reports a block whose type has no definition.
type UnknownBlockTypeError struct {
	BlockID string
	Type    string
}

func (e *UnknownBlockTypeError) Error() string {
	return fmt.Sprintf("block %s has unknown type %q", e.BlockID, e.Type)
}

func (e *UnknownBlockTypeError) Unwrap() error { return ErrValidation }

// LoopMembershipError reports a loop naming an unknown block, or a block claimed by two loops.
type LoopMembershipError struct {
	LoopID  string
	BlockID string
	Other   string
}

func (e *LoopMembershipError) Error() string {
	if e.Other != "" {
		return fmt.Sprintf("block %s belongs to loops %s and %s", e.BlockID, e.Other, e.LoopID)
	}

	return fmt.Sprintf("loop %s references unknown block %s", e.LoopID, e.BlockID)
}

func (e *LoopMembershipError) Unwrap() error { return ErrValidation }

// CyclicGraphError names the blocks left on a cycle outside any loop scope.
type CyclicGraphError struct {
	BlockIDs []string
}

func (e *CyclicGraphError) Error() string {
	return "workflow contains a cycle through blocks: " + strings.Join(e.BlockIDs, ", ")
}

func (e *CyclicGraphError) Unwrap() error { return ErrValidation }

// MissingFieldError reports a required configuration field left empty.
type MissingFieldError struct {
	BlockID string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("block %s is missing required field %q", e.BlockID, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrValidation }

// InvalidConfigError reports configuration that does not match the block type schema.
type InvalidConfigError struct {
	BlockID string
	Details []string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("block %s has invalid configuration: %s", e.BlockID, strings.Join(e.Details, "; "))
}

func (e *InvalidConfigError) Unwrap() error { return ErrValidation }

// IsValidationError reports whether err came from graph validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
