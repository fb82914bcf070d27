// Package models defines the workflow graph, run state and result types shared by the engine components.
package models

import "encoding/json"

const (
	// DefaultSourceHandle is the outgoing handle used when an edge does not name one.
	DefaultSourceHandle = "source"
	// DefaultTargetHandle is the incoming handle used when an edge does not name one.
	DefaultTargetHandle = "target"
)

// WorkflowGraph is the serialized workflow document handed to the engine.
type WorkflowGraph struct {
	Blocks map[string]*Block     `json:"blocks"          validate:"required,min=1,dive,required"`
	Edges  []*Edge               `json:"edges"           validate:"dive,required"`
	Loops  map[string]*LoopScope `json:"loops,omitempty" validate:"dive,required"`
}

// Position is the canvas location of a block. The engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Block is one typed unit of work in the graph.
type Block struct {
	ID       string         `json:"id"                 validate:"required"`
	Type     string         `json:"type"               validate:"required"`
	Name     string         `json:"name"`
	Position Position       `json:"position"`
	Enabled  bool           `json:"enabled"`
	Config   map[string]any `json:"config,omitempty"`
}

// UnmarshalJSON decodes a block, treating a missing "enabled" field as true.
func (b *Block) UnmarshalJSON(data []byte) error {
	type alias Block

	decoded := alias{Enabled: true}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*b = Block(decoded)

	return nil
}

// DisplayName returns the block name, falling back to its id.
func (b *Block) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}

	return b.ID
}

// Operation returns the operation selected in the block configuration, if any.
func (b *Block) Operation() string {
	op, _ := b.Config["operation"].(string)

	return op
}

// Edge connects an outgoing handle of one block to an incoming handle of another.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"                 validate:"required"`
	Target       string `json:"target"                 validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// SourcePort returns the outgoing handle, defaulting to DefaultSourceHandle.
func (e *Edge) SourcePort() string {
	if e.SourceHandle == "" {
		return DefaultSourceHandle
	}

	return e.SourceHandle
}

// TargetPort returns the incoming handle, defaulting to DefaultTargetHandle.
func (e *Edge) TargetPort() string {
	if e.TargetHandle == "" {
		return DefaultTargetHandle
	}

	return e.TargetHandle
}

// Key identifies the edge for logs and error messages.
func (e *Edge) Key() string {
	if e.ID != "" {
		return e.ID
	}

	return MakeHandleID(e.Source, e.SourcePort()) + "->" + MakeHandleID(e.Target, e.TargetPort())
}

// LoopScope groups member blocks that run repeatedly as a unit.
type LoopScope struct {
	ID            string   `json:"id"                  validate:"required"`
	Nodes         []string `json:"nodes"               validate:"required,min=1,dive,required"`
	MaxIterations int      `json:"maxIterations"       validate:"gte=1"`
	Condition     string   `json:"condition,omitempty"`
}

// Contains reports whether blockID is a member of the loop.
func (l *LoopScope) Contains(blockID string) bool {
	for _, id := range l.Nodes {
		if id == blockID {
			return true
		}
	}

	return false
}

// ParseHandleID parses a handle id in format "{block_id}:{handle}" into components.
func ParseHandleID(handleID string) (string, string, bool) {
	for i := len(handleID) - 1; i >= 0; i-- {
		if handleID[i] == ':' {
			return handleID[:i], handleID[i+1:], true
		}
	}

	return "", "", false
}

// MakeHandleID creates a handle id from block id and handle name.
func MakeHandleID(blockID, handle string) string {
	return blockID + ":" + handle
}
