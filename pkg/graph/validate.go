// Package graph validates workflow documents and precomputes the topology the scheduler walks.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/template"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaProvider supplies block type definitions: handles and configuration schema.
type SchemaProvider interface {
	BlockDefinition(blockType string) (*models.BlockDefinition, bool)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks g and returns its topology. It fails fast with the first
// error found, in this order: document shape, block types, edges, loop
// membership, cycles, block configuration. With a nil provider, handle and
// configuration checks are skipped.
func Validate(g *models.WorkflowGraph, schemas SchemaProvider) (*Validated, error) {
	if g == nil {
		return nil, &ShapeError{Field: "graph", Reason: "is required"}
	}

	if err := checkShape(g); err != nil {
		return nil, err
	}

	v := newValidated(g)

	if schemas != nil {
		if err := v.resolveDefinitions(schemas); err != nil {
			return nil, err
		}
	}

	if err := v.checkEdges(); err != nil {
		return nil, err
	}

	if err := v.checkLoops(); err != nil {
		return nil, err
	}

	if err := v.sortTopologically(); err != nil {
		return nil, err
	}

	v.buildLoopTopology()

	if schemas != nil {
		if err := v.checkConfigs(); err != nil {
			return nil, err
		}
	}

	return v, nil
}

func checkShape(g *models.WorkflowGraph) error {
	err := validate.Struct(g)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]

			return &ShapeError{Field: fe.Namespace(), Reason: fmt.Sprintf("failed on '%s'", fe.Tag())}
		}

		return &ShapeError{Field: "graph", Reason: err.Error()}
	}

	for key, block := range g.Blocks {
		if block.ID != key {
			return &ShapeError{Field: "blocks[" + key + "].id", Reason: "does not match its key " + block.ID}
		}
	}

	for key, loop := range g.Loops {
		if loop.ID != key {
			return &ShapeError{Field: "loops[" + key + "].id", Reason: "does not match its key " + loop.ID}
		}
	}

	return nil
}

func (v *Validated) resolveDefinitions(schemas SchemaProvider) error {
	v.definitions = make(map[string]*models.BlockDefinition, len(v.BlockIDs))

	for _, id := range v.BlockIDs {
		block := v.Graph.Blocks[id]

		def, ok := schemas.BlockDefinition(block.Type)
		if !ok {
			return &UnknownBlockTypeError{BlockID: id, Type: block.Type}
		}

		v.definitions[id] = def
	}

	return nil
}

func (v *Validated) checkEdges() error {
	for _, edge := range v.Graph.Edges {
		for _, endpoint := range []string{edge.Source, edge.Target} {
			if _, ok := v.Graph.Blocks[endpoint]; !ok {
				return &DanglingEdgeError{EdgeID: edge.Key(), BlockID: endpoint}
			}
		}

		if v.definitions != nil {
			if !v.definitions[edge.Source].AcceptsOutput(edge.SourcePort()) {
				return &InvalidHandleError{EdgeID: edge.Key(), BlockID: edge.Source, Handle: edge.SourcePort()}
			}

			if !contains(v.definitions[edge.Target].InputHandles(), edge.TargetPort()) {
				return &InvalidHandleError{EdgeID: edge.Key(), BlockID: edge.Target, Handle: edge.TargetPort()}
			}
		}

		v.Outbound[edge.Source] = append(v.Outbound[edge.Source], edge)
		v.Inbound[edge.Target] = append(v.Inbound[edge.Target], edge)
	}

	return nil
}

func (v *Validated) checkLoops() error {
	for _, loopID := range v.LoopIDs {
		loop := v.Graph.Loops[loopID]

		for _, member := range loop.Nodes {
			if _, ok := v.Graph.Blocks[member]; !ok {
				return &LoopMembershipError{LoopID: loopID, BlockID: member}
			}

			if other, ok := v.LoopOf[member]; ok && other != loopID {
				return &LoopMembershipError{LoopID: loopID, BlockID: member, Other: other}
			}

			v.LoopOf[member] = loopID
		}
	}

	return nil
}

func (v *Validated) checkConfigs() error {
	for _, id := range v.BlockIDs {
		block := v.Graph.Blocks[id]
		if !block.Enabled {
			continue
		}

		def := v.definitions[id]
		if def.Schema == nil {
			continue
		}

		if err := checkConfig(block, def.Schema); err != nil {
			return err
		}
	}

	return nil
}

// checkConfig validates a block configuration against its JSON schema.
// Values holding expressions are only checked for presence since their
// type is known after rendering.
func checkConfig(block *models.Block, schema map[string]any) error {
	for _, field := range requiredFields(schema) {
		value, ok := block.Config[field]
		if !ok || value == nil || value == "" {
			return &MissingFieldError{BlockID: block.ID, Field: field}
		}
	}

	static := make(map[string]any, len(block.Config))

	for key, value := range block.Config {
		if s, ok := value.(string); ok && template.NeedsTemplating(s) {
			continue
		}

		static[key] = value
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(static))
	if err != nil {
		return &InvalidConfigError{BlockID: block.ID, Details: []string{err.Error()}}
	}

	if result.Valid() {
		return nil
	}

	var details []string

	for _, resultErr := range result.Errors() {
		if resultErr.Type() == "required" {
			continue
		}

		details = append(details, resultErr.String())
	}

	if len(details) == 0 {
		return nil
	}

	sort.Strings(details)

	return &InvalidConfigError{BlockID: block.ID, Details: details}
}

func requiredFields(schema map[string]any) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []any:
		fields := make([]string, 0, len(required))

		for _, r := range required {
			if s, ok := r.(string); ok {
				fields = append(fields, s)
			}
		}

		return fields
	default:
		return nil
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}
