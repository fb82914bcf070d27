// Package resolver decides which blocks of a run can start, and which can never run.
package resolver

import (
	"sort"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/models"
)

// EdgeState is how far an edge is from letting its target run.
type EdgeState int

const (
	// EdgeUnresolved waits on its source.
	EdgeUnresolved EdgeState = iota
	// EdgeActive carries its source output to the target.
	EdgeActive
	// EdgeInactive is resolved but will never fire: disabled, skipped or unselected source.
	EdgeInactive
)

// Readiness is the set of transitions the scheduler can apply now.
type Readiness struct {
	Blocks     []string
	Skip       []string
	EnterLoops []string
	SkipLoops  []string
}

// Empty reports whether there is nothing to apply.
func (r Readiness) Empty() bool {
	return len(r.Blocks) == 0 && len(r.Skip) == 0 && len(r.EnterLoops) == 0 && len(r.SkipLoops) == 0
}

// Resolver reads a run's context and reports readiness. It never mutates the context.
type Resolver struct {
	graph *graph.Validated
}

// New creates a resolver for v.
func New(v *graph.Validated) *Resolver {
	return &Resolver{graph: v}
}

// Ready computes readiness for the current context. Ready blocks are ordered
// by topological position, then id.
func (r *Resolver) Ready(ec *models.ExecutionContext) Readiness {
	var out Readiness

	for _, id := range r.graph.BlockIDs {
		if _, member := r.graph.LoopOf[id]; member {
			continue
		}

		if ec.State(id) != models.BlockStatePending {
			continue
		}

		if !r.graph.Block(id).Enabled {
			out.Skip = append(out.Skip, id)

			continue
		}

		switch r.judge(ec, r.graph.Inbound[id]) {
		case EdgeActive:
			out.Blocks = append(out.Blocks, id)
		case EdgeInactive:
			out.Skip = append(out.Skip, id)
		}
	}

	for _, loopID := range r.graph.LoopIDs {
		topo := r.graph.Loops[loopID]

		switch ec.Loop(loopID) {
		case models.LoopStateIdle:
			switch r.judge(ec, topo.External) {
			case EdgeActive:
				out.EnterLoops = append(out.EnterLoops, loopID)
			case EdgeInactive:
				out.SkipLoops = append(out.SkipLoops, loopID)
			}
		case models.LoopStateRunning:
			ready, skip := r.readyMembers(ec, topo)
			out.Blocks = append(out.Blocks, ready...)
			out.Skip = append(out.Skip, skip...)
		}
	}

	sort.SliceStable(out.Blocks, func(i, j int) bool {
		pi, pj := r.graph.Position(out.Blocks[i]), r.graph.Position(out.Blocks[j])
		if pi != pj {
			return pi < pj
		}

		return out.Blocks[i] < out.Blocks[j]
	})

	return out
}

// readyMembers applies the readiness rule inside the current iteration. A
// member is judged on the external edges into it plus its forward internal
// edges; back edges are ignored.
func (r *Resolver) readyMembers(ec *models.ExecutionContext, topo *graph.LoopTopology) ([]string, []string) {
	var ready, skip []string

	for _, member := range topo.Members {
		if ec.State(member) != models.BlockStatePending {
			continue
		}

		inbound := make([]*models.Edge, 0, len(topo.Entering[member])+len(topo.Forward[member]))
		inbound = append(inbound, topo.Entering[member]...)
		inbound = append(inbound, topo.Forward[member]...)

		switch r.judge(ec, inbound) {
		case EdgeActive:
			ready = append(ready, member)
		case EdgeInactive:
			skip = append(skip, member)
		}
	}

	return ready, skip
}

// judge folds inbound edges: active once all are resolved and one is
// active, inactive once all are resolved and none is, unresolved otherwise.
// No edges at all counts as active.
func (r *Resolver) judge(ec *models.ExecutionContext, edges []*models.Edge) EdgeState {
	if len(edges) == 0 {
		return EdgeActive
	}

	active := false

	for _, edge := range edges {
		switch r.EdgeState(ec, edge) {
		case EdgeUnresolved:
			return EdgeUnresolved
		case EdgeActive:
			active = true
		}
	}

	if active {
		return EdgeActive
	}

	return EdgeInactive
}

// EdgeState classifies one edge for the current context. An edge leaving a
// loop stays unresolved until the loop finishes, then follows the member's
// state in the final iteration.
func (r *Resolver) EdgeState(ec *models.ExecutionContext, edge *models.Edge) EdgeState {
	source := r.graph.Block(edge.Source)
	if !source.Enabled {
		return EdgeInactive
	}

	if loopID, member := r.graph.LoopOf[edge.Source]; member && !r.graph.IsInternal(edge) {
		switch ec.Loop(loopID) {
		case models.LoopStateSkipped:
			return EdgeInactive
		case models.LoopStateCompleted:
		default:
			return EdgeUnresolved
		}
	}

	switch ec.State(edge.Source) {
	case models.BlockStateCompleted:
		if ec.HandleActive(edge.Source, edge.SourcePort()) {
			return EdgeActive
		}

		return EdgeInactive
	case models.BlockStateSkipped:
		return EdgeInactive
	default:
		return EdgeUnresolved
	}
}

// Unresolved returns blocks that have neither finished nor been skipped.
func (r *Resolver) Unresolved(ec *models.ExecutionContext) []string {
	var pending []string

	for _, id := range r.graph.BlockIDs {
		switch ec.State(id) {
		case models.BlockStateCompleted, models.BlockStateSkipped:
			if loopID, member := r.graph.LoopOf[id]; member {
				if s := ec.Loop(loopID); s != models.LoopStateCompleted && s != models.LoopStateSkipped {
					pending = append(pending, id)
				}
			}
		default:
			pending = append(pending, id)
		}
	}

	return pending
}
