package graph

import (
	"sort"

	"github.com/dukex/blockflow/pkg/models"
)

const loopNodePrefix = "loop:"

// Validated is a graph that passed validation, with its edges indexed and
// its loops analysed. It is read-only once returned.
type Validated struct {
	Graph *models.WorkflowGraph

	// BlockIDs and LoopIDs are sorted.
	BlockIDs []string
	LoopIDs  []string

	Inbound  map[string][]*models.Edge
	Outbound map[string][]*models.Edge

	// LoopOf maps a member block to its loop.
	LoopOf map[string]string
	Loops  map[string]*LoopTopology

	// Order is the topological order of the graph with each loop contracted
	// to a single node; loops appear as "loop:<id>".
	Order []string

	position    map[string]int
	definitions map[string]*models.BlockDefinition
}

// LoopTopology is the shape of one loop scope. Internal edges that close a
// cycle are back edges; the rest order members within an iteration.
type LoopTopology struct {
	Scope    *models.LoopScope
	Members  []string
	External []*models.Edge
	// Entering holds the external edges into each member.
	Entering  map[string][]*models.Edge
	Forward   map[string][]*models.Edge
	BackEdges []*models.Edge
}

// IsEntry reports whether member starts each iteration.
func (l *LoopTopology) IsEntry(member string) bool {
	return len(l.Forward[member]) == 0
}

func newValidated(g *models.WorkflowGraph) *Validated {
	v := &Validated{
		Graph:    g,
		BlockIDs: make([]string, 0, len(g.Blocks)),
		LoopIDs:  make([]string, 0, len(g.Loops)),
		Inbound:  make(map[string][]*models.Edge),
		Outbound: make(map[string][]*models.Edge),
		LoopOf:   make(map[string]string),
		Loops:    make(map[string]*LoopTopology),
		position: make(map[string]int),
	}

	for id := range g.Blocks {
		v.BlockIDs = append(v.BlockIDs, id)
	}

	for id := range g.Loops {
		v.LoopIDs = append(v.LoopIDs, id)
	}

	sort.Strings(v.BlockIDs)
	sort.Strings(v.LoopIDs)

	return v
}

// Block returns the block with the given id.
func (v *Validated) Block(id string) *models.Block {
	return v.Graph.Blocks[id]
}

// Definition returns the block type definition resolved during validation, or nil.
func (v *Validated) Definition(blockID string) *models.BlockDefinition {
	if v.definitions == nil {
		return nil
	}

	return v.definitions[blockID]
}

// IsInternal reports whether both ends of e sit in the same loop.
func (v *Validated) IsInternal(e *models.Edge) bool {
	loopID, ok := v.LoopOf[e.Source]

	return ok && v.LoopOf[e.Target] == loopID
}

// Position returns the topological rank of a block, shared by all members of a loop.
func (v *Validated) Position(blockID string) int {
	return v.position[v.node(blockID)]
}

// Terminal returns the blocks with no outgoing edges, sorted.
func (v *Validated) Terminal() []string {
	var terminal []string

	for _, id := range v.BlockIDs {
		if len(v.Outbound[id]) == 0 {
			terminal = append(terminal, id)
		}
	}

	return terminal
}

func (v *Validated) node(blockID string) string {
	if loopID, ok := v.LoopOf[blockID]; ok {
		return loopNodePrefix + loopID
	}

	return blockID
}

// sortTopologically runs Kahn's algorithm on the contracted graph. Nodes
// left over sit on, or between, cycles; those feeding nothing else in the
// remainder are trimmed so the error names the cycle itself.
func (v *Validated) sortTopologically() error {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)

	var nodes []string

	seen := make(map[string]bool)

	for _, id := range v.BlockIDs {
		n := v.node(id)
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
			inDegree[n] = 0
		}
	}

	for _, edge := range v.Graph.Edges {
		from, to := v.node(edge.Source), v.node(edge.Target)
		if from == to {
			if _, inLoop := v.LoopOf[edge.Source]; inLoop {
				continue
			}
		}

		dependents[from] = append(dependents[from], to)
		inDegree[to]++
	}

	sort.Strings(nodes)

	queue := make([]string, 0, len(nodes))

	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]string, 0, len(nodes))

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		for _, dependent := range dependents[n] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(nodes) {
		return &CyclicGraphError{BlockIDs: v.cycleBlocks(inDegree, dependents)}
	}

	v.Order = order

	for i, n := range order {
		v.position[n] = i
	}

	return nil
}

func (v *Validated) cycleBlocks(inDegree map[string]int, dependents map[string][]string) []string {
	remaining := make(map[string]bool)

	for n, degree := range inDegree {
		if degree > 0 {
			remaining[n] = true
		}
	}

	for changed := true; changed; {
		changed = false

		for n := range remaining {
			feeds := false

			for _, d := range dependents[n] {
				if remaining[d] {
					feeds = true

					break
				}
			}

			if !feeds {
				delete(remaining, n)

				changed = true
			}
		}
	}

	var blocks []string

	for _, id := range v.BlockIDs {
		if remaining[v.node(id)] {
			blocks = append(blocks, id)
		}
	}

	return blocks
}

func (v *Validated) buildLoopTopology() {
	for _, loopID := range v.LoopIDs {
		scope := v.Graph.Loops[loopID]
		topo := &LoopTopology{
			Scope:    scope,
			Entering: make(map[string][]*models.Edge),
			Forward:  make(map[string][]*models.Edge),
		}

		internalIn := make(map[string]int)
		internalOut := make(map[string][]*models.Edge)
		hasExternal := make(map[string]bool)

		for _, id := range v.BlockIDs {
			if v.LoopOf[id] == loopID {
				topo.Members = append(topo.Members, id)
			}
		}

		for _, edge := range v.Graph.Edges {
			if v.LoopOf[edge.Target] != loopID {
				continue
			}

			if v.IsInternal(edge) {
				internalIn[edge.Target]++
				internalOut[edge.Source] = append(internalOut[edge.Source], edge)
			} else {
				topo.External = append(topo.External, edge)
				topo.Entering[edge.Target] = append(topo.Entering[edge.Target], edge)
				hasExternal[edge.Target] = true
			}
		}

		back := findBackEdges(topo.Members, internalIn, hasExternal, internalOut)

		for _, edge := range v.Graph.Edges {
			if v.LoopOf[edge.Target] != loopID || !v.IsInternal(edge) {
				continue
			}

			if back[edge] {
				topo.BackEdges = append(topo.BackEdges, edge)
			} else {
				topo.Forward[edge.Target] = append(topo.Forward[edge.Target], edge)
			}
		}

		v.Loops[loopID] = topo
	}
}

// findBackEdges walks the loop members depth first, starting from members
// no internal edge feeds, then members fed from outside, then the rest. An
// edge reaching a member still on the walk stack closes a cycle.
func findBackEdges(
	members []string,
	internalIn map[string]int,
	hasExternal map[string]bool,
	out map[string][]*models.Edge,
) map[*models.Edge]bool {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int, len(members))
	back := make(map[*models.Edge]bool)

	var visit func(id string)

	visit = func(id string) {
		color[id] = grey

		for _, edge := range out[id] {
			switch color[edge.Target] {
			case grey:
				back[edge] = true
			case white:
				visit(edge.Target)
			}
		}

		color[id] = black
	}

	var roots []string

	for _, id := range members {
		if internalIn[id] == 0 {
			roots = append(roots, id)
		}
	}

	for _, id := range members {
		if internalIn[id] > 0 && hasExternal[id] {
			roots = append(roots, id)
		}
	}

	roots = append(roots, members...)

	for _, id := range roots {
		if color[id] == white {
			visit(id)
		}
	}

	return back
}
