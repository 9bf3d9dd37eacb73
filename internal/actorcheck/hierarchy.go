package actorcheck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/position"
)

// The five relationship graphs derived over the actor set.
const (
	GraphSupervision = "supervision"
	GraphInheritance = "inheritance"
	GraphDelegation  = "delegation"
	GraphForwarding  = "forwarding"
	GraphCreation    = "creation"
)

// graphNames fixes the processing and reporting order of the graphs.
var graphNames = []string{
	GraphSupervision,
	GraphInheritance,
	GraphDelegation,
	GraphForwarding,
	GraphCreation,
}

// ActorGraph is one directed relationship graph over the actor set.
// Every actor is a node even when it has no edges; successor lists stay
// sorted and duplicate free.
type ActorGraph struct {
	Name  string
	nodes []ir.TypeID
	adj   map[ir.TypeID][]ir.TypeID
}

// NewActorGraph creates a graph seeded with the given nodes.
func NewActorGraph(name string, nodes []ir.TypeID) *ActorGraph {
	g := &ActorGraph{
		Name: name,
		adj:  make(map[ir.TypeID][]ir.TypeID),
	}
	g.nodes = append(g.nodes, nodes...)
	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i] < g.nodes[j] })
	return g
}

// Nodes returns all nodes in ascending id order.
func (g *ActorGraph) Nodes() []ir.TypeID { return g.nodes }

// Successors returns the ordered successor list of a node.
func (g *ActorGraph) Successors(id ir.TypeID) []ir.TypeID { return g.adj[id] }

// HasEdge reports whether the edge from->to exists.
func (g *ActorGraph) HasEdge(from, to ir.TypeID) bool {
	for _, s := range g.adj[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AddEdge inserts an edge, keeping successors sorted and unique.
func (g *ActorGraph) AddEdge(from, to ir.TypeID) {
	if g.HasEdge(from, to) {
		return
	}
	succs := append(g.adj[from], to)
	sort.Slice(succs, func(i, j int) bool { return succs[i] < succs[j] })
	g.adj[from] = succs
}

// RemoveEdge deletes the edge from->to if present.
func (g *ActorGraph) RemoveEdge(from, to ir.TypeID) {
	succs := g.adj[from]
	for i, s := range succs {
		if s == to {
			g.adj[from] = append(succs[:i:i], succs[i+1:]...)
			return
		}
	}
}

// EdgeCount returns the total number of edges.
func (g *ActorGraph) EdgeCount() int {
	n := 0
	for _, succs := range g.adj {
		n += len(succs)
	}
	return n
}

// Degree returns in-degree plus out-degree of a node.
func (g *ActorGraph) Degree(id ir.TypeID) int {
	n := len(g.adj[id])
	for from, succs := range g.adj {
		if from == id {
			continue
		}
		for _, s := range succs {
			if s == id {
				n++
			}
		}
	}
	return n
}

// FindCycles runs iterative depth-first search with an explicit stack and
// returns every cycle found via back edges, deduplicated up to rotation.
// Each cycle is the cyclic suffix of the search path, rotated so its
// smallest node comes first.
func (g *ActorGraph) FindCycles() [][]ir.TypeID {
	const (white, gray, black = 0, 1, 2)

	color := make(map[ir.TypeID]int, len(g.nodes))
	seen := make(map[string]bool)

	var cycles [][]ir.TypeID

	type frame struct {
		node ir.TypeID
		next int
	}

	for _, start := range g.nodes {
		if color[start] != white {
			continue
		}

		stack := []frame{{node: start}}
		var path []ir.TypeID

		for len(stack) > 0 {
			f := &stack[len(stack)-1]

			if f.next == 0 {
				color[f.node] = gray
				path = append(path, f.node)
			}

			succs := g.adj[f.node]
			if f.next < len(succs) {
				next := succs[f.next]
				f.next++

				switch color[next] {
				case white:
					stack = append(stack, frame{node: next})
				case gray:
					for i, n := range path {
						if n == next {
							cyc := rotateMinFirst(append([]ir.TypeID(nil), path[i:]...))
							key := cycleKey(cyc)
							if !seen[key] {
								seen[key] = true
								cycles = append(cycles, cyc)
							}
							break
						}
					}
				}
				continue
			}

			color[f.node] = black
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}

	return cycles
}

// IsAcyclic reports whether the graph currently has no cycle.
func (g *ActorGraph) IsAcyclic() bool { return len(g.FindCycles()) == 0 }

// TransitiveReduction drops every edge A->C for which a longer path A->..->C
// exists. Only valid on acyclic graphs; callers run cycle checks first.
func (g *ActorGraph) TransitiveReduction() {
	for _, a := range g.nodes {
		direct := g.adj[a]
		if len(direct) < 2 {
			continue
		}

		redundant := make(map[ir.TypeID]bool)
		for _, b := range direct {
			reach := g.reachableFrom(b)
			for _, c := range direct {
				if c != b && reach[c] {
					redundant[c] = true
				}
			}
		}

		for c := range redundant {
			g.RemoveEdge(a, c)
		}
	}
}

// reachableFrom returns every node reachable from start via one or more
// edges.
func (g *ActorGraph) reachableFrom(start ir.TypeID) map[ir.TypeID]bool {
	reach := make(map[ir.TypeID]bool)
	work := append([]ir.TypeID(nil), g.adj[start]...)

	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if reach[n] {
			continue
		}
		reach[n] = true
		work = append(work, g.adj[n]...)
	}

	return reach
}

// topoOrder returns a deterministic topological order, or false when the
// graph is cyclic.
func (g *ActorGraph) topoOrder() ([]ir.TypeID, bool) {
	indeg := make(map[ir.TypeID]int, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n] = 0
	}
	for _, succs := range g.adj {
		for _, s := range succs {
			indeg[s]++
		}
	}

	var ready []ir.TypeID
	for _, n := range g.nodes {
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}

	var order []ir.TypeID
	for len(ready) > 0 {
		// nodes slice is sorted, so ready stays sorted too.
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, s := range g.adj[n] {
			indeg[s]--
			if indeg[s] == 0 {
				ready = insertSorted(ready, s)
			}
		}
	}

	return order, len(order) == len(g.nodes)
}

func insertSorted(ids []ir.TypeID, id ir.TypeID) []ir.TypeID {
	i := sort.Search(len(ids), func(k int) bool { return ids[k] >= id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func rotateMinFirst(cycle []ir.TypeID) []ir.TypeID {
	if len(cycle) == 0 {
		return cycle
	}
	at := 0
	for i, n := range cycle {
		if n < cycle[at] {
			at = i
		}
	}
	return append(cycle[at:len(cycle):len(cycle)], cycle[:at]...)
}

func cycleKey(cycle []ir.TypeID) string {
	parts := make([]string, len(cycle))
	for i, n := range cycle {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

// HierarchyBuilder derives the five relationship graphs over the actor set,
// checks them for cycles and contradictions, reduces redundant transitive
// edges, and reports isolated actors and over-deep chains.
type HierarchyBuilder struct {
	module *ir.Module
	diags  *diagnostics.Manager
	config Config
	actors []*Actor
	byType map[ir.TypeID]*Actor
}

// NewHierarchyBuilder creates a builder over the classified actor set.
func NewHierarchyBuilder(module *ir.Module, diags *diagnostics.Manager, config Config, actors []*Actor) *HierarchyBuilder {
	byType := make(map[ir.TypeID]*Actor, len(actors))
	for _, a := range actors {
		byType[a.Type] = a
	}
	return &HierarchyBuilder{
		module: module,
		diags:  diags,
		config: config,
		actors: actors,
		byType: byType,
	}
}

// Build derives the graphs and runs every hierarchy check.
func (hb *HierarchyBuilder) Build() map[string]*ActorGraph {
	nodes := make([]ir.TypeID, 0, len(hb.actors))
	for _, a := range hb.actors {
		nodes = append(nodes, a.Type)
	}

	graphs := make(map[string]*ActorGraph, len(graphNames))
	for _, name := range graphNames {
		graphs[name] = NewActorGraph(name, nodes)
	}

	for _, a := range hb.actors {
		hb.superviseEdges(a, graphs[GraphSupervision])
		hb.inheritanceEdges(a, graphs[GraphInheritance])
		hb.delegationEdges(a, graphs[GraphDelegation])
		hb.messageEdges(a, graphs[GraphForwarding], graphs[GraphCreation])
	}

	hb.checkCycles(graphs)
	hb.checkContradictions(graphs[GraphSupervision], graphs[GraphInheritance])

	for _, name := range graphNames {
		if g := graphs[name]; g.IsAcyclic() {
			g.TransitiveReduction()
		}
	}

	hb.checkDepth(graphs[GraphSupervision])
	hb.checkDepth(graphs[GraphInheritance])
	hb.reportIsolated(graphs)

	return graphs
}

// superviseEdges collects supervision edges from the declared supervisee set
// and from message targets inside supervisor methods. Body-derived self
// edges are skipped; an explicit self supervision survives into the cycle
// check instead.
func (hb *HierarchyBuilder) superviseEdges(a *Actor, g *ActorGraph) {
	for _, s := range a.Supervised {
		g.AddEdge(a.Type, s)
	}

	for _, m := range a.Methods {
		if m.Kind != MethodSupervisor {
			continue
		}
		fn, ok := hb.module.FuncByID(m.Func)
		if !ok {
			continue
		}
		fn.Instrs(func(_, _ int, in ir.Instr) bool {
			if target, ok := in.TargetType(); ok {
				if sup := hb.resolveActor(target); sup != nil && sup.Type != a.Type {
					g.AddEdge(a.Type, sup.Type)
					a.AddSupervised(sup.Type)
				}
			}
			return true
		})
	}
}

// inheritanceEdges adds child->parent edges, filtered to actor parents.
func (hb *HierarchyBuilder) inheritanceEdges(a *Actor, g *ActorGraph) {
	def, ok := hb.module.TypeByID(a.Type)
	if !ok || def.Parent == ir.NoType {
		return
	}
	if parent := hb.byType[def.Parent]; parent != nil && parent.Type != a.Type {
		g.AddEdge(a.Type, parent.Type)
	}
}

// delegationEdges adds an edge for every actor-typed field.
func (hb *HierarchyBuilder) delegationEdges(a *Actor, g *ActorGraph) {
	for _, f := range a.Fields {
		if target := hb.resolveActor(f.Type); target != nil && target.Type != a.Type {
			g.AddEdge(a.Type, target.Type)
		}
	}
}

// messageEdges scans method bodies for send/forward and spawn operations.
func (hb *HierarchyBuilder) messageEdges(a *Actor, forwarding, creation *ActorGraph) {
	for _, m := range a.Methods {
		fn, ok := hb.module.FuncByID(m.Func)
		if !ok {
			continue
		}
		fn.Instrs(func(_, _ int, in ir.Instr) bool {
			target, ok := in.TargetType()
			if !ok {
				return true
			}
			actor := hb.resolveActor(target)
			if actor == nil || actor.Type == a.Type {
				return true
			}

			switch in.Op {
			case ir.OpSend, ir.OpTell, ir.OpAsk, ir.OpForward:
				forwarding.AddEdge(a.Type, actor.Type)
			case ir.OpSpawn, ir.OpActorOf:
				creation.AddEdge(a.Type, actor.Type)
			}
			return true
		})
	}
}

func (hb *HierarchyBuilder) resolveActor(id ir.TypeID) *Actor {
	return derefActor(hb.module, hb.byType, id)
}

func (hb *HierarchyBuilder) actorName(id ir.TypeID) string {
	return actorLabel(hb.byType, id)
}

func (hb *HierarchyBuilder) cycleNames(cycle []ir.TypeID) []string {
	return actorLabels(hb.byType, cycle)
}

func (hb *HierarchyBuilder) cycleSpan(cycle []ir.TypeID) position.Span {
	return firstActorSpan(hb.byType, cycle)
}

// checkCycles reports supervision and inheritance cycles as fatal errors and
// cycles in the remaining graphs as advisories.
func (hb *HierarchyBuilder) checkCycles(graphs map[string]*ActorGraph) {
	for _, name := range graphNames {
		for _, cycle := range graphs[name].FindCycles() {
			names := hb.cycleNames(cycle)
			span := hb.cycleSpan(cycle)

			switch name {
			case GraphSupervision, GraphInheritance:
				hb.diags.Add(diagnostics.HierarchyCycleError(name, names, span))
			default:
				hb.diags.Add(diagnostics.DelegationCycleWarning(name, names, span))
			}
		}
	}
}

// checkContradictions rejects contradictory authority orderings that only
// appear when supervision and inheritance are combined, e.g. an actor
// supervising its own ancestor. Supervision edges already point down the
// authority order; inheritance edges point child to parent, so they enter
// the combined graph reversed. A cycle then means the two relations rank
// some pair of actors in opposite orders. A parent supervising its own child
// ranks them the same way twice and stays legal.
func (hb *HierarchyBuilder) checkContradictions(supervision, inheritance *ActorGraph) {
	revInherit := NewActorGraph("inheritance-reversed", inheritance.Nodes())
	for _, n := range inheritance.Nodes() {
		for _, s := range inheritance.Successors(n) {
			revInherit.AddEdge(s, n)
		}
	}

	union := NewActorGraph("supervision-inheritance", supervision.Nodes())
	for _, n := range supervision.Nodes() {
		for _, s := range supervision.Successors(n) {
			union.AddEdge(n, s)
		}
		for _, s := range revInherit.Successors(n) {
			union.AddEdge(n, s)
		}
	}

	for _, cycle := range union.FindCycles() {
		if withinOne(cycle, supervision) || withinOne(cycle, revInherit) {
			// Already reported by the single-graph check.
			continue
		}
		hb.diags.Add(diagnostics.HierarchyCycleError("supervision-inheritance",
			hb.cycleNames(cycle), hb.cycleSpan(cycle)))
	}
}

// withinOne reports whether every edge of the cycle exists in a single
// graph.
func withinOne(cycle []ir.TypeID, g *ActorGraph) bool {
	for i, from := range cycle {
		to := cycle[(i+1)%len(cycle)]
		if !g.HasEdge(from, to) {
			return false
		}
	}
	return true
}

// checkDepth warns about chains longer than the configured limit, carrying
// the full path from the root. Skipped for cyclic graphs, whose cycles were
// already reported as errors.
func (hb *HierarchyBuilder) checkDepth(g *ActorGraph) {
	order, acyclic := g.topoOrder()
	if !acyclic {
		return
	}

	longest := make(map[ir.TypeID]int, len(order))
	nextHop := make(map[ir.TypeID]ir.TypeID, len(order))

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		longest[n] = 1
		for _, s := range g.Successors(n) {
			if longest[s]+1 > longest[n] {
				longest[n] = longest[s] + 1
				nextHop[n] = s
			}
		}
	}

	indeg := make(map[ir.TypeID]int, len(order))
	for _, n := range g.Nodes() {
		for _, s := range g.Successors(n) {
			indeg[s]++
		}
	}

	for _, n := range g.Nodes() {
		if indeg[n] != 0 || longest[n] <= hb.config.MaxHierarchyDepth {
			continue
		}

		path := []string{hb.actorName(n)}
		for at := n; ; {
			next, ok := nextHop[at]
			if !ok {
				break
			}
			path = append(path, hb.actorName(next))
			at = next
		}

		span := position.Span{}
		if a := hb.byType[n]; a != nil {
			span = a.Span
		}
		hb.diags.Add(diagnostics.DeepHierarchyWarning(g.Name, path, hb.config.MaxHierarchyDepth, span))
	}
}

// reportIsolated warns about actors with no edge in any graph.
func (hb *HierarchyBuilder) reportIsolated(graphs map[string]*ActorGraph) {
	for _, a := range hb.actors {
		connected := false
		for _, name := range graphNames {
			if graphs[name].Degree(a.Type) > 0 {
				connected = true
				break
			}
		}
		if !connected {
			hb.diags.Add(diagnostics.IsolatedActorWarning(a.Name, a.Span))
		}
	}
}
