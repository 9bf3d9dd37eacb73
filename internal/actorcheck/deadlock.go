package actorcheck

import (
	"sort"
	"strings"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

// maxSharedResourceScore caps how many shared-resource fields can raise a
// cycle's severity.
const maxSharedResourceScore = 3

// pairKey identifies one directed communication edge.
type pairKey struct {
	from, to ir.TypeID
}

// commStats aggregates the message operations behind one edge. An edge is
// synchronous when at least one of its operations is an ask.
type commStats struct {
	asks  int
	total int
}

// DeadlockDetector builds the inter-actor communication graph and scores its
// cycles. The severity model is heuristic policy, not a soundness proof: it
// ranks cycles by how tightly they couple (inverse length), how much of the
// traffic blocks (ask fraction), how much shared external state the members
// hold, and how critical the members are to the rest of the system.
type DeadlockDetector struct {
	module *ir.Module
	diags  *diagnostics.Manager
	cfg    Config
	actors []*Actor
	byType map[ir.TypeID]*Actor

	graph *ActorGraph
	stats map[pairKey]*commStats
	// referencers counts the distinct actors communicating toward each
	// target. Hubs referenced by more than a third of all actors count as
	// critical.
	referencers map[ir.TypeID]int
}

// NewDeadlockDetector creates a detector over the classified actor set.
func NewDeadlockDetector(module *ir.Module, diags *diagnostics.Manager, cfg Config, actors []*Actor) *DeadlockDetector {
	byType := make(map[ir.TypeID]*Actor, len(actors))
	for _, a := range actors {
		byType[a.Type] = a
	}
	return &DeadlockDetector{
		module: module,
		diags:  diags,
		cfg:    cfg,
		actors: actors,
		byType: byType,
	}
}

// Detect builds the communication graph, enumerates its cycles and reports
// every cycle at warning or info level depending on the severity cutoff.
// The returned candidates are ordered by descending severity.
func (dd *DeadlockDetector) Detect() []DeadlockCandidate {
	dd.buildGraph()

	for _, a := range dd.actors {
		a.Critical = dd.isCritical(a.Type)
	}

	cycles := dd.graph.FindCycles()
	candidates := make([]DeadlockCandidate, 0, len(cycles))
	for _, cycle := range cycles {
		candidates = append(candidates, dd.score(cycle))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Severity != candidates[j].Severity {
			return candidates[i].Severity > candidates[j].Severity
		}
		return strings.Join(candidates[i].CycleNames, ",") < strings.Join(candidates[j].CycleNames, ",")
	})

	for _, c := range candidates {
		span := firstActorSpan(dd.byType, c.Cycle)
		if c.Severity > dd.cfg.DeadlockCutoff {
			dd.diags.Add(diagnostics.DeadlockRiskWarning(c.CycleNames, c.Severity, span))
		} else {
			dd.diags.Add(diagnostics.DeadlockCandidateInfo(c.CycleNames, c.Severity, span))
		}
	}

	return candidates
}

// buildGraph scans every actor method for message and spawn operations whose
// target resolves to an actor. Self edges stay in this graph: an actor that
// asks itself deadlocks on its own mailbox.
func (dd *DeadlockDetector) buildGraph() {
	nodes := make([]ir.TypeID, 0, len(dd.actors))
	for _, a := range dd.actors {
		nodes = append(nodes, a.Type)
	}

	dd.graph = NewActorGraph("communication", nodes)
	dd.stats = make(map[pairKey]*commStats)
	fromSets := make(map[ir.TypeID]map[ir.TypeID]bool)

	for _, a := range dd.actors {
		for _, m := range a.Methods {
			fn, ok := dd.module.FuncByID(m.Func)
			if !ok {
				continue
			}
			fn.Instrs(func(_, _ int, in ir.Instr) bool {
				target, ok := in.TargetType()
				if !ok {
					return true
				}
				to := derefActor(dd.module, dd.byType, target)
				if to == nil {
					return true
				}

				dd.graph.AddEdge(a.Type, to.Type)

				key := pairKey{from: a.Type, to: to.Type}
				s := dd.stats[key]
				if s == nil {
					s = &commStats{}
					dd.stats[key] = s
				}
				s.total++
				if in.Op == ir.OpAsk {
					s.asks++
				}

				if fromSets[to.Type] == nil {
					fromSets[to.Type] = make(map[ir.TypeID]bool)
				}
				fromSets[to.Type][a.Type] = true
				return true
			})
		}
	}

	dd.referencers = make(map[ir.TypeID]int, len(fromSets))
	for to, froms := range fromSets {
		dd.referencers[to] = len(froms)
	}
}

// score computes the weighted severity of one cycle.
func (dd *DeadlockDetector) score(cycle []ir.TypeID) DeadlockCandidate {
	w := dd.cfg.Weights

	// A self cycle is the tightest possible coupling.
	invLen := 1.0
	if len(cycle) > 1 {
		invLen = 1.0 / float64(len(cycle)-1)
	}

	sync := 0
	for i, from := range cycle {
		to := cycle[(i+1)%len(cycle)]
		if s := dd.stats[pairKey{from: from, to: to}]; s != nil && s.asks > 0 {
			sync++
		}
	}
	syncFrac := float64(sync) / float64(len(cycle))

	shared := 0
	for _, id := range cycle {
		if a := dd.byType[id]; a != nil {
			for _, f := range a.Fields {
				if f.SharedResource {
					shared++
				}
			}
		}
	}
	if shared > maxSharedResourceScore {
		shared = maxSharedResourceScore
	}
	sharedScore := float64(shared) / float64(maxSharedResourceScore)

	critical := 0
	for _, id := range cycle {
		if a := dd.byType[id]; a != nil && a.Critical {
			critical++
		}
	}
	critFrac := float64(critical) / float64(len(cycle))

	severity := w.CycleLength*invLen +
		w.SyncFraction*syncFrac +
		w.SharedResources*sharedScore +
		w.CriticalFraction*critFrac

	return DeadlockCandidate{
		Cycle:      cycle,
		CycleNames: actorLabels(dd.byType, cycle),
		Severity:   severity,
	}
}

// isCritical flags actors whose failure stalls more than themselves: marked
// critical, named critical, or referenced by more than a third of all
// actors.
func (dd *DeadlockDetector) isCritical(id ir.TypeID) bool {
	a := dd.byType[id]
	if a == nil {
		return false
	}

	if _, ok := dd.module.TypeAttr(id, "critical"); ok {
		return true
	}
	if strings.Contains(strings.ToLower(a.Name), "critical") {
		return true
	}

	return dd.referencers[id]*3 > len(dd.actors)
}
