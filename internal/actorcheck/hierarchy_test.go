package actorcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

func buildHierarchy(t *testing.T, tm *testModule) (map[string]*ActorGraph, *diagnostics.Manager) {
	t.Helper()
	tc, dm := classify(t, tm.Module)
	hb := NewHierarchyBuilder(tm.Module, dm, DefaultConfig(), tc.Actors())
	return hb.Build(), dm
}

func TestActorGraphCycleSoundness(t *testing.T) {
	g := NewActorGraph("test", []ir.TypeID{1, 2, 3})
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 1)

	cycles := g.FindCycles()
	require.Len(t, cycles, 1)
	// Reported once, rotated so the smallest node leads.
	assert.Equal(t, []ir.TypeID{1, 2, 3}, cycles[0])
	assert.False(t, g.IsAcyclic())

	g.RemoveEdge(3, 1)
	assert.Empty(t, g.FindCycles())
	assert.True(t, g.IsAcyclic())
}

func TestActorGraphSelfLoop(t *testing.T) {
	g := NewActorGraph("test", []ir.TypeID{1, 2})
	g.AddEdge(1, 1)
	g.AddEdge(1, 2)

	cycles := g.FindCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []ir.TypeID{1}, cycles[0])
}

func TestActorGraphTransitiveReduction(t *testing.T) {
	g := NewActorGraph("test", []ir.TypeID{1, 2, 3})
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(1, 3) // implied by 1->2->3

	g.TransitiveReduction()

	assert.True(t, g.HasEdge(1, 2))
	assert.True(t, g.HasEdge(2, 3))
	assert.False(t, g.HasEdge(1, 3))
	assert.Equal(t, 2, g.EdgeCount())
}

func TestActorGraphEdgeBookkeeping(t *testing.T) {
	g := NewActorGraph("test", []ir.TypeID{5, 9})
	g.AddEdge(5, 9)
	g.AddEdge(5, 9) // duplicate ignored

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 1, g.Degree(5))
	assert.Equal(t, 1, g.Degree(9))
	assert.Equal(t, []ir.TypeID{9}, g.Successors(5))
}

func TestHierarchySupervisionCycleFatal(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("ChainMessage", ir.Field{Name: "id", Type: tm.Int})
	a := tm.actor("Alpha", map[string]string{"supervises": "Beta"})
	b := tm.actor("Beta", map[string]string{"supervises": "Gamma"})
	c := tm.actor("Gamma", map[string]string{"supervises": "Alpha"})
	for _, id := range []ir.TypeID{a, b, c} {
		tm.handler(id, "handle_chain", msg)
	}

	_, dm := buildHierarchy(t, tm)

	errs := dm.ByCategory(diagnostics.CategoryHierarchyCycle)
	require.Len(t, errs, 1)
	assert.Equal(t, "ACT002", errs[0].Code)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, errs[0].Cycle)
	assert.Contains(t, errs[0].Message, "supervision cycle detected")
	assert.NotEmpty(t, dm.Fatal())
}

func TestHierarchyContradictionChildSupervisesParent(t *testing.T) {
	tm := newTestModule()
	parMsg := tm.message("ParentMessage", ir.Field{Name: "id", Type: tm.Int})
	chiMsg := tm.message("ChildMessage", ir.Field{Name: "id", Type: tm.Int})

	par := tm.actor("Parent", nil)
	chi := tm.AddType(ir.TypeDef{
		Name:   "Child",
		Kind:   ir.KindStruct,
		Parent: par,
		Attrs:  map[string]string{"actor": "", "supervises": "Parent"},
	})
	tm.handler(par, "handle_parent", parMsg)
	tm.handler(chi, "handle_child", chiMsg)

	_, dm := buildHierarchy(t, tm)

	errs := dm.ByCategory(diagnostics.CategoryHierarchyCycle)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "supervision-inheritance cycle")
	assert.ElementsMatch(t, []string{"Parent", "Child"}, errs[0].Cycle)
}

func TestHierarchyParentSupervisingChildIsLegal(t *testing.T) {
	tm := newTestModule()
	parMsg := tm.message("ParentMessage", ir.Field{Name: "id", Type: tm.Int})
	chiMsg := tm.message("ChildMessage", ir.Field{Name: "id", Type: tm.Int})

	par := tm.actor("Parent", map[string]string{"supervises": "Child"})
	chi := tm.AddType(ir.TypeDef{
		Name:   "Child",
		Kind:   ir.KindStruct,
		Parent: par,
		Attrs:  map[string]string{"actor": ""},
	})
	tm.handler(par, "handle_parent", parMsg)
	tm.handler(chi, "handle_child", chiMsg)

	graphs, dm := buildHierarchy(t, tm)

	assert.Empty(t, dm.ByCategory(diagnostics.CategoryHierarchyCycle))
	assert.Empty(t, dm.Fatal())
	assert.True(t, graphs[GraphSupervision].HasEdge(par, chi))
	assert.True(t, graphs[GraphInheritance].HasEdge(chi, par))
}

func TestHierarchyDeepSupervisionChain(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("ChainMessage", ir.Field{Name: "id", Type: tm.Int})

	names := []string{"Root", "Tier2", "Tier3", "Tier4", "Tier5", "Tier6"}
	for i, name := range names {
		attrs := map[string]string{}
		if i+1 < len(names) {
			attrs["supervises"] = names[i+1]
		}
		id := tm.actor(name, attrs)
		tm.handler(id, "handle_chain", msg)
	}

	_, dm := buildHierarchy(t, tm)

	warns := dm.ByCategory(diagnostics.CategoryDeepHierarchy)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Message, "6 levels deep (limit 5)")
	assert.Contains(t, warns[0].Message, "rooted at 'Root'")
	assert.Equal(t, names, warns[0].Offenders)
}

func TestHierarchyDelegationCycleAdvisory(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("PairMessage", ir.Field{Name: "id", Type: tm.Int})

	// Mutually referencing fields need the second id before it exists;
	// sequential assignment makes it predictable.
	left := ir.TypeID(tm.TypesCount())
	right := left + 1
	require.Equal(t, left, tm.actor("Left", nil, ir.Field{Name: "peer", Type: right}))
	require.Equal(t, right, tm.actor("Right", nil, ir.Field{Name: "peer", Type: left}))
	tm.handler(left, "handle_pair", msg)
	tm.handler(right, "handle_pair", msg)

	_, dm := buildHierarchy(t, tm)

	warns := dm.ByCategory(diagnostics.CategoryDelegationCycle)
	require.Len(t, warns, 1)
	assert.Equal(t, "ACT017", warns[0].Code)
	assert.Contains(t, warns[0].Message, "delegation cycle detected")
	assert.ElementsMatch(t, []string{"Left", "Right"}, warns[0].Cycle)

	// Livelock risk, not hierarchy corruption.
	assert.Empty(t, dm.Fatal())
}

func TestHierarchyIsolatedActor(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("SoloMessage", ir.Field{Name: "id", Type: tm.Int})
	solo := tm.actor("Hermit", nil)
	tm.handler(solo, "handle_solo", msg)

	_, dm := buildHierarchy(t, tm)

	warns := dm.ByCategory(diagnostics.CategoryIsolatedActor)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Message, "Hermit")
}
