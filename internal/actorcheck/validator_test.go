package actorcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

func newTestValidator(t *testing.T, tm *testModule) (*Validator, *diagnostics.Manager, *TypeClassifier) {
	t.Helper()
	tc, dm := classify(t, tm.Module)
	return NewValidator(tm.Module, dm, tc.Actors(), tc.Messages()), dm, tc
}

func graphOver(name string, actors []*Actor) *ActorGraph {
	ids := make([]ir.TypeID, 0, len(actors))
	for _, a := range actors {
		ids = append(ids, a.Type)
	}
	return NewActorGraph(name, ids)
}

func TestValidatorHandlerCoverage(t *testing.T) {
	tm := newTestModule()
	handledMsg := tm.message("PrinterMessage", ir.Field{Name: "text", Type: tm.String})
	tm.message("PrinterCommand", ir.Field{Name: "op", Type: tm.Int})
	tm.message("StatusReport", ir.Field{Name: "code", Type: tm.Int})

	printer := tm.actor("Printer", nil)
	tm.handler(printer, "handle_print", handledMsg)

	v, dm, tc := newTestValidator(t, tm)
	v.CheckHandlers(graphOver(GraphInheritance, tc.Actors()))

	// PrinterCommand is addressed by name with no handler anywhere;
	// StatusReport addresses nobody and stays silent.
	warns := dm.ByCategory(diagnostics.CategoryMissingHandler)
	require.Len(t, warns, 1)
	assert.Equal(t, "ACT014", warns[0].Code)
	assert.Equal(t, []string{"Printer", "PrinterCommand"}, warns[0].Offenders)
}

func TestValidatorHandlerCoverageThroughInheritance(t *testing.T) {
	tm := newTestModule()
	task := tm.message("WorkerTask", ir.Field{Name: "id", Type: tm.Int})
	ping := tm.message("EliteWorkerPing", ir.Field{Name: "id", Type: tm.Int})

	// The parent carries the handler for the message addressed to the
	// subtype.
	base := tm.actor("Worker", nil)
	tm.handler(base, "handle_task", task)
	tm.handler(base, "handle_ping", ping)

	sub := tm.AddType(ir.TypeDef{
		Name:   "EliteWorker",
		Kind:   ir.KindStruct,
		Parent: base,
		Attrs:  map[string]string{"actor": ""},
	})
	tm.handler(sub, "handle_task", task)

	v, dm, tc := newTestValidator(t, tm)
	inheritance := graphOver(GraphInheritance, tc.Actors())
	inheritance.AddEdge(sub, base)
	v.CheckHandlers(inheritance)
	assert.Empty(t, dm.ByCategory(diagnostics.CategoryMissingHandler))

	// Severing the chain uncovers EliteWorkerPing.
	dm2 := diagnostics.NewManager()
	v2 := NewValidator(tm.Module, dm2, tc.Actors(), tc.Messages())
	v2.CheckHandlers(graphOver(GraphInheritance, tc.Actors()))

	warns := dm2.ByCategory(diagnostics.CategoryMissingHandler)
	require.Len(t, warns, 1)
	assert.Equal(t, []string{"EliteWorker", "EliteWorkerPing"}, warns[0].Offenders)
}

func TestValidatorRecipientFieldAddressing(t *testing.T) {
	tm := newTestModule()
	ping := tm.message("Ping", ir.Field{Name: "seq", Type: tm.Int})
	responder := tm.actor("Responder", nil)
	tm.handler(responder, "handle_ping", ping)

	refType := tm.AddType(ir.TypeDef{Name: "&Responder", Kind: ir.KindReference, Elem: responder})
	tm.message("Probe", ir.Field{Name: "target", Type: refType})

	v, dm, tc := newTestValidator(t, tm)
	v.CheckHandlers(graphOver(GraphInheritance, tc.Actors()))

	// Probe carries a recipient-shaped field naming Responder, which has no
	// handler for it.
	warns := dm.ByCategory(diagnostics.CategoryMissingHandler)
	require.Len(t, warns, 1)
	assert.Equal(t, []string{"Responder", "Probe"}, warns[0].Offenders)
}

func TestValidatorTargetAttributeAddressing(t *testing.T) {
	tm := newTestModule()
	ping := tm.message("Ping", ir.Field{Name: "seq", Type: tm.Int})
	sink := tm.actor("Sink", nil)
	tm.handler(sink, "handle_ping", ping)

	tm.AddType(ir.TypeDef{
		Name:   "Flush",
		Kind:   ir.KindStruct,
		Fields: []ir.Field{{Name: "hard", Type: tm.Bool}},
		Attrs:  map[string]string{"message": "", "target": "Sink"},
	})

	v, dm, tc := newTestValidator(t, tm)
	v.CheckHandlers(graphOver(GraphInheritance, tc.Actors()))

	warns := dm.ByCategory(diagnostics.CategoryMissingHandler)
	require.Len(t, warns, 1)
	assert.Equal(t, []string{"Sink", "Flush"}, warns[0].Offenders)
}

func TestValidatorCrossActorCallLegality(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("DepotMessage", ir.Field{Name: "id", Type: tm.Int})

	depot := tm.actor("Depot", nil, ir.Field{Name: "stock", Type: tm.Int, Mutable: true})
	tm.handler(depot, "handle_depot", msg)
	refill := tm.method(depot, "refill", nil, writeField(0))
	secret := tm.method(depot, "_audit", nil, readField(0))

	boss := tm.actor("Boss", nil)
	tm.handler(boss, "handle_depot", msg)
	tm.method(boss, "restock", nil, callFn(refill))
	tm.method(boss, "inspect", nil, callFn(secret))

	stranger := tm.actor("Stranger", nil)
	tm.handler(stranger, "handle_depot", msg)
	tm.method(stranger, "poke", nil, callFn(refill))

	v, dm, tc := newTestValidator(t, tm)
	supervision := graphOver(GraphSupervision, tc.Actors())
	supervision.AddEdge(boss, depot)
	inheritance := graphOver(GraphInheritance, tc.Actors())
	v.CheckCalls(supervision, inheritance)

	errs := dm.ByCategory(diagnostics.CategoryIllegalCrossActorCall)
	require.Len(t, errs, 2)

	// The supervisor reaches the public method but never the private one.
	assert.Equal(t, []string{"Boss.inspect", "_audit", "Depot"}, errs[0].Offenders)
	// Without a relationship even the public method is out of bounds.
	assert.Equal(t, []string{"Stranger.poke", "refill", "Depot"}, errs[1].Offenders)
	assert.Contains(t, errs[1].Message, "use message passing")
}

func TestValidatorParentCallsChildDirectly(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("NodeMessage", ir.Field{Name: "id", Type: tm.Int})

	parent := tm.actor("Node", nil)
	tm.handler(parent, "handle_node", msg)

	child := tm.AddType(ir.TypeDef{
		Name:   "NodeLeaf",
		Kind:   ir.KindStruct,
		Parent: parent,
		Attrs:  map[string]string{"actor": ""},
	})
	tm.handler(child, "handle_node", msg)
	prune := tm.method(child, "prune", nil)

	tm.method(parent, "prune_children", nil, callFn(prune))

	v, dm, tc := newTestValidator(t, tm)
	supervision := graphOver(GraphSupervision, tc.Actors())
	inheritance := graphOver(GraphInheritance, tc.Actors())
	inheritance.AddEdge(child, parent)
	v.CheckCalls(supervision, inheritance)

	assert.Empty(t, dm.ByCategory(diagnostics.CategoryIllegalCrossActorCall))
}

func TestValidatorMessagePrimitiveNamedCallee(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("RelayMessage", ir.Field{Name: "id", Type: tm.Int})

	relay := tm.actor("Relay", nil)
	tm.handler(relay, "handle_relay", msg)
	tell := tm.method(relay, "tell", nil)

	caller := tm.actor("Producer", nil)
	tm.handler(caller, "handle_relay", msg)
	tm.method(caller, "publish", nil, callFn(tell))

	v, dm, tc := newTestValidator(t, tm)
	v.CheckCalls(graphOver(GraphSupervision, tc.Actors()), graphOver(GraphInheritance, tc.Actors()))

	// Calling through the runtime's messaging surface is what the checker
	// wants people to do.
	assert.Empty(t, dm.ByCategory(diagnostics.CategoryIllegalCrossActorCall))
}

func TestValidatorCallSitesReportedOnce(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("DepotMessage", ir.Field{Name: "id", Type: tm.Int})

	depot := tm.actor("Depot", nil)
	tm.handler(depot, "handle_depot", msg)
	secret := tm.method(depot, "_audit", nil)

	nosy := tm.actor("Nosy", nil)
	tm.handler(nosy, "handle_depot", msg)
	tm.method(nosy, "snoop", nil, callFn(secret), callFn(secret), callFn(secret))

	v, dm, tc := newTestValidator(t, tm)
	v.CheckCalls(graphOver(GraphSupervision, tc.Actors()), graphOver(GraphInheritance, tc.Actors()))

	assert.Len(t, dm.ByCategory(diagnostics.CategoryIllegalCrossActorCall), 1)
}

func TestValidatorLifecycleHooks(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("PoolMessage", ir.Field{Name: "id", Type: tm.Int})

	bare := tm.actor("PoolBare", map[string]string{"supervision": "one_for_all"})
	tm.handler(bare, "handle_pool", msg)

	hooked := tm.actor("PoolHooked", map[string]string{"supervision": "one_for_one"})
	tm.handler(hooked, "handle_pool", msg)
	tm.method(hooked, "pre_restart", nil)

	recovering := tm.actor("PoolRecovering", map[string]string{"supervision": "all_for_one"})
	tm.handler(recovering, "handle_pool", msg)
	tm.method(recovering, "recover_state", nil)

	custom := tm.actor("PoolCustom", map[string]string{"supervision": "custom"})
	tm.handler(custom, "handle_pool", msg)

	escalating := tm.actor("PoolEscalating", map[string]string{"supervision": "escalate"})
	tm.handler(escalating, "handle_pool", msg)

	undeclared := tm.actor("PoolDefault", nil)
	tm.handler(undeclared, "handle_pool", msg)

	v, dm, _ := newTestValidator(t, tm)
	v.CheckLifecycles()

	warns := dm.ByCategory(diagnostics.CategoryMissingLifecycle)
	require.Len(t, warns, 2)
	assert.Equal(t, []string{"PoolBare", "pre_restart"}, warns[0].Offenders)
	assert.Equal(t, []string{"PoolCustom", "on_error"}, warns[1].Offenders)
}
