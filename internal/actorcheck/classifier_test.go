package actorcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

func classify(t *testing.T, m *ir.Module) (*TypeClassifier, *diagnostics.Manager) {
	t.Helper()
	dm := diagnostics.NewManager()
	tc := NewTypeClassifier(m, dm)
	require.NoError(t, tc.ClassifyAll())
	return tc, dm
}

func TestClassifierCounterScenario(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("CounterMessage", ir.Field{Name: "amount", Type: tm.Int})
	counter := tm.actor("Counter", nil, ir.Field{Name: "count", Type: tm.Int, Mutable: true})
	plain := tm.AddType(ir.TypeDef{Name: "Config", Kind: ir.KindStruct,
		Fields: []ir.Field{{Name: "limit", Type: tm.Int}}})
	tm.handler(counter, "handle_increment", msg)

	tc, _ := classify(t, tm.Module)

	for id, want := range map[ir.TypeID]Classification{
		counter: ClassActor,
		msg:     ClassMessage,
		plain:   ClassNeither,
		tm.Int:  ClassNeither,
	} {
		got, err := tc.Classify(id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "type #%d", id)
	}

	require.Len(t, tc.Actors(), 1)
	require.Len(t, tc.Messages(), 1)
	assert.Equal(t, "Counter", tc.Actors()[0].Name)
	assert.Equal(t, "CounterMessage", tc.Messages()[0].Name)
	assert.True(t, tc.Messages()[0].Serializable)
	assert.True(t, tc.Messages()[0].Immutable)
}

func TestClassifierIdempotent(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("Ping", ir.Field{Name: "seq", Type: tm.Int})
	a := tm.actor("Echo", nil)
	tm.handler(a, "handle_ping", msg)

	dm := diagnostics.NewManager()
	tc := NewTypeClassifier(tm.Module, dm)

	first, err := tc.Classify(a)
	require.NoError(t, err)
	require.NoError(t, tc.ClassifyAll())
	second, err := tc.Classify(a)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ClassActor, second)
	assert.Len(t, tc.Actors(), 1)
}

func TestClassifierActorPrecedenceOverMessage(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("Tick")

	// Marked as both actor and message. Every field serializable, so both
	// rule sets would accept it; the actor verdict must win.
	both := tm.AddType(ir.TypeDef{
		Name:   "Clock",
		Kind:   ir.KindStruct,
		Fields: []ir.Field{{Name: "now", Type: tm.Int, Mutable: true}},
		Attrs:  map[string]string{"actor": "", "message": ""},
	})
	tm.handler(both, "handle_tick", msg)

	tc, _ := classify(t, tm.Module)

	got, err := tc.Classify(both)
	require.NoError(t, err)
	assert.Equal(t, ClassActor, got)
	assert.NotNil(t, tc.ActorByType(both))
	assert.Nil(t, tc.MessageByType(both))
}

func TestClassifierNamingConventionNeedsLifecycle(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("LogMessage", ir.Field{Name: "line", Type: tm.String})

	// Actor by suffix only: no marker. Without a lifecycle hook or an
	// initializer the convention is not enough.
	logger := tm.AddType(ir.TypeDef{Name: "LoggerActor", Kind: ir.KindStruct})
	tm.handler(logger, "handle_log", msg)

	tc, dm := classify(t, tm.Module)

	got, err := tc.Classify(logger)
	require.NoError(t, err)
	assert.Equal(t, ClassNeither, got)

	partial := dm.ByCategory(diagnostics.CategoryPartialActor)
	require.Len(t, partial, 1)
	assert.Contains(t, partial[0].Message, "no lifecycle hook or initializer")
}

func TestClassifierNamingConventionWithInitializer(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("LogMessage", ir.Field{Name: "line", Type: tm.String})
	logger := tm.AddType(ir.TypeDef{Name: "LoggerActor", Kind: ir.KindStruct})
	tm.handler(logger, "handle_log", msg)
	tm.method(logger, "init", nil)

	tc, dm := classify(t, tm.Module)

	got, err := tc.Classify(logger)
	require.NoError(t, err)
	assert.Equal(t, ClassActor, got)

	// Recognition by convention still nudges toward an explicit marker.
	partial := dm.ByCategory(diagnostics.CategoryPartialActor)
	require.Len(t, partial, 1)
	assert.Equal(t, "ACT010", partial[0].Code)
	assert.Contains(t, partial[0].Message, "naming convention only")
}

func TestClassifierPartialSignals(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("Job", ir.Field{Name: "id", Type: tm.Int})

	// Marked but without a single handler.
	tm.actor("Idle", nil, ir.Field{Name: "state", Type: tm.Int})

	// Handler-shaped method on an unmarked, unsuffixed struct.
	journal := tm.AddType(ir.TypeDef{Name: "Journal", Kind: ir.KindStruct})
	tm.handler(journal, "handle_job", msg)

	tc, dm := classify(t, tm.Module)

	for _, id := range []ir.TypeID{journal} {
		got, err := tc.Classify(id)
		require.NoError(t, err)
		assert.Equal(t, ClassNeither, got)
	}

	partial := dm.ByCategory(diagnostics.CategoryPartialActor)
	require.Len(t, partial, 2)
	assert.Contains(t, partial[0].Message, "declares no message handler")
	assert.Contains(t, partial[1].Message, "carries no actor marker")
}

func TestClassifierSerializability(t *testing.T) {
	tm := newTestModule()
	callback := tm.AddType(ir.TypeDef{Name: "Callback", Kind: ir.KindFunction,
		ResultType: tm.Int})

	// A function-typed field cannot cross an actor boundary.
	bad := tm.message("RunRequest",
		ir.Field{Name: "id", Type: tm.Int},
		ir.Field{Name: "fn", Type: callback})

	ping := tm.message("Ping", ir.Field{Name: "seq", Type: tm.Int})
	target := tm.actor("Responder", nil)
	tm.handler(target, "handle_ping", ping)

	// A reference serializes only as an actor address.
	actorRef := tm.AddType(ir.TypeDef{Name: "&Responder", Kind: ir.KindReference, Elem: target})
	good := tm.message("Subscribe", ir.Field{Name: "reply_to", Type: actorRef})

	plainRef := tm.AddType(ir.TypeDef{Name: "&Int", Kind: ir.KindReference, Elem: tm.Int})
	badRef := tm.message("Leak", ir.Field{Name: "ptr", Type: plainRef})

	tc, dm := classify(t, tm.Module)

	for id, want := range map[ir.TypeID]Classification{
		bad:    ClassNeither,
		good:   ClassMessage,
		badRef: ClassNeither,
	} {
		got, err := tc.Classify(id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "type #%d", id)
	}

	warns := dm.ByCategory(diagnostics.CategoryNonSerializableMessage)
	require.Len(t, warns, 2)
	assert.Contains(t, warns[0].Message, "function-typed value")
	assert.Contains(t, warns[1].Message, "reference to non-actor type 'Int'")
}

func TestClassifierRecursiveMessage(t *testing.T) {
	tm := newTestModule()

	// Tree node referencing itself through an option. Ids are assigned
	// sequentially, so the option's id is known before it is added. The
	// cycle must not loop the checker and the type stays serializable.
	node := ir.TypeID(tm.TypesCount())
	opt := node + 1
	tm.AddType(ir.TypeDef{Name: "TreeNode", Kind: ir.KindStruct,
		Attrs: map[string]string{"message": ""},
		Fields: []ir.Field{
			{Name: "value", Type: tm.Int},
			{Name: "left", Type: opt},
			{Name: "right", Type: opt},
		}})
	tm.AddType(ir.TypeDef{Name: "Option<TreeNode>", Kind: ir.KindOption, Elem: node})

	tc, _ := classify(t, tm.Module)

	got, err := tc.Classify(node)
	require.NoError(t, err)
	assert.Equal(t, ClassMessage, got)
}

func TestClassifierSupervisesUnknownType(t *testing.T) {
	tm := newTestModule()
	msg := tm.message("WorkItem", ir.Field{Name: "id", Type: tm.Int})
	boss := tm.actor("Boss", map[string]string{"supervises": "GhostWorker"})
	tm.handler(boss, "handle_work", msg)

	dm := diagnostics.NewManager()
	tc := NewTypeClassifier(tm.Module, dm)

	err := tc.ClassifyAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GhostWorker")

	structural := dm.ByCategory(diagnostics.CategoryStructural)
	require.Len(t, structural, 1)
	assert.Contains(t, structural[0].Message, "supervises unknown type")
}
