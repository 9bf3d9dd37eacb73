package actorcheck

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

// testModule wraps module construction for analysis tests. Primitives are
// pre-registered; the helpers keep instruction plumbing out of the tests.
type testModule struct {
	*ir.Module
	Int    ir.TypeID
	String ir.TypeID
	Bool   ir.TypeID
}

func newTestModule() *testModule {
	m := ir.NewModule("under-test")
	return &testModule{
		Module: m,
		Int:    m.AddType(ir.TypeDef{Name: "Int", Kind: ir.KindInt}),
		String: m.AddType(ir.TypeDef{Name: "String", Kind: ir.KindString}),
		Bool:   m.AddType(ir.TypeDef{Name: "Bool", Kind: ir.KindBool}),
	}
}

// message registers a message struct carrying the given fields.
func (tm *testModule) message(name string, fields ...ir.Field) ir.TypeID {
	return tm.AddType(ir.TypeDef{
		Name:   name,
		Kind:   ir.KindStruct,
		Fields: fields,
		Attrs:  map[string]string{"message": ""},
	})
}

// actor registers a marked actor struct. Methods attach via method/handler.
func (tm *testModule) actor(name string, attrs map[string]string, fields ...ir.Field) ir.TypeID {
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs["actor"] = ""
	return tm.AddType(ir.TypeDef{Name: name, Kind: ir.KindStruct, Fields: fields, Attrs: attrs})
}

// method registers a method on self with the given attributes and body.
func (tm *testModule) method(self ir.TypeID, name string, attrs map[string]string, body ...ir.Instr) ir.FuncID {
	return tm.AddFunc(ir.Function{
		Name:   name,
		Params: []ir.Param{{Name: "self", Type: self}},
		Blocks: []ir.Block{{Label: "entry", Instrs: body}},
		Attrs:  attrs,
	})
}

// handler registers a handler-shaped method accepting the message type.
func (tm *testModule) handler(self ir.TypeID, name string, msg ir.TypeID, body ...ir.Instr) ir.FuncID {
	return tm.AddFunc(ir.Function{
		Name: name,
		Params: []ir.Param{
			{Name: "self", Type: self},
			{Name: "msg", Type: msg},
		},
		Blocks: []ir.Block{{Label: "entry", Instrs: body}},
	})
}

func readField(idx int) ir.Instr {
	return ir.Instr{Op: ir.OpGetField, Result: "v", Operands: []ir.Operand{
		ir.ValueOperand("self"), ir.FieldOperand(idx),
	}}
}

func writeField(idx int) ir.Instr {
	return ir.Instr{Op: ir.OpSetField, Operands: []ir.Operand{
		ir.ValueOperand("self"), ir.FieldOperand(idx), ir.ValueOperand("v"),
	}}
}

func callFn(id ir.FuncID) ir.Instr {
	return ir.Instr{Op: ir.OpCall, Operands: []ir.Operand{ir.FuncOperand(id)}}
}

func askActor(target ir.TypeID) ir.Instr {
	return ir.Instr{Op: ir.OpAsk, Operands: []ir.Operand{
		ir.ValueOperand("target"), ir.TypeOperand(target),
	}}
}

func tellActor(target ir.TypeID) ir.Instr {
	return ir.Instr{Op: ir.OpTell, Operands: []ir.Operand{
		ir.ValueOperand("target"), ir.TypeOperand(target),
	}}
}

func awaitPoint() ir.Instr { return ir.Instr{Op: ir.OpAwait} }

// runVerify runs the full pipeline with default policy.
func runVerify(t *testing.T, m *ir.Module) *Result {
	t.Helper()
	r, err := Verify(m, DefaultConfig())
	require.NoError(t, err)
	return r
}

// diagsOf filters the result's diagnostics by category.
func diagsOf(r *Result, cat diagnostics.DiagnosticCategory) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, d := range r.Diagnostics() {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}
