package ir

import "testing"

func TestNewModuleSeedsVoid(t *testing.T) {
	m := NewModule("demo")

	if m.TypesCount() != 1 {
		t.Fatalf("fresh module should hold only the void entry, got %d types", m.TypesCount())
	}
	def, ok := m.TypeByID(NoType)
	if !ok {
		t.Fatal("void entry missing")
	}
	if def.Name != "void" || def.Kind != KindVoid {
		t.Errorf("unexpected void entry: %s/%s", def.Name, def.Kind)
	}
}

func TestSequentialIDAssignment(t *testing.T) {
	m := NewModule("demo")

	intID := m.AddType(TypeDef{Name: "Int", Kind: KindInt})
	counterID := m.AddType(TypeDef{Name: "Counter", Kind: KindStruct})
	if intID != 1 || counterID != 2 {
		t.Errorf("type ids should be assigned in declaration order, got %d and %d", intID, counterID)
	}

	if id, ok := m.TypeIDByName("Counter"); !ok || id != counterID {
		t.Errorf("TypeIDByName(Counter) = %d, %v", id, ok)
	}
	if _, ok := m.TypeIDByName("Ghost"); ok {
		t.Error("unknown name should not resolve")
	}
	if _, ok := m.TypeByID(TypeID(99)); ok {
		t.Error("out-of-range id should not resolve")
	}

	first := m.AddFunc(Function{Name: "init"})
	second := m.AddFunc(Function{Name: "step"})
	if first != 0 || second != 1 {
		t.Errorf("func ids should start at zero, got %d and %d", first, second)
	}
}

func TestMethodsOf(t *testing.T) {
	m := NewModule("demo")
	counterID := m.AddType(TypeDef{Name: "Counter", Kind: KindStruct})

	incr := m.AddFunc(Function{
		Name:   "increment",
		Params: []Param{{Name: "self", Type: counterID}},
	})
	reset := m.AddFunc(Function{
		Name:   "reset",
		Params: []Param{{Name: "this", Type: counterID}},
	})
	m.AddFunc(Function{Name: "helper", Params: []Param{{Name: "n", Type: counterID}}})

	methods := m.MethodsOf(counterID)
	if len(methods) != 2 || methods[0] != incr || methods[1] != reset {
		t.Errorf("unexpected method set: %v", methods)
	}

	helper, _ := m.FuncByID(FuncID(2))
	if helper.SelfType() != NoType {
		t.Error("a first parameter not named self/this is not a receiver")
	}
}

func TestTraitFactsAndAttrs(t *testing.T) {
	m := NewModule("demo")
	msgID := m.AddType(TypeDef{
		Name:  "Ping",
		Kind:  KindStruct,
		Attrs: map[string]string{"message": ""},
	})

	m.AddImpl(msgID, TraitSerialize)
	if !m.Implements(msgID, TraitSerialize) {
		t.Error("recorded impl should be queryable")
	}
	if m.Implements(msgID, TraitSend) {
		t.Error("unrecorded impl should be false")
	}

	if v, ok := m.TypeAttr(msgID, "message"); !ok || v != "" {
		t.Errorf("bare marker attribute should be present with empty value, got %q, %v", v, ok)
	}
	if _, ok := m.TypeAttr(msgID, "actor"); ok {
		t.Error("absent attribute should not be reported")
	}
}

func TestInstrOperandHelpers(t *testing.T) {
	get := Instr{Op: OpGetField, Result: "v", Operands: []Operand{ValueOperand("self"), FieldOperand(3)}}
	if idx, ok := get.FieldIndex(); !ok || idx != 3 {
		t.Errorf("FieldIndex = %d, %v", idx, ok)
	}

	call := Instr{Op: OpCall, Operands: []Operand{FuncOperand(FuncID(7)), ValueOperand("self")}}
	if id, ok := call.Callee(); !ok || id != FuncID(7) {
		t.Errorf("Callee = %d, %v", id, ok)
	}
	if _, ok := get.Callee(); ok {
		t.Error("get_field has no callee")
	}

	tell := Instr{Op: OpTell, Operands: []Operand{
		ValueOperand("peer"),
		TypeOperand(TypeID(4)),
		TypeOperand(TypeID(9)),
	}}
	if id, ok := tell.TargetType(); !ok || id != TypeID(4) {
		t.Errorf("TargetType = %d, %v", id, ok)
	}
	if id, ok := tell.MessageType(); !ok || id != TypeID(9) {
		t.Errorf("MessageType = %d, %v", id, ok)
	}

	bare := Instr{Op: OpTell, Operands: []Operand{ValueOperand("peer"), TypeOperand(TypeID(4))}}
	if _, ok := bare.MessageType(); ok {
		t.Error("a single type operand carries no payload type")
	}
}

func TestInstrClassification(t *testing.T) {
	for _, op := range []Op{OpAwait, OpSuspend, OpYield} {
		if !(Instr{Op: op}).IsSuspension() {
			t.Errorf("%s should be a suspension point", op)
		}
	}
	if (Instr{Op: OpCall}).IsSuspension() {
		t.Error("call is not a suspension point")
	}

	for _, op := range []Op{OpSend, OpTell, OpAsk, OpForward, OpReceive} {
		if !(Instr{Op: op}).IsMessagePrimitive() {
			t.Errorf("%s should be a message primitive", op)
		}
	}
	if (Instr{Op: OpSpawn}).IsMessagePrimitive() {
		t.Error("spawn is not a message primitive")
	}
}

func TestInstrString(t *testing.T) {
	in := Instr{
		Op:     OpGetField,
		Result: "v",
		Operands: []Operand{
			ValueOperand("self"),
			FieldOperand(0),
		},
	}
	if got := in.String(); got != "%v = get_field %self .0" {
		t.Errorf("unexpected instruction rendering: %s", got)
	}

	branch := Instr{Op: OpBranch, Operands: []Operand{BlockOperand("done")}}
	if got := branch.String(); got != "branch ^done" {
		t.Errorf("unexpected branch rendering: %s", got)
	}
}

func TestFunctionInstrsStopsEarly(t *testing.T) {
	fn := Function{
		Name: "walk",
		Blocks: []Block{
			{Label: "entry", Instrs: []Instr{{Op: OpCall}, {Op: OpAwait}}},
			{Label: "exit", Instrs: []Instr{{Op: OpRet}}},
		},
	}

	var seen int
	fn.Instrs(func(_, _ int, in Instr) bool {
		seen++
		return in.Op != OpAwait
	})
	if seen != 2 {
		t.Errorf("iteration should stop at the await, visited %d", seen)
	}
}
