// Package ir defines the compiled-module view consumed by the concurrency
// verifier. It is the read-only contract between the front half of the
// compiler (type checking, trait resolution, lowering) and the semantic
// analyses that run before code generation: a type table, a function table
// with basic-block instructions, attribute metadata, and trait facts.
//
// The view is populated once by a builder-style API and never mutated by
// any analysis; everything downstream goes through accessors.
package ir

import (
	"fmt"
	"sort"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/position"
)

// TypeID uniquely identifies a type within the module's type table.
type TypeID uint32

// FuncID uniquely identifies a function within the module's function table.
type FuncID uint32

// NoType marks an absent type reference (e.g. the parent of a root type).
// Id 0 is reserved for the builtin void entry, so zero values read as
// "no type" everywhere.
const NoType TypeID = 0

// NoFunc marks an absent function reference.
const NoFunc FuncID = ^FuncID(0)

// TypeKind classifies a type definition.
type TypeKind int

const (
	KindVoid TypeKind = iota
	KindInt
	KindFloat
	KindBool
	KindChar
	KindString
	KindStruct
	KindEnum
	KindArray
	KindSlice
	KindMap
	KindOption
	KindReference
	KindFunction
	KindUnknown
)

func (k TypeKind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindMap:
		return "map"
	case KindOption:
		return "option"
	case KindReference:
		return "reference"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Field is a named member of a struct type.
type Field struct {
	Name    string
	Type    TypeID
	Mutable bool
	// Attrs carries field-level metadata (`#[shared_resource]`, protection
	// markers). Bounded key→value pairs, never open-ended reflection.
	Attrs map[string]string
}

// Variant is one alternative of an enum type. Payload types may be empty
// for unit variants.
type Variant struct {
	Name    string
	Payload []TypeID
}

// TypeDef describes one type in the module. Exactly one of the kind-specific
// field groups is meaningful, selected by Kind.
type TypeDef struct {
	ID   TypeID
	Name string
	Kind TypeKind

	// Struct
	Fields []Field
	// Declared parent type; NoType when the type has no parent.
	Parent TypeID

	// Enum
	Variants []Variant

	// Array/Slice/Map/Option/Reference element; Map additionally uses Key.
	Elem TypeID
	Key  TypeID

	// Function signature types.
	ParamTypes []TypeID
	ResultType TypeID

	// Attrs carries the type's attribute metadata (`#[actor]`,
	// `#[message]`, `#[supervises=...]`, ...).
	Attrs map[string]string

	Span position.Span
}

// Param is a function parameter.
type Param struct {
	Name string
	Type TypeID
}

// Op is an instruction opcode. Opcodes are stable lowercase names shared
// with the lowering stage and the analysis fixtures.
type Op string

// Opcode set recognized by the verifier. Lowering may emit further neutral
// value ops; analyses treat unknown opcodes as effect-free.
const (
	OpGetField Op = "get_field"
	OpSetField Op = "set_field"
	OpCall     Op = "call"
	OpVCall    Op = "virtual_call"

	OpSend    Op = "send"
	OpTell    Op = "tell"
	OpAsk     Op = "ask"
	OpForward Op = "forward"
	OpSpawn   Op = "spawn"
	OpActorOf Op = "actor_of"
	OpReceive Op = "receive"

	OpAwait   Op = "await"
	OpSuspend Op = "suspend"
	OpYield   Op = "yield"

	OpLock   Op = "lock"
	OpUnlock Op = "unlock"

	OpBranch   Op = "branch"
	OpLoopBack Op = "loop_back"
	OpMatchArm Op = "match_arm"
	OpTryBegin Op = "try_begin"
	OpCatch    Op = "catch"
	OpRet      Op = "ret"

	OpClosureEnter Op = "closure_enter"
	OpClosureExit  Op = "closure_exit"
)

// OperandKind distinguishes what an instruction operand refers to.
type OperandKind int

const (
	// OperandValue names an SSA-like value produced earlier in the function.
	OperandValue OperandKind = iota
	// OperandField is a field index into the receiver's struct layout.
	OperandField
	// OperandFunc references a function in the module's function table.
	OperandFunc
	// OperandType references a type in the module's type table.
	OperandType
	// OperandBlock names a basic-block label.
	OperandBlock
)

// Operand is one input of an instruction. Index is interpreted per Kind;
// Name carries the value or label name for readability and printing.
type Operand struct {
	Kind  OperandKind
	Index uint32
	Name  string
}

// ValueOperand builds a value operand.
func ValueOperand(name string) Operand { return Operand{Kind: OperandValue, Name: name} }

// FieldOperand builds a field-index operand.
func FieldOperand(index int) Operand {
	return Operand{Kind: OperandField, Index: uint32(index)}
}

// FuncOperand builds a function-reference operand.
func FuncOperand(id FuncID) Operand { return Operand{Kind: OperandFunc, Index: uint32(id)} }

// TypeOperand builds a type-reference operand.
func TypeOperand(id TypeID) Operand { return Operand{Kind: OperandType, Index: uint32(id)} }

// BlockOperand builds a block-label operand.
func BlockOperand(label string) Operand { return Operand{Kind: OperandBlock, Name: label} }

// Instr is one IR instruction. Operand conventions follow the lowering
// contract: get_field/set_field carry the receiver value at operand 0 and
// the field index at operand 1; call/virtual_call carry the callee function
// at operand 0; the send family (send/tell/ask/forward) carries the target
// value at operand 0 with its static type at operand 1; spawn/actor_of carry
// the spawned actor type at operand 0.
type Instr struct {
	Op       Op
	Result   string
	Type     TypeID
	Operands []Operand
}

// FieldIndex reports the accessed field index for get_field/set_field.
func (in Instr) FieldIndex() (int, bool) {
	if in.Op != OpGetField && in.Op != OpSetField {
		return 0, false
	}
	for _, op := range in.Operands {
		if op.Kind == OperandField {
			return int(op.Index), true
		}
	}
	return 0, false
}

// Callee reports the statically resolved callee for call/virtual_call.
func (in Instr) Callee() (FuncID, bool) {
	if in.Op != OpCall && in.Op != OpVCall {
		return NoFunc, false
	}
	for _, op := range in.Operands {
		if op.Kind == OperandFunc {
			return FuncID(op.Index), true
		}
	}
	return NoFunc, false
}

// TargetType reports the static type of the message-target or spawned value
// for the send/spawn opcode families.
func (in Instr) TargetType() (TypeID, bool) {
	switch in.Op {
	case OpSend, OpTell, OpAsk, OpForward, OpSpawn, OpActorOf:
		for _, op := range in.Operands {
			if op.Kind == OperandType {
				return TypeID(op.Index), true
			}
		}
	}
	return NoType, false
}

// MessageType reports the static type of the message payload for the send
// family, when the lowering recorded one (a second type operand).
func (in Instr) MessageType() (TypeID, bool) {
	switch in.Op {
	case OpSend, OpTell, OpAsk, OpForward:
		seen := false
		for _, op := range in.Operands {
			if op.Kind == OperandType {
				if seen {
					return TypeID(op.Index), true
				}
				seen = true
			}
		}
	}
	return NoType, false
}

// IsSuspension reports whether the instruction can suspend the executing
// logical thread of the actor.
func (in Instr) IsSuspension() bool {
	switch in.Op {
	case OpAwait, OpSuspend, OpYield:
		return true
	}
	return false
}

// IsMessagePrimitive reports whether the instruction is one of the runtime
// message-passing primitives.
func (in Instr) IsMessagePrimitive() bool {
	switch in.Op {
	case OpSend, OpTell, OpAsk, OpForward, OpReceive:
		return true
	}
	return false
}

func (in Instr) String() string {
	s := string(in.Op)
	if in.Result != "" {
		s = "%" + in.Result + " = " + s
	}
	for _, op := range in.Operands {
		switch op.Kind {
		case OperandValue:
			s += " %" + op.Name
		case OperandField:
			s += fmt.Sprintf(" .%d", op.Index)
		case OperandFunc:
			s += fmt.Sprintf(" @f%d", op.Index)
		case OperandType:
			s += fmt.Sprintf(" @t%d", op.Index)
		case OperandBlock:
			s += " ^" + op.Name
		}
	}
	return s
}

// Block is a basic block: a label, a straight-line instruction sequence, and
// successor labels for control-flow edges.
type Block struct {
	Label  string
	Instrs []Instr
	Succs  []string
}

// Function is one function definition in the module view.
type Function struct {
	ID     FuncID
	Name   string
	Params []Param
	Result TypeID
	Blocks []Block
	// Attrs carries the function's attribute metadata (`#[exclusive]`,
	// `#[readonly]`, `#[async]`, ...).
	Attrs map[string]string
	Span  position.Span
}

// SelfType reports the receiver type when the function is method-shaped:
// its first parameter is named "self" (or "this"). NoType otherwise.
func (f *Function) SelfType() TypeID {
	if len(f.Params) == 0 {
		return NoType
	}
	if n := f.Params[0].Name; n != "self" && n != "this" {
		return NoType
	}
	return f.Params[0].Type
}

// Instrs iterates every instruction of the function in block layout order.
func (f *Function) Instrs(visit func(blockIdx, instrIdx int, in Instr) bool) {
	for bi := range f.Blocks {
		for ii, in := range f.Blocks[bi].Instrs {
			if !visit(bi, ii, in) {
				return
			}
		}
	}
}

// Trait names a well-known capability the type checker resolved. The
// verifier only ever queries the fixed set below.
type Trait string

const (
	TraitSend      Trait = "Send"
	TraitSync      Trait = "Sync"
	TraitSerialize Trait = "Serialize"
	TraitActor     Trait = "Actor"
	TraitMessage   Trait = "Message"
)

// WellKnownTraits is the full set of traits the verifier may query.
var WellKnownTraits = []Trait{TraitSend, TraitSync, TraitSerialize, TraitActor, TraitMessage}

// Module is the immutable compiled-module view. Construction goes through
// NewModule/Add*; analyses use the read accessors only.
type Module struct {
	name  string
	types []TypeDef
	funcs []Function
	impls map[TypeID]map[Trait]bool
}

// NewModule creates an empty module view. The type table is seeded with the
// builtin void entry at id 0 so that zero-valued references mean "no type".
func NewModule(name string) *Module {
	m := &Module{
		name:  name,
		impls: make(map[TypeID]map[Trait]bool),
	}
	m.types = append(m.types, TypeDef{ID: NoType, Name: "void", Kind: KindVoid, Attrs: map[string]string{}})
	return m
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// AddType appends a type definition and returns its assigned id.
// Definitions must be complete before any analysis starts.
func (m *Module) AddType(def TypeDef) TypeID {
	id := TypeID(len(m.types))
	def.ID = id
	if def.Attrs == nil {
		def.Attrs = map[string]string{}
	}
	m.types = append(m.types, def)
	return id
}

// AddFunc appends a function definition and returns its assigned id.
func (m *Module) AddFunc(fn Function) FuncID {
	id := FuncID(len(m.funcs))
	fn.ID = id
	if fn.Attrs == nil {
		fn.Attrs = map[string]string{}
	}
	m.funcs = append(m.funcs, fn)
	return id
}

// AddImpl records a trait-implementation fact for a type.
func (m *Module) AddImpl(id TypeID, trait Trait) {
	facts := m.impls[id]
	if facts == nil {
		facts = make(map[Trait]bool)
		m.impls[id] = facts
	}
	facts[trait] = true
}

// TypeByID returns the type definition for id.
func (m *Module) TypeByID(id TypeID) (*TypeDef, bool) {
	if int(id) >= len(m.types) {
		return nil, false
	}
	return &m.types[id], true
}

// FuncByID returns the function definition for id.
func (m *Module) FuncByID(id FuncID) (*Function, bool) {
	if int(id) >= len(m.funcs) {
		return nil, false
	}
	return &m.funcs[id], true
}

// TypesCount returns the number of types in the table.
func (m *Module) TypesCount() int { return len(m.types) }

// FuncsCount returns the number of functions in the table.
func (m *Module) FuncsCount() int { return len(m.funcs) }

// Implements reports a resolved trait fact.
func (m *Module) Implements(id TypeID, trait Trait) bool {
	return m.impls[id][trait]
}

// TypeAttr looks up one attribute on a type. The empty string with ok=true
// means the attribute is present as a bare marker.
func (m *Module) TypeAttr(id TypeID, key string) (string, bool) {
	def, ok := m.TypeByID(id)
	if !ok {
		return "", false
	}
	v, ok := def.Attrs[key]
	return v, ok
}

// FuncAttr looks up one attribute on a function.
func (m *Module) FuncAttr(id FuncID, key string) (string, bool) {
	fn, ok := m.FuncByID(id)
	if !ok {
		return "", false
	}
	v, ok := fn.Attrs[key]
	return v, ok
}

// TypeIDByName resolves a type by name; mainly for attribute values that
// reference types symbolically (`#[supervises=Worker]`).
func (m *Module) TypeIDByName(name string) (TypeID, bool) {
	for i := range m.types {
		if m.types[i].Name == name {
			return m.types[i].ID, true
		}
	}
	return NoType, false
}

// MethodsOf returns the ids of all functions whose receiver is the given
// type, sorted by function id for deterministic iteration.
func (m *Module) MethodsOf(id TypeID) []FuncID {
	var out []FuncID
	for i := range m.funcs {
		if m.funcs[i].SelfType() == id {
			out = append(out, m.funcs[i].ID)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
