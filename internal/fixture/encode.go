package fixture

import (
	"encoding/json"
	"fmt"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/errors"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/position"
)

// Encode renders a module view as indented fixture JSON stamped with
// FormatVersion. Output is deterministic: declarations appear in id order,
// trait facts in well-known-trait order, attribute keys sorted by the JSON
// encoder. Two encodings of the same module are byte-identical.
func Encode(m *ir.Module) ([]byte, error) {
	f, err := encodeFile(m)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(f, "", "  ")
}

func encodeFile(m *ir.Module) (*File, error) {
	if m == nil {
		return nil, errors.NilModule("fixture.Encode")
	}

	e := &encoder{m: m}
	spec := ModuleSpec{Name: m.Name()}

	for id := ir.TypeID(1); int(id) < m.TypesCount(); id++ {
		def, _ := m.TypeByID(id)
		ts, err := e.typeSpec(def)
		if err != nil {
			return nil, err
		}
		spec.Types = append(spec.Types, ts)
	}
	for id := ir.FuncID(0); int(id) < m.FuncsCount(); id++ {
		fn, _ := m.FuncByID(id)
		fs, err := e.funcSpec(fn)
		if err != nil {
			return nil, err
		}
		spec.Funcs = append(spec.Funcs, fs)
	}
	for id := ir.TypeID(1); int(id) < m.TypesCount(); id++ {
		def, _ := m.TypeByID(id)
		for _, trait := range ir.WellKnownTraits {
			if m.Implements(id, trait) {
				spec.Impls = append(spec.Impls, ImplSpec{Type: def.Name, Trait: string(trait)})
			}
		}
	}

	return &File{FormatVersion: FormatVersion, Module: spec}, nil
}

type encoder struct {
	m *ir.Module
}

// typeName maps a type id back to its fixture name; NoType maps to the
// empty string, the absent-reference spelling.
func (e *encoder) typeName(id ir.TypeID, where string) (string, error) {
	if id == ir.NoType {
		return "", nil
	}
	def, ok := e.m.TypeByID(id)
	if !ok {
		return "", errors.UnknownTypeRef(uint32(id), where)
	}
	return def.Name, nil
}

// refKey mirrors the loader's function reference naming.
func (e *encoder) refKey(fn *ir.Function) string {
	if self := fn.SelfType(); self != ir.NoType {
		if def, ok := e.m.TypeByID(self); ok {
			return def.Name + "." + fn.Name
		}
	}
	return fn.Name
}

func (e *encoder) typeSpec(def *ir.TypeDef) (TypeSpec, error) {
	where := fmt.Sprintf("type '%s'", def.Name)
	ts := TypeSpec{
		Name:  def.Name,
		Kind:  def.Kind.String(),
		Attrs: attrsOrNil(def.Attrs),
	}
	ts.File, ts.Line, ts.Col = spanFields(def.Span)

	var err error
	if ts.Parent, err = e.typeName(def.Parent, where+" parent"); err != nil {
		return TypeSpec{}, err
	}
	if ts.Elem, err = e.typeName(def.Elem, where+" element"); err != nil {
		return TypeSpec{}, err
	}
	if ts.Key, err = e.typeName(def.Key, where+" key"); err != nil {
		return TypeSpec{}, err
	}
	if ts.Result, err = e.typeName(def.ResultType, where+" result"); err != nil {
		return TypeSpec{}, err
	}

	for _, f := range def.Fields {
		tn, err := e.typeName(f.Type, fmt.Sprintf("%s field '%s'", where, f.Name))
		if err != nil {
			return TypeSpec{}, err
		}
		ts.Fields = append(ts.Fields, FieldSpec{
			Name:    f.Name,
			Type:    tn,
			Mutable: f.Mutable,
			Attrs:   attrsOrNil(f.Attrs),
		})
	}
	for _, v := range def.Variants {
		vs := VariantSpec{Name: v.Name}
		for _, p := range v.Payload {
			pn, err := e.typeName(p, fmt.Sprintf("%s variant '%s'", where, v.Name))
			if err != nil {
				return TypeSpec{}, err
			}
			vs.Payload = append(vs.Payload, pn)
		}
		ts.Variants = append(ts.Variants, vs)
	}
	for _, p := range def.ParamTypes {
		pn, err := e.typeName(p, where+" signature")
		if err != nil {
			return TypeSpec{}, err
		}
		ts.Params = append(ts.Params, pn)
	}

	return ts, nil
}

func (e *encoder) funcSpec(fn *ir.Function) (FuncSpec, error) {
	where := fmt.Sprintf("function '%s'", fn.Name)
	fs := FuncSpec{Name: fn.Name, Attrs: attrsOrNil(fn.Attrs)}
	fs.File, fs.Line, fs.Col = spanFields(fn.Span)

	for _, p := range fn.Params {
		tn, err := e.typeName(p.Type, fmt.Sprintf("%s parameter '%s'", where, p.Name))
		if err != nil {
			return FuncSpec{}, err
		}
		fs.Params = append(fs.Params, ParamSpec{Name: p.Name, Type: tn})
	}
	var err error
	if fs.Result, err = e.typeName(fn.Result, where+" result"); err != nil {
		return FuncSpec{}, err
	}

	for bi := range fn.Blocks {
		blk := &fn.Blocks[bi]
		bs := BlockSpec{Label: blk.Label, Succs: blk.Succs}
		for ii := range blk.Instrs {
			is, err := e.instrSpec(&blk.Instrs[ii], where)
			if err != nil {
				return FuncSpec{}, err
			}
			bs.Instrs = append(bs.Instrs, is)
		}
		fs.Blocks = append(fs.Blocks, bs)
	}

	return fs, nil
}

func (e *encoder) instrSpec(in *ir.Instr, where string) (InstrSpec, error) {
	is := InstrSpec{Op: string(in.Op), Result: in.Result}
	var err error
	if is.Type, err = e.typeName(in.Type, where+" instruction "+string(in.Op)); err != nil {
		return InstrSpec{}, err
	}
	for _, op := range in.Operands {
		o, err := e.operandSpec(op, where)
		if err != nil {
			return InstrSpec{}, err
		}
		is.Operands = append(is.Operands, o)
	}
	return is, nil
}

func (e *encoder) operandSpec(op ir.Operand, where string) (OperandSpec, error) {
	switch op.Kind {
	case ir.OperandValue:
		return OperandSpec{Value: op.Name}, nil
	case ir.OperandField:
		idx := int(op.Index)
		return OperandSpec{Field: &idx}, nil
	case ir.OperandFunc:
		fn, ok := e.m.FuncByID(ir.FuncID(op.Index))
		if !ok {
			return OperandSpec{}, errors.UnknownFuncRef(op.Index, where)
		}
		return OperandSpec{Func: e.refKey(fn)}, nil
	case ir.OperandType:
		if ir.TypeID(op.Index) == ir.NoType {
			return OperandSpec{Type: "void"}, nil
		}
		name, err := e.typeName(ir.TypeID(op.Index), where)
		if err != nil {
			return OperandSpec{}, err
		}
		return OperandSpec{Type: name}, nil
	default:
		return OperandSpec{Block: op.Name}, nil
	}
}

func attrsOrNil(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func spanFields(sp position.Span) (string, int, int) {
	if sp.Start.Line <= 0 {
		return "", 0, 0
	}
	return sp.Start.Filename, sp.Start.Line, sp.Start.Column
}
