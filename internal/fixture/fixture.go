// Package fixture reads and writes compiled-module views as JSON documents.
//
// A fixture is the interchange form of the ir.Module view: the lowering
// stage dumps one per compiled module and tooling re-hydrates it without
// linking the front end. Declarations reference each other by name, so the
// loader resolves in two passes and a fixture may mention a type or function
// before its definition point. Function references use the qualified
// "Type.method" form when the function is method-shaped and the bare name
// otherwise.
//
// Every document carries a format_version. Decode gates it against
// FormatConstraint before reading anything else; documents from a newer
// major format are rejected rather than half-understood.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"

	semver "github.com/Masterminds/semver/v3"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/errors"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/position"
)

// FormatVersion is the fixture format stamped by Encode.
const FormatVersion = "1.0.0"

// FormatConstraint is the format range Decode accepts.
const FormatConstraint = ">=1.0.0, <2.0.0"

// File is the top-level fixture document.
type File struct {
	FormatVersion string     `json:"format_version"`
	Module        ModuleSpec `json:"module"`
}

// ModuleSpec mirrors ir.Module construction order: types get ids 1..n in
// declaration order (id 0 is the builtin void), functions get ids 0..m, and
// trait facts follow both tables.
type ModuleSpec struct {
	Name  string     `json:"name"`
	Types []TypeSpec `json:"types,omitempty"`
	Funcs []FuncSpec `json:"funcs,omitempty"`
	Impls []ImplSpec `json:"impls,omitempty"`
}

// TypeSpec is one type declaration. Kind selects which of the shape fields
// are meaningful, the same way ir.TypeDef works.
type TypeSpec struct {
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Fields   []FieldSpec       `json:"fields,omitempty"`
	Parent   string            `json:"parent,omitempty"`
	Variants []VariantSpec     `json:"variants,omitempty"`
	Elem     string            `json:"elem,omitempty"`
	Key      string            `json:"key,omitempty"`
	Params   []string          `json:"params,omitempty"`
	Result   string            `json:"result,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	File     string            `json:"file,omitempty"`
	Line     int               `json:"line,omitempty"`
	Col      int               `json:"col,omitempty"`
}

// FieldSpec is one struct member. An empty type name means void.
type FieldSpec struct {
	Name    string            `json:"name"`
	Type    string            `json:"type,omitempty"`
	Mutable bool              `json:"mutable,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// VariantSpec is one enum alternative.
type VariantSpec struct {
	Name    string   `json:"name"`
	Payload []string `json:"payload,omitempty"`
}

// FuncSpec is one function declaration with its basic blocks.
type FuncSpec struct {
	Name   string            `json:"name"`
	Params []ParamSpec       `json:"params,omitempty"`
	Result string            `json:"result,omitempty"`
	Blocks []BlockSpec       `json:"blocks,omitempty"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	File   string            `json:"file,omitempty"`
	Line   int               `json:"line,omitempty"`
	Col    int               `json:"col,omitempty"`
}

// ParamSpec is one function parameter.
type ParamSpec struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// BlockSpec is one basic block.
type BlockSpec struct {
	Label  string      `json:"label"`
	Instrs []InstrSpec `json:"instrs,omitempty"`
	Succs  []string    `json:"succs,omitempty"`
}

// InstrSpec is one instruction.
type InstrSpec struct {
	Op       string        `json:"op"`
	Result   string        `json:"result,omitempty"`
	Type     string        `json:"type,omitempty"`
	Operands []OperandSpec `json:"operands,omitempty"`
}

// OperandSpec sets exactly one of its fields; which one decides the operand
// kind.
type OperandSpec struct {
	Value string `json:"value,omitempty"`
	Field *int   `json:"field,omitempty"`
	Func  string `json:"func,omitempty"`
	Type  string `json:"type,omitempty"`
	Block string `json:"block,omitempty"`
}

// ImplSpec records one resolved trait fact.
type ImplSpec struct {
	Type  string `json:"type"`
	Trait string `json:"trait"`
}

var kindNames = map[string]ir.TypeKind{
	"void":      ir.KindVoid,
	"int":       ir.KindInt,
	"float":     ir.KindFloat,
	"bool":      ir.KindBool,
	"char":      ir.KindChar,
	"string":    ir.KindString,
	"struct":    ir.KindStruct,
	"enum":      ir.KindEnum,
	"array":     ir.KindArray,
	"slice":     ir.KindSlice,
	"map":       ir.KindMap,
	"option":    ir.KindOption,
	"reference": ir.KindReference,
	"function":  ir.KindFunction,
}

// Load reads a fixture file and builds the module view it describes.
func Load(path string) (*ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Decode(path, data)
}

// Decode builds a module view from fixture JSON. The path only labels
// errors; Decode itself never touches the filesystem.
func Decode(path string, data []byte) (*ir.Module, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.MalformedFixture(path, err.Error())
	}
	if f.FormatVersion == "" {
		return nil, errors.MalformedFixture(path, "missing format_version")
	}
	if err := checkVersion(f.FormatVersion); err != nil {
		return nil, err
	}
	return build(path, &f.Module)
}

func checkVersion(version string) error {
	sv, err := semver.NewVersion(version)
	if err != nil {
		return errors.UnsupportedFixtureVersion(version, FormatConstraint)
	}
	constraint, err := semver.NewConstraint(FormatConstraint)
	if err != nil {
		return err
	}
	if !constraint.Check(sv) {
		return errors.UnsupportedFixtureVersion(version, FormatConstraint)
	}
	return nil
}

type builder struct {
	path  string
	types map[string]ir.TypeID
	funcs map[string]ir.FuncID
}

func build(path string, spec *ModuleSpec) (*ir.Module, error) {
	if spec.Name == "" {
		return nil, errors.MalformedFixture(path, "missing module name")
	}

	b := &builder{
		path:  path,
		types: map[string]ir.TypeID{"void": ir.NoType},
		funcs: make(map[string]ir.FuncID),
	}

	// Ids are assigned in declaration order, so both name tables can be
	// filled before any definition is built and forward references cost
	// nothing.
	for i := range spec.Types {
		ts := &spec.Types[i]
		if ts.Name == "" {
			return nil, b.malformed("type %d has no name", i)
		}
		if _, dup := b.types[ts.Name]; dup {
			return nil, b.malformed("duplicate type %q", ts.Name)
		}
		b.types[ts.Name] = ir.TypeID(i + 1)
	}
	for i := range spec.Funcs {
		key, err := b.funcKey(&spec.Funcs[i], i)
		if err != nil {
			return nil, err
		}
		if _, dup := b.funcs[key]; dup {
			return nil, b.malformed("duplicate function %q", key)
		}
		b.funcs[key] = ir.FuncID(i)
	}

	m := ir.NewModule(spec.Name)
	for i := range spec.Types {
		def, err := b.buildType(&spec.Types[i])
		if err != nil {
			return nil, err
		}
		m.AddType(def)
	}
	for i := range spec.Funcs {
		fn, err := b.buildFunc(&spec.Funcs[i])
		if err != nil {
			return nil, err
		}
		m.AddFunc(fn)
	}
	for _, im := range spec.Impls {
		id, ok := b.types[im.Type]
		if !ok {
			return nil, b.malformed("impl references unknown type %q", im.Type)
		}
		trait, ok := wellKnownTrait(im.Trait)
		if !ok {
			return nil, b.malformed("impl on %q names unknown trait %q", im.Type, im.Trait)
		}
		m.AddImpl(id, trait)
	}

	return m, nil
}

func (b *builder) malformed(format string, args ...interface{}) error {
	return errors.MalformedFixture(b.path, fmt.Sprintf(format, args...))
}

// funcKey is the name other fixture entries use to reference a function:
// "Type.method" when the first parameter is a non-void receiver, the bare
// name otherwise. Encode emits references under the same rule.
func (b *builder) funcKey(fs *FuncSpec, idx int) (string, error) {
	if fs.Name == "" {
		return "", b.malformed("function %d has no name", idx)
	}
	if len(fs.Params) > 0 {
		recv := fs.Params[0]
		if (recv.Name == "self" || recv.Name == "this") && recv.Type != "" && recv.Type != "void" {
			return recv.Type + "." + fs.Name, nil
		}
	}
	return fs.Name, nil
}

func (b *builder) typeRef(name, where string) (ir.TypeID, error) {
	if name == "" {
		return ir.NoType, nil
	}
	id, ok := b.types[name]
	if !ok {
		return ir.NoType, b.malformed("%s references unknown type %q", where, name)
	}
	return id, nil
}

func (b *builder) buildType(ts *TypeSpec) (ir.TypeDef, error) {
	kind, ok := kindNames[ts.Kind]
	if !ok {
		return ir.TypeDef{}, b.malformed("type %q: unknown kind %q", ts.Name, ts.Kind)
	}

	where := fmt.Sprintf("type %q", ts.Name)
	def := ir.TypeDef{
		Name:  ts.Name,
		Kind:  kind,
		Attrs: ts.Attrs,
		Span:  spanOf(ts.File, ts.Line, ts.Col),
	}

	var err error
	if def.Parent, err = b.typeRef(ts.Parent, where+" parent"); err != nil {
		return ir.TypeDef{}, err
	}
	if def.Elem, err = b.typeRef(ts.Elem, where+" element"); err != nil {
		return ir.TypeDef{}, err
	}
	if def.Key, err = b.typeRef(ts.Key, where+" key"); err != nil {
		return ir.TypeDef{}, err
	}
	if def.ResultType, err = b.typeRef(ts.Result, where+" result"); err != nil {
		return ir.TypeDef{}, err
	}

	for _, fs := range ts.Fields {
		ft, err := b.typeRef(fs.Type, fmt.Sprintf("%s field %q", where, fs.Name))
		if err != nil {
			return ir.TypeDef{}, err
		}
		def.Fields = append(def.Fields, ir.Field{
			Name:    fs.Name,
			Type:    ft,
			Mutable: fs.Mutable,
			Attrs:   fs.Attrs,
		})
	}
	for _, vs := range ts.Variants {
		v := ir.Variant{Name: vs.Name}
		for _, p := range vs.Payload {
			pt, err := b.typeRef(p, fmt.Sprintf("%s variant %q", where, vs.Name))
			if err != nil {
				return ir.TypeDef{}, err
			}
			v.Payload = append(v.Payload, pt)
		}
		def.Variants = append(def.Variants, v)
	}
	for _, p := range ts.Params {
		pt, err := b.typeRef(p, where+" signature")
		if err != nil {
			return ir.TypeDef{}, err
		}
		def.ParamTypes = append(def.ParamTypes, pt)
	}

	return def, nil
}

func (b *builder) buildFunc(fs *FuncSpec) (ir.Function, error) {
	where := fmt.Sprintf("function %q", fs.Name)
	fn := ir.Function{
		Name:  fs.Name,
		Attrs: fs.Attrs,
		Span:  spanOf(fs.File, fs.Line, fs.Col),
	}

	for _, ps := range fs.Params {
		pt, err := b.typeRef(ps.Type, fmt.Sprintf("%s parameter %q", where, ps.Name))
		if err != nil {
			return ir.Function{}, err
		}
		fn.Params = append(fn.Params, ir.Param{Name: ps.Name, Type: pt})
	}
	var err error
	if fn.Result, err = b.typeRef(fs.Result, where+" result"); err != nil {
		return ir.Function{}, err
	}

	for _, bs := range fs.Blocks {
		blk := ir.Block{Label: bs.Label, Succs: bs.Succs}
		for i := range bs.Instrs {
			in, err := b.buildInstr(&bs.Instrs[i], where)
			if err != nil {
				return ir.Function{}, err
			}
			blk.Instrs = append(blk.Instrs, in)
		}
		fn.Blocks = append(fn.Blocks, blk)
	}

	return fn, nil
}

func (b *builder) buildInstr(is *InstrSpec, where string) (ir.Instr, error) {
	if is.Op == "" {
		return ir.Instr{}, b.malformed("%s carries an instruction without an op", where)
	}

	in := ir.Instr{Op: ir.Op(is.Op), Result: is.Result}
	var err error
	if in.Type, err = b.typeRef(is.Type, where+" instruction "+is.Op); err != nil {
		return ir.Instr{}, err
	}
	for i := range is.Operands {
		op, err := b.buildOperand(&is.Operands[i], where, is.Op)
		if err != nil {
			return ir.Instr{}, err
		}
		in.Operands = append(in.Operands, op)
	}

	return in, nil
}

func (b *builder) buildOperand(o *OperandSpec, where, op string) (ir.Operand, error) {
	set := 0
	if o.Value != "" {
		set++
	}
	if o.Field != nil {
		set++
	}
	if o.Func != "" {
		set++
	}
	if o.Type != "" {
		set++
	}
	if o.Block != "" {
		set++
	}
	if set != 1 {
		return ir.Operand{}, b.malformed("%s op %s: operand must set exactly one of value/field/func/type/block", where, op)
	}

	switch {
	case o.Value != "":
		return ir.ValueOperand(o.Value), nil
	case o.Field != nil:
		return ir.FieldOperand(*o.Field), nil
	case o.Func != "":
		id, ok := b.funcs[o.Func]
		if !ok {
			return ir.Operand{}, b.malformed("%s op %s references unknown function %q", where, op, o.Func)
		}
		return ir.FuncOperand(id), nil
	case o.Type != "":
		id, ok := b.types[o.Type]
		if !ok {
			return ir.Operand{}, b.malformed("%s op %s references unknown type %q", where, op, o.Type)
		}
		return ir.TypeOperand(id), nil
	default:
		return ir.BlockOperand(o.Block), nil
	}
}

func wellKnownTrait(name string) (ir.Trait, bool) {
	for _, t := range ir.WellKnownTraits {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

func spanOf(file string, line, col int) position.Span {
	if line <= 0 {
		return position.Span{}
	}
	return position.NewSpan(file, line, col)
}
