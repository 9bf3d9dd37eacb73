package actorcheck

import (
	"fmt"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/errors"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

// Result is the verifier output consumed by code generation: the populated
// actor and message tables, the relationship graphs, the scored deadlock
// candidates and the ordered diagnostics.
type Result struct {
	Actors     []*Actor
	Messages   []*MessageType
	Graphs     map[string]*ActorGraph
	Candidates []DeadlockCandidate

	module *ir.Module
	cfg    Config
	diags  *diagnostics.Manager
	ran    bool
}

// Verify runs the full verification pipeline over an immutable module view:
// classification, hierarchy derivation and checks, concurrency mode
// inference, state isolation analysis, deadlock scoring and validation.
// Structural defects in the module view abort with an error; every other
// finding accumulates into the result's diagnostics.
func Verify(module *ir.Module, cfg Config) (*Result, error) {
	if module == nil {
		return nil, errors.NilModule("Verify")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkStructure(module); err != nil {
		return nil, err
	}

	diags := diagnostics.NewManager()
	diags.SetErrorLimit(cfg.MaxErrors)
	diags.SetWarningLimit(cfg.MaxWarnings)

	tc := NewTypeClassifier(module, diags)
	if err := tc.ClassifyAll(); err != nil {
		return nil, err
	}

	r := &Result{
		Actors:   tc.Actors(),
		Messages: tc.Messages(),
		module:   module,
		cfg:      cfg,
		diags:    diags,
	}

	hb := NewHierarchyBuilder(module, diags, cfg, r.Actors)
	r.Graphs = hb.Build()

	NewModeInferer(module, diags, r.Actors).Infer()
	NewIsolationAnalyzer(cfg).Analyze(r.Actors)

	r.Candidates = NewDeadlockDetector(module, diags, cfg, r.Actors).Detect()

	v := NewValidator(module, diags, r.Actors, r.Messages)
	v.CheckHandlers(r.Graphs[GraphInheritance])
	v.CheckLifecycles()
	v.CheckCalls(r.Graphs[GraphSupervision], r.Graphs[GraphInheritance])

	diags.Sort()
	r.ran = true

	return r, nil
}

// Diagnostics returns the ordered findings of the run.
func (r *Result) Diagnostics() []diagnostics.Diagnostic { return r.diags.Diagnostics() }

// HasFatal reports whether the run produced any fatal-category finding.
// Code generation must not proceed on a fatal result.
func (r *Result) HasFatal() bool { return len(r.diags.Fatal()) > 0 }

// Summary renders the diagnostic counts for presentation.
func (r *Result) Summary() string { return r.diags.FormatSummary() }

// ActorByType returns the populated actor record for a type id.
func (r *Result) ActorByType(id ir.TypeID) *Actor {
	for _, a := range r.Actors {
		if a.Type == id {
			return a
		}
	}
	return nil
}

// Validate re-runs the incremental checks, handler coverage and deadlock
// detection, against the already-built tables without rebuilding the whole
// pipeline. The returned diagnostics are only the re-run's findings; the
// result's candidate list is refreshed in place.
func (r *Result) Validate() ([]diagnostics.Diagnostic, error) {
	if !r.ran {
		return nil, errors.AnalysisNotRun("Validate")
	}

	diags := diagnostics.NewManager()
	diags.SetErrorLimit(r.cfg.MaxErrors)
	diags.SetWarningLimit(r.cfg.MaxWarnings)

	r.Candidates = NewDeadlockDetector(r.module, diags, r.cfg, r.Actors).Detect()

	v := NewValidator(r.module, diags, r.Actors, r.Messages)
	v.CheckHandlers(r.Graphs[GraphInheritance])

	diags.Sort()

	return diags.Diagnostics(), nil
}

// checkStructure verifies every cross reference in the module view before
// analysis starts: member, parameter and result types must exist, callees
// must exist, and self field accesses must stay inside the receiver layout.
// The first dangling reference aborts, nothing sound is computable past it.
func checkStructure(module *ir.Module) error {
	for id := ir.TypeID(0); int(id) < module.TypesCount(); id++ {
		def, _ := module.TypeByID(id)
		ctx := fmt.Sprintf("type '%s'", def.Name)

		for _, f := range def.Fields {
			if _, ok := module.TypeByID(f.Type); !ok {
				return errors.UnknownTypeRef(uint32(f.Type), ctx+" field '"+f.Name+"'")
			}
		}
		if def.Parent != ir.NoType {
			if _, ok := module.TypeByID(def.Parent); !ok {
				return errors.UnknownTypeRef(uint32(def.Parent), ctx+" parent")
			}
		}
		for _, v := range def.Variants {
			for _, p := range v.Payload {
				if _, ok := module.TypeByID(p); !ok {
					return errors.UnknownTypeRef(uint32(p), ctx+" variant '"+v.Name+"'")
				}
			}
		}

		switch def.Kind {
		case ir.KindArray, ir.KindSlice, ir.KindOption, ir.KindReference:
			if _, ok := module.TypeByID(def.Elem); !ok {
				return errors.UnknownTypeRef(uint32(def.Elem), ctx+" element")
			}
		case ir.KindMap:
			if _, ok := module.TypeByID(def.Key); !ok {
				return errors.UnknownTypeRef(uint32(def.Key), ctx+" key")
			}
			if _, ok := module.TypeByID(def.Elem); !ok {
				return errors.UnknownTypeRef(uint32(def.Elem), ctx+" value")
			}
		}
	}

	for id := ir.FuncID(0); int(id) < module.FuncsCount(); id++ {
		fn, _ := module.FuncByID(id)
		ctx := fmt.Sprintf("function '%s'", fn.Name)

		for _, p := range fn.Params {
			if _, ok := module.TypeByID(p.Type); !ok {
				return errors.UnknownTypeRef(uint32(p.Type), ctx+" parameter '"+p.Name+"'")
			}
		}
		if _, ok := module.TypeByID(fn.Result); !ok {
			return errors.UnknownTypeRef(uint32(fn.Result), ctx+" result")
		}

		selfDef, _ := module.TypeByID(fn.SelfType())

		var structErr error
		fn.Instrs(func(_, _ int, in ir.Instr) bool {
			if callee, ok := in.Callee(); ok {
				if _, ok := module.FuncByID(callee); !ok {
					structErr = errors.UnknownFuncRef(uint32(callee), ctx)
					return false
				}
			}
			if target, ok := in.TargetType(); ok {
				if _, ok := module.TypeByID(target); !ok {
					structErr = errors.UnknownTypeRef(uint32(target), ctx)
					return false
				}
			}
			if idx, ok := in.FieldIndex(); ok && selfReceiver(in) && selfDef != nil {
				if idx >= len(selfDef.Fields) {
					structErr = errors.UnknownFieldRef(idx, ctx)
					return false
				}
			}
			return true
		})
		if structErr != nil {
			return structErr
		}
	}

	return nil
}
