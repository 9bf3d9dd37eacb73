package actorcheck

import (
	"fmt"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

// bodySummary is the once-computed abstract interpretation of one method
// body: self field accesses, static callees, and the suspension facts the
// consistency rules need. Accesses on values other than the receiver belong
// to other types and are not counted here.
type bodySummary struct {
	reads  map[int]int
	writes map[int]int
	calls  []ir.FuncID

	messagePrims int
	suspensions  int
	hasLock      bool
	hasUnlock    bool

	// hazard records a self access on both sides of a suspension point with
	// at least one write overall.
	hazard bool
}

// methodEntry is one slot of the flat method table the inference fixed point
// runs over. Methods reference each other through this table, never through
// pointer cycles.
type methodEntry struct {
	actor   *Actor
	method  *ActorMethod
	fn      *ir.Function
	summary bodySummary

	// own is the decision-table mode implied by the method's closed access
	// set alone, before callee requirements are folded in.
	own ConcurrencyMode

	// declared remembers the attribute-declared mode. A declared mode that
	// escalates records the conflict exactly once.
	declared       ConcurrencyMode
	conflicted     bool
	conflictReason string
}

// ModeInferer assigns every actor method its concurrency mode. Explicit
// attributes win; everything else is inferred from field accesses and callee
// modes as a monotone fixed point. Modes only ever move up the lattice
// Async < ReadOnly < Shared < Isolated < Exclusive, so iteration order does
// not affect the result. A declared mode contradicted by behavior is
// reported and escalated to the stricter mode rather than silently kept.
type ModeInferer struct {
	module  *ir.Module
	diags   *diagnostics.Manager
	entries []*methodEntry
	byFunc  map[ir.FuncID]*methodEntry
}

// NewModeInferer builds the method table over the classified actors.
func NewModeInferer(module *ir.Module, diags *diagnostics.Manager, actors []*Actor) *ModeInferer {
	mi := &ModeInferer{
		module: module,
		diags:  diags,
		byFunc: make(map[ir.FuncID]*methodEntry),
	}

	for _, a := range actors {
		for _, m := range a.Methods {
			fn, ok := module.FuncByID(m.Func)
			if !ok {
				continue
			}
			e := &methodEntry{actor: a, method: m, fn: fn}
			mi.entries = append(mi.entries, e)
			mi.byFunc[m.Func] = e
		}
	}

	return mi
}

// Infer runs the whole inference: body summaries, access closure, explicit
// attribute seeding, the interprocedural fixed point, then consistency
// reporting over the settled table.
func (mi *ModeInferer) Infer() {
	for _, e := range mi.entries {
		e.summary = mi.summarize(e.fn)
	}

	for _, e := range mi.entries {
		mi.closeAccesses(e)
		e.own = mi.decisionMode(e)
	}

	for _, e := range mi.entries {
		mi.seed(e)
	}

	// Interprocedural fixed point: a callee's mode can rise while its own
	// callees resolve, so iterate until no mode changes.
	for changed := true; changed; {
		changed = false

		for _, e := range mi.entries {
			required, reason := mi.requirement(e)
			if required.Rank() <= e.method.Mode.Rank() {
				continue
			}

			if e.method.ModeExplicit && !e.conflicted {
				e.conflicted = true
				e.conflictReason = reason
			}

			e.method.Mode = required
			if reason != "" {
				e.method.EscalationReason = reason
			}
			changed = true
		}
	}

	for _, e := range mi.entries {
		mi.report(e)
	}
}

// summarize walks one function body in block layout order.
func (mi *ModeInferer) summarize(fn *ir.Function) bodySummary {
	s := bodySummary{
		reads:  make(map[int]int),
		writes: make(map[int]int),
	}

	sawSuspension := false
	accessBefore := false
	accessAfter := false
	wroteAny := false

	fn.Instrs(func(_, _ int, in ir.Instr) bool {
		switch {
		case in.Op == ir.OpGetField && selfReceiver(in):
			if idx, ok := in.FieldIndex(); ok {
				s.reads[idx]++
				if sawSuspension {
					accessAfter = true
				} else {
					accessBefore = true
				}
			}

		case in.Op == ir.OpSetField && selfReceiver(in):
			if idx, ok := in.FieldIndex(); ok {
				s.writes[idx]++
				wroteAny = true
				if sawSuspension {
					accessAfter = true
				} else {
					accessBefore = true
				}
			}

		case in.Op == ir.OpCall || in.Op == ir.OpVCall:
			if callee, ok := in.Callee(); ok {
				s.calls = append(s.calls, callee)
			}

		case in.IsSuspension():
			s.suspensions++
			sawSuspension = true

		case in.IsMessagePrimitive():
			s.messagePrims++

		case in.Op == ir.OpLock:
			s.hasLock = true

		case in.Op == ir.OpUnlock:
			s.hasUnlock = true
		}
		return true
	})

	s.hazard = sawSuspension && accessBefore && accessAfter && wroteAny

	return s
}

// selfReceiver reports whether the instruction's receiver operand is the
// method's own actor instance.
func selfReceiver(in ir.Instr) bool {
	if len(in.Operands) == 0 || in.Operands[0].Kind != ir.OperandValue {
		return false
	}
	return in.Operands[0].Name == "self" || in.Operands[0].Name == "this"
}

// closeAccesses folds the accesses of transitively called same-actor methods
// into the caller's access set. The runtime synchronizes by the caller's
// effective footprint, so isolation grouping must see through local calls.
func (mi *ModeInferer) closeAccesses(e *methodEntry) {
	visited := make(map[ir.FuncID]bool)
	work := []ir.FuncID{e.method.Func}

	for len(work) > 0 {
		fid := work[len(work)-1]
		work = work[:len(work)-1]
		if visited[fid] {
			continue
		}
		visited[fid] = true

		ce := mi.byFunc[fid]
		if ce == nil || ce.actor != e.actor {
			continue
		}

		for idx, n := range ce.summary.reads {
			mi.access(e.method, idx).Reads += n
		}
		for idx, n := range ce.summary.writes {
			mi.access(e.method, idx).Writes += n
		}

		work = append(work, ce.summary.calls...)
	}
}

func (mi *ModeInferer) access(m *ActorMethod, idx int) *AccessSummary {
	a := m.Accesses[idx]
	if a == nil {
		a = &AccessSummary{}
		m.Accesses[idx] = a
	}
	return a
}

// decisionMode applies the decision table to the closed access set: nothing
// touched means Async, pure reads mean ReadOnly, touching every field means
// Exclusive, and a strict subset means Isolated with the group resolved by
// isolation analysis.
func (mi *ModeInferer) decisionMode(e *methodEntry) ConcurrencyMode {
	if len(e.method.Accesses) == 0 {
		return AsyncMode()
	}

	if !e.method.WritesState() {
		return ReadOnlyMode()
	}

	if len(e.method.Accesses) == len(e.actor.Fields) {
		return ExclusiveMode()
	}

	return IsolatedMode(NoGroup)
}

// seed starts every method at the lattice bottom, then applies an
// attribute-declared mode when one is present. The most restrictive
// attribute wins when several are present.
func (mi *ModeInferer) seed(e *methodEntry) {
	e.method.Mode = AsyncMode()

	attrs := e.fn.Attrs

	var mode ConcurrencyMode
	switch {
	case hasAttr(attrs, "exclusive"):
		mode = ExclusiveMode()
	case hasAttr(attrs, "transactional"):
		mode = TransactionalMode(TxIsolationFromName(attrs["transactional"]))
	case hasAttr(attrs, "priority"):
		mode = PriorityBasedMode(parsePriority(attrs["priority"]))
	case hasAttr(attrs, "isolated"):
		mode = IsolatedMode(NoGroup)
	case hasAttr(attrs, "readonly"):
		mode = ReadOnlyMode()
	case hasAttr(attrs, "shared"):
		mode = SharedMode()
	case hasAttr(attrs, "async"):
		mode = AsyncMode()
	default:
		return
	}

	e.method.Mode = mode
	e.method.ModeExplicit = true
	e.declared = mode
}

func hasAttr(attrs map[string]string, key string) bool {
	_, ok := attrs[key]
	return ok
}

// requirement computes the mode the method needs: the stronger of its own
// decision-table mode and the strongest caller-side requirement among its
// callees. Declared-async methods trade the access requirement for the
// suspension rule, so only a suspension-spanning state access or a
// state-writing callee escalates them. The result depends only on the
// summaries and the callee modes, never on the method's current mode, which
// keeps the fixed point monotone.
func (mi *ModeInferer) requirement(e *methodEntry) (ConcurrencyMode, string) {
	calleeMode, calleeReason := mi.calleeRequirement(e)

	if e.method.ModeExplicit && e.declared.Kind == ModeAsync {
		required := AsyncMode()
		reason := ""
		if e.summary.hazard && !mi.suspensionEscape(e) {
			required = ExclusiveMode()
			reason = "state access spans a suspension point without message passing or locking"
		}
		if calleeMode.Rank() >= IsolatedMode(NoGroup).Rank() && calleeMode.Rank() > required.Rank() {
			return calleeMode, calleeReason
		}
		return required, reason
	}

	if calleeMode.Rank() > e.own.Rank() {
		return calleeMode, calleeReason
	}
	return e.own, ""
}

// calleeRequirement folds callee modes into a caller-side requirement.
// Exclusive-class callees demand an exclusive caller; a direct synchronous
// call into another actor blocks the caller on foreign state and demands the
// same.
func (mi *ModeInferer) calleeRequirement(e *methodEntry) (ConcurrencyMode, string) {
	required := AsyncMode()
	reason := ""

	raise := func(mode ConcurrencyMode, why string) {
		if mode.Rank() > required.Rank() {
			required = mode
			reason = why
		}
	}

	for _, callee := range e.summary.calls {
		ce := mi.byFunc[callee]
		if ce == nil {
			continue
		}

		if ce.actor != e.actor {
			raise(ExclusiveMode(), fmt.Sprintf("direct call into actor '%s'", ce.actor.Name))
			continue
		}

		switch ce.method.Mode.Kind {
		case ModeExclusive, ModePriorityBased, ModeTransactional:
			raise(ExclusiveMode(), fmt.Sprintf("calls %s method '%s'", ce.method.Mode, ce.method.Name))
		case ModeIsolated:
			raise(IsolatedMode(NoGroup), fmt.Sprintf("calls isolated method '%s'", ce.method.Name))
		case ModeShared:
			raise(SharedMode(), fmt.Sprintf("calls shared method '%s'", ce.method.Name))
		case ModeReadOnly:
			raise(ReadOnlyMode(), fmt.Sprintf("calls readonly method '%s'", ce.method.Name))
		}
	}

	return required, reason
}

// report surfaces the consistency findings for one settled method.
func (mi *ModeInferer) report(e *methodEntry) {
	m := e.method

	if m.ModeExplicit {
		switch {
		case e.conflicted && (e.declared.Kind == ModeReadOnly || e.declared.Kind == ModeShared) && len(e.summary.writes) > 0:
			field, _ := mi.firstWrittenField(e)
			mi.diags.Add(diagnostics.ReadOnlyWriteError(e.actor.Name, m.Name, field, m.Span))

		case e.conflicted:
			reason := e.conflictReason
			if reason == "" {
				reason = "writes actor state"
			}
			mi.diags.Add(diagnostics.ModeConflictError(e.actor.Name, m.Name,
				e.declared.String(), m.Mode.String(), reason, m.Span))
		}
		return
	}

	if m.EscalationReason != "" && m.Mode.Rank() > e.own.Rank() {
		mi.diags.Add(diagnostics.ModeEscalationInfo(e.actor.Name, m.Name,
			e.own.String(), m.Mode.String(), m.EscalationReason, m.Span))
	}
}

// suspensionEscape reports whether the body carries one of the accepted
// escapes for state access across a suspension: message-passing primitives
// or an explicit lock pair.
func (mi *ModeInferer) suspensionEscape(e *methodEntry) bool {
	if e.summary.messagePrims > 0 {
		return true
	}
	return e.summary.hasLock && e.summary.hasUnlock
}

// firstWrittenField names the lowest-indexed field the method itself writes.
func (mi *ModeInferer) firstWrittenField(e *methodEntry) (string, bool) {
	best := -1
	for idx := range e.summary.writes {
		if best < 0 || idx < best {
			best = idx
		}
	}
	if best < 0 || best >= len(e.actor.Fields) {
		return "", false
	}
	return e.actor.Fields[best].Name, true
}
