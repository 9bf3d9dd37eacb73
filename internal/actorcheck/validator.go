package actorcheck

import (
	"fmt"
	"sort"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

// recipientFieldNames are the field names under which an actor-typed message
// field addresses that actor.
var recipientFieldNames = map[string]bool{
	"target":      true,
	"recipient":   true,
	"to":          true,
	"dest":        true,
	"destination": true,
	"receiver":    true,
}

// Validator runs the post-inference checks: handler coverage, the lifecycle
// hooks a supervision strategy relies on, and cross-actor call legality.
type Validator struct {
	module    *ir.Module
	diags     *diagnostics.Manager
	actors    []*Actor
	messages  []*MessageType
	byType    map[ir.TypeID]*Actor
	msgByType map[ir.TypeID]*MessageType
	owner     map[ir.FuncID]*Actor
}

// NewValidator creates a validator over the analyzed actor and message sets.
func NewValidator(module *ir.Module, diags *diagnostics.Manager, actors []*Actor, messages []*MessageType) *Validator {
	v := &Validator{
		module:    module,
		diags:     diags,
		actors:    actors,
		messages:  messages,
		byType:    make(map[ir.TypeID]*Actor, len(actors)),
		msgByType: make(map[ir.TypeID]*MessageType, len(messages)),
		owner:     make(map[ir.FuncID]*Actor),
	}
	for _, a := range actors {
		v.byType[a.Type] = a
		for _, m := range a.Methods {
			v.owner[m.Func] = a
		}
	}
	for _, m := range messages {
		v.msgByType[m.Type] = m
	}
	return v
}

// CheckHandlers warns once per actor and message pair when a message
// addressed to the actor has a handler neither on the actor itself nor
// anywhere up its inheritance chain.
func (v *Validator) CheckHandlers(inheritance *ActorGraph) {
	handled := make(map[ir.TypeID]map[ir.TypeID]bool, len(v.actors))
	for _, a := range v.actors {
		handled[a.Type] = v.handledMessages(a)
	}

	for _, a := range v.actors {
		chain := v.selfAndAncestors(a, inheritance)

		for _, msg := range v.messages {
			addressed := false
			for _, link := range chain {
				if v.addressed(link, msg) {
					addressed = true
					break
				}
			}
			if !addressed {
				continue
			}

			covered := false
			for _, link := range chain {
				if handled[link.Type][msg.Type] {
					covered = true
					break
				}
			}
			if covered {
				continue
			}

			v.diags.Add(diagnostics.MissingHandlerWarning(a.Name, msg.Name, a.Span))
		}
	}
}

// handledMessages collects the message types the actor's own handlers accept.
func (v *Validator) handledMessages(a *Actor) map[ir.TypeID]bool {
	out := make(map[ir.TypeID]bool)
	for _, m := range a.Methods {
		if m.Kind != MethodMessageHandler {
			continue
		}
		fn, ok := v.module.FuncByID(m.Func)
		if !ok || len(fn.Params) < 2 {
			continue
		}
		if msg := v.derefMessage(fn.Params[1].Type); msg != nil {
			out[msg.Type] = true
		}
	}
	return out
}

// selfAndAncestors returns the actor followed by every inheritance ancestor
// in ascending type order.
func (v *Validator) selfAndAncestors(a *Actor, inheritance *ActorGraph) []*Actor {
	chain := []*Actor{a}

	reach := inheritance.reachableFrom(a.Type)
	ids := make([]ir.TypeID, 0, len(reach))
	for id := range reach {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if anc := v.byType[id]; anc != nil && anc != a {
			chain = append(chain, anc)
		}
	}
	return chain
}

// addressed reports whether the message is directed at the actor: by naming
// convention, by an explicit target attribute, or by a recipient-shaped
// field referencing the actor.
func (v *Validator) addressed(a *Actor, msg *MessageType) bool {
	if nameAddresses(a.Name, msg.Name) {
		return true
	}

	if target, ok := v.module.TypeAttr(msg.Type, "target"); ok && target == a.Name {
		return true
	}

	def, ok := v.module.TypeByID(msg.Type)
	if !ok {
		return false
	}
	for _, f := range def.Fields {
		if !recipientFieldNames[f.Name] {
			continue
		}
		if t := derefActor(v.module, v.byType, f.Type); t != nil && t.Type == a.Type {
			return true
		}
	}
	return false
}

// nameAddresses reports whether the message name targets the actor by
// convention: the actor name followed by a capitalized or underscored
// remainder, as in CounterMessage, CounterMsg, CounterCommand or
// Counter_reset.
func nameAddresses(actor, message string) bool {
	if len(message) <= len(actor) || message[:len(actor)] != actor {
		return false
	}
	c := message[len(actor)]
	return c == '_' || (c >= 'A' && c <= 'Z')
}

// derefMessage unwraps references and options down to a classified message
// type.
func (v *Validator) derefMessage(id ir.TypeID) *MessageType {
	visited := make(map[ir.TypeID]bool)

	for id != ir.NoType && !visited[id] {
		visited[id] = true

		if m := v.msgByType[id]; m != nil {
			return m
		}

		def, ok := v.module.TypeByID(id)
		if !ok {
			return nil
		}
		switch def.Kind {
		case ir.KindReference, ir.KindOption:
			id = def.Elem
		default:
			return nil
		}
	}
	return nil
}

// CheckLifecycles warns when an actor's declared supervision strategy has
// none of the hooks it relies on. Undeclared strategies default to
// one_for_one and stay silent.
func (v *Validator) CheckLifecycles() {
	for _, a := range v.actors {
		if _, ok := v.module.TypeAttr(a.Type, "supervision"); !ok {
			continue
		}

		switch a.Strategy {
		case OneForOne, OneForAll, AllForOne:
			// Restart strategies need a restart hook or a recovery method to
			// restore state.
			if _, ok := a.Lifecycle[EventPreRestart]; ok {
				continue
			}
			if _, ok := a.Lifecycle[EventPostRestart]; ok {
				continue
			}
			if v.hasMethodKind(a, MethodRecovery) {
				continue
			}
			v.diags.Add(diagnostics.MissingLifecycleWarning(a.Name, EventPreRestart.String(), a.Span))

		case Custom:
			if v.hasMethodKind(a, MethodSupervisor) {
				continue
			}
			if _, ok := a.Lifecycle[EventOnError]; ok {
				continue
			}
			v.diags.Add(diagnostics.MissingLifecycleWarning(a.Name, EventOnError.String(), a.Span))
		}
	}
}

func (v *Validator) hasMethodKind(a *Actor, kind MethodKind) bool {
	for _, m := range a.Methods {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// CheckCalls enforces cross-actor call legality on every call instruction
// inside actor methods. The legal forms are tried in order; anything left is
// a hard error recommending message passing.
func (v *Validator) CheckCalls(supervision, inheritance *ActorGraph) {
	type callSite struct {
		caller ir.FuncID
		callee ir.FuncID
	}
	seen := make(map[callSite]bool)

	for _, a := range v.actors {
		for _, m := range a.Methods {
			fn, ok := v.module.FuncByID(m.Func)
			if !ok {
				continue
			}
			fn.Instrs(func(_, _ int, in ir.Instr) bool {
				callee, ok := in.Callee()
				if !ok {
					return true
				}
				site := callSite{caller: m.Func, callee: callee}
				if seen[site] {
					return true
				}
				seen[site] = true
				v.checkCall(a, m, callee, supervision, inheritance)
				return true
			})
		}
	}
}

func (v *Validator) checkCall(a *Actor, m *ActorMethod, callee ir.FuncID, supervision, inheritance *ActorGraph) {
	target := v.owner[callee]
	if target == nil || target == a {
		return
	}

	cm := target.MethodByFunc(callee)
	if cm == nil {
		return
	}

	if cm.Protection == ProtectionPublic {
		// Supervisors and parents reach into their charges directly.
		if supervision.HasEdge(a.Type, target.Type) || inheritance.HasEdge(target.Type, a.Type) {
			return
		}
	}

	if messagePrimitiveName(cm.Name) {
		return
	}

	v.diags.Add(diagnostics.IllegalCrossActorCallError(
		fmt.Sprintf("%s.%s", a.Name, m.Name), cm.Name, target.Name, m.Span))
}

// messagePrimitiveName reports whether a method name resolves to one of the
// runtime message primitives.
func messagePrimitiveName(name string) bool {
	switch name {
	case "send", "tell", "ask", "forward":
		return true
	}
	return false
}
