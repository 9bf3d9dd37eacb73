package actorcheck

import (
	"fmt"
	"strings"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/diagnostics"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/errors"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
)

// TypeClassifier decides per type whether it behaves as an actor, a message,
// or neither. Handler detection needs message verdicts and message
// serializability can reference actor-typed fields, so classification runs
// to a fixed point over the whole type table and memoizes the settled
// verdicts.
type TypeClassifier struct {
	module   *ir.Module
	diags    *diagnostics.Manager
	verdicts map[ir.TypeID]Classification
	actors   map[ir.TypeID]*Actor
	messages map[ir.TypeID]*MessageType
	ran      bool
}

// NewTypeClassifier creates a classifier over the module view.
func NewTypeClassifier(module *ir.Module, diags *diagnostics.Manager) *TypeClassifier {
	return &TypeClassifier{
		module:   module,
		diags:    diags,
		verdicts: make(map[ir.TypeID]Classification),
		actors:   make(map[ir.TypeID]*Actor),
		messages: make(map[ir.TypeID]*MessageType),
	}
}

// Classify returns the verdict for one type. The first call runs the whole
// fixed point; afterwards verdicts are memoized and never change.
func (tc *TypeClassifier) Classify(id ir.TypeID) (Classification, error) {
	if !tc.ran {
		if err := tc.ClassifyAll(); err != nil {
			return ClassUnknown, err
		}
	}

	v, ok := tc.verdicts[id]
	if !ok {
		return ClassNeither, nil
	}
	return v, nil
}

// ClassifyAll classifies every type in the module and builds the actor and
// message records. Safe to call more than once; later calls are no-ops.
func (tc *TypeClassifier) ClassifyAll() error {
	if tc.ran {
		return nil
	}

	// Verdicts grow monotonically: a type settled as actor or message can
	// only be confirmed by later passes, never retracted, so iterating
	// until nothing changes terminates.
	for changed := true; changed; {
		changed = false

		for id := ir.TypeID(1); int(id) < tc.module.TypesCount(); id++ {
			v := tc.classifyOnce(id)
			if v != tc.verdicts[id] {
				tc.verdicts[id] = v
				changed = true
			}
		}
	}

	tc.ran = true

	if err := tc.buildRecords(); err != nil {
		return err
	}

	tc.reportPartialSignals()

	return nil
}

// Actors returns the actor records ordered by type id.
func (tc *TypeClassifier) Actors() []*Actor {
	out := make([]*Actor, 0, len(tc.actors))
	for id := ir.TypeID(0); int(id) < tc.module.TypesCount(); id++ {
		if a, ok := tc.actors[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Messages returns the message records ordered by type id.
func (tc *TypeClassifier) Messages() []*MessageType {
	out := make([]*MessageType, 0, len(tc.messages))
	for id := ir.TypeID(0); int(id) < tc.module.TypesCount(); id++ {
		if m, ok := tc.messages[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ActorByType returns the actor record for a type id, nil for non-actors.
func (tc *TypeClassifier) ActorByType(id ir.TypeID) *Actor { return tc.actors[id] }

// MessageByType returns the message record for a type id, nil otherwise.
func (tc *TypeClassifier) MessageByType(id ir.TypeID) *MessageType { return tc.messages[id] }

// classifyOnce computes a verdict from the current verdict table. Actor
// takes precedence over message when a type would qualify as both.
func (tc *TypeClassifier) classifyOnce(id ir.TypeID) Classification {
	def, ok := tc.module.TypeByID(id)
	if !ok {
		return ClassNeither
	}

	if tc.qualifiesAsActor(def) {
		return ClassActor
	}

	if tc.qualifiesAsMessage(def) {
		return ClassMessage
	}

	return ClassNeither
}

func (tc *TypeClassifier) hasActorMarker(def *ir.TypeDef) bool {
	if tc.module.Implements(def.ID, ir.TraitActor) {
		return true
	}
	_, ok := def.Attrs["actor"]
	return ok
}

func (tc *TypeClassifier) hasActorName(def *ir.TypeDef) bool {
	return strings.HasSuffix(def.Name, "Actor")
}

// handlerShaped reports whether the function is a message handler by shape:
// a self-like receiver and a second parameter whose type currently
// classifies as message.
func (tc *TypeClassifier) handlerShaped(fn *ir.Function, self ir.TypeID) bool {
	if fn.SelfType() != self || len(fn.Params) < 2 {
		return false
	}
	return tc.verdicts[fn.Params[1].Type] == ClassMessage
}

func (tc *TypeClassifier) methodFacts(id ir.TypeID) (hasHandler, hasLifecycle, hasInitializer bool) {
	for _, fid := range tc.module.MethodsOf(id) {
		fn, ok := tc.module.FuncByID(fid)
		if !ok {
			continue
		}

		if tc.handlerShaped(fn, id) {
			hasHandler = true
		}
		if _, ok := LifecycleEventFromName(fn.Name); ok {
			hasLifecycle = true
		}
		if fn.Name == "init" || fn.Name == "new" {
			hasInitializer = true
		}
	}
	return
}

// qualifiesAsActor applies the actor requirements: a capability marker (or
// the naming convention as a last resort), at least one handler-shaped
// method, and a lifecycle hook or eligibility to have one generated.
// Explicitly marked actors are always generation-eligible.
func (tc *TypeClassifier) qualifiesAsActor(def *ir.TypeDef) bool {
	if def.Kind != ir.KindStruct {
		return false
	}

	marked := tc.hasActorMarker(def)
	named := tc.hasActorName(def)
	if !marked && !named {
		return false
	}

	hasHandler, hasLifecycle, hasInitializer := tc.methodFacts(def.ID)
	if !hasHandler {
		return false
	}

	if marked {
		return true
	}

	return hasLifecycle || hasInitializer
}

func (tc *TypeClassifier) hasMessageMarker(def *ir.TypeDef) bool {
	if tc.module.Implements(def.ID, ir.TraitMessage) || tc.module.Implements(def.ID, ir.TraitSerialize) {
		return true
	}
	if _, ok := def.Attrs["message"]; ok {
		return true
	}
	_, ok := def.Attrs["serialize"]
	return ok
}

func (tc *TypeClassifier) qualifiesAsMessage(def *ir.TypeDef) bool {
	if def.Kind != ir.KindStruct && def.Kind != ir.KindEnum {
		return false
	}

	if !tc.hasMessageMarker(def) {
		return false
	}

	ok, _ := tc.structurallySerializable(def.ID, make(map[ir.TypeID]bool))
	return ok
}

// structurallySerializable checks the recursive serializability rule:
// primitives, containers and options of serializable types, and aggregates
// whose members are all serializable. Actor-typed members serialize as actor
// addresses. Recursive shapes are permitted: a type already on the visiting
// path is assumed serializable.
func (tc *TypeClassifier) structurallySerializable(id ir.TypeID, visiting map[ir.TypeID]bool) (bool, string) {
	if visiting[id] {
		return true, ""
	}
	visiting[id] = true
	defer delete(visiting, id)

	if tc.verdicts[id] == ClassActor {
		return true, ""
	}

	def, ok := tc.module.TypeByID(id)
	if !ok {
		return false, "unknown type"
	}

	switch def.Kind {
	case ir.KindVoid, ir.KindInt, ir.KindFloat, ir.KindBool, ir.KindChar, ir.KindString:
		return true, ""

	case ir.KindArray, ir.KindSlice, ir.KindOption:
		if ok, why := tc.structurallySerializable(def.Elem, visiting); !ok {
			return false, fmt.Sprintf("element type '%s' is not serializable (%s)", tc.typeName(def.Elem), why)
		}
		return true, ""

	case ir.KindMap:
		if ok, why := tc.structurallySerializable(def.Key, visiting); !ok {
			return false, fmt.Sprintf("key type '%s' is not serializable (%s)", tc.typeName(def.Key), why)
		}
		if ok, why := tc.structurallySerializable(def.Elem, visiting); !ok {
			return false, fmt.Sprintf("value type '%s' is not serializable (%s)", tc.typeName(def.Elem), why)
		}
		return true, ""

	case ir.KindReference:
		// A reference crosses process boundaries only as an actor address.
		if tc.verdicts[def.Elem] == ClassActor {
			return true, ""
		}
		return false, fmt.Sprintf("reference to non-actor type '%s'", tc.typeName(def.Elem))

	case ir.KindStruct:
		for _, f := range def.Fields {
			if ok, why := tc.structurallySerializable(f.Type, visiting); !ok {
				return false, fmt.Sprintf("field '%s' is not serializable (%s)", f.Name, why)
			}
		}
		return true, ""

	case ir.KindEnum:
		for _, v := range def.Variants {
			for _, p := range v.Payload {
				if ok, why := tc.structurallySerializable(p, visiting); !ok {
					return false, fmt.Sprintf("variant '%s' payload is not serializable (%s)", v.Name, why)
				}
			}
		}
		return true, ""

	case ir.KindFunction:
		return false, "function-typed value"

	default:
		return false, "unresolved type"
	}
}

func (tc *TypeClassifier) typeName(id ir.TypeID) string {
	if def, ok := tc.module.TypeByID(id); ok {
		return def.Name
	}
	return fmt.Sprintf("type#%d", id)
}

// buildRecords materializes the actor and message analysis records for every
// settled verdict.
func (tc *TypeClassifier) buildRecords() error {
	for id := ir.TypeID(1); int(id) < tc.module.TypesCount(); id++ {
		def, _ := tc.module.TypeByID(id)

		switch tc.verdicts[id] {
		case ClassActor:
			actor, err := tc.buildActor(def)
			if err != nil {
				return err
			}
			tc.actors[id] = actor

		case ClassMessage:
			tc.messages[id] = tc.buildMessage(def)
		}
	}
	return nil
}

func protectionOf(name string, attrs map[string]string) ProtectionLevel {
	// Most restrictive attribute wins when several are present.
	if _, ok := attrs["private"]; ok {
		return ProtectionPrivate
	}
	if _, ok := attrs["protected"]; ok {
		return ProtectionProtected
	}
	if _, ok := attrs["internal"]; ok {
		return ProtectionInternal
	}
	if _, ok := attrs["public"]; ok {
		return ProtectionPublic
	}

	if strings.HasPrefix(name, "_") {
		return ProtectionPrivate
	}
	if strings.HasPrefix(name, "protected_") {
		return ProtectionProtected
	}
	return ProtectionPublic
}

func sharedResourceName(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"lock", "mutex", "pool", "semaphore", "resource"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (tc *TypeClassifier) buildActor(def *ir.TypeDef) (*Actor, error) {
	actor := &Actor{
		Type:       def.ID,
		Name:       def.Name,
		Lifecycle:  make(map[LifecycleEvent]ir.FuncID),
		Strategy:   SupervisionStrategyFromName(def.Attrs["supervision"]),
		Scheduling: SchedulingPriorityFromName(def.Attrs["scheduling"]),
		Span:       def.Span,
	}
	actor.Distribution, actor.DistributionTarget = DistributionPolicyFromAttr(def.Attrs["distribution"])

	if _, ok := def.Attrs["critical"]; ok {
		actor.Critical = true
	} else if strings.Contains(strings.ToLower(def.Name), "critical") {
		actor.Critical = true
	}

	for i, f := range def.Fields {
		field := &ActorField{
			Name:       f.Name,
			Type:       f.Type,
			Index:      i,
			Mutable:    f.Mutable,
			Protection: protectionOf(f.Name, f.Attrs),
			Group:      NoGroup,
		}
		if v, ok := f.Attrs["default"]; ok {
			field.Initial = v
		}
		if _, ok := f.Attrs["shared_resource"]; ok {
			field.SharedResource = true
		} else if _, ok := tc.module.TypeAttr(f.Type, "shared_resource"); ok {
			field.SharedResource = true
		} else if sharedResourceName(f.Name) {
			field.SharedResource = true
		}
		actor.Fields = append(actor.Fields, field)
	}

	for _, fid := range tc.module.MethodsOf(def.ID) {
		fn, _ := tc.module.FuncByID(fid)

		if event, ok := LifecycleEventFromName(fn.Name); ok {
			actor.Lifecycle[event] = fid
		}

		actor.Methods = append(actor.Methods, &ActorMethod{
			Name:       fn.Name,
			Func:       fid,
			Protection: protectionOf(fn.Name, fn.Attrs),
			Kind:       tc.methodKind(fn, def.ID),
			Mode:       AsyncMode(),
			Accesses:   make(map[int]*AccessSummary),
			Span:       fn.Span,
		})
	}

	if err := tc.resolveSupervised(actor, def); err != nil {
		return nil, err
	}

	return actor, nil
}

// methodKind recognizes the role of a method from attributes, then naming
// conventions.
func (tc *TypeClassifier) methodKind(fn *ir.Function, self ir.TypeID) MethodKind {
	if _, ok := fn.Attrs["periodic"]; ok {
		return MethodPeriodic
	}
	if _, ok := fn.Attrs["recovery"]; ok {
		return MethodRecovery
	}
	if _, ok := fn.Attrs["transition"]; ok {
		return MethodStateTransition
	}

	switch {
	case fn.Name == "init" || fn.Name == "new":
		return MethodInitializer
	case strings.HasPrefix(fn.Name, "handle_"):
		return MethodMessageHandler
	case strings.HasPrefix(fn.Name, "supervise_"):
		return MethodSupervisor
	case strings.HasPrefix(fn.Name, "periodic_"):
		return MethodPeriodic
	case strings.HasPrefix(fn.Name, "recover_"):
		return MethodRecovery
	case strings.HasPrefix(fn.Name, "transition_"):
		return MethodStateTransition
	case tc.handlerShaped(fn, self):
		return MethodMessageHandler
	}
	return MethodRegular
}

// resolveSupervised parses the supervises attribute. Naming a type that does
// not exist is a structural error; naming a non-actor type is filtered, the
// runtime cannot supervise it.
func (tc *TypeClassifier) resolveSupervised(actor *Actor, def *ir.TypeDef) error {
	raw, ok := def.Attrs["supervises"]
	if !ok || raw == "" {
		return nil
	}

	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		id, ok := tc.module.TypeIDByName(name)
		if !ok {
			tc.diags.Add(diagnostics.StructuralError(
				fmt.Sprintf("actor '%s' supervises unknown type '%s'", actor.Name, name),
				def.Span, actor.Name, name))
			return errors.NewStandardError(errors.CategoryInput, "MISSING_TYPE",
				fmt.Sprintf("supervises attribute of '%s' references missing type '%s'", actor.Name, name),
				map[string]interface{}{"actor": actor.Name, "type": name})
		}

		if tc.verdicts[id] == ClassActor {
			actor.AddSupervised(id)
		}
	}
	return nil
}

func (tc *TypeClassifier) buildMessage(def *ir.TypeDef) *MessageType {
	msg := &MessageType{
		Type:      def.ID,
		Name:      def.Name,
		Priority:  MessagePriorityFromName(def.Attrs["priority"]),
		Guarantee: DeliveryGuaranteeFromName(def.Attrs["delivery"]),
		Span:      def.Span,
	}

	msg.Serializable, _ = tc.structurallySerializable(def.ID, make(map[ir.TypeID]bool))

	msg.Immutable = true
	for _, f := range def.Fields {
		if f.Mutable {
			msg.Immutable = false
			tc.diags.Add(diagnostics.MessageMutabilityWarning(def.Name, f.Name, def.Span))
			break
		}
	}

	return msg
}

// reportPartialSignals surfaces types with some actor or message signals
// that still failed classification. These are advisories only; exclusion is
// never fatal here.
func (tc *TypeClassifier) reportPartialSignals() {
	for id := ir.TypeID(1); int(id) < tc.module.TypesCount(); id++ {
		def, _ := tc.module.TypeByID(id)
		verdict := tc.verdicts[id]

		if verdict == ClassActor {
			// Name-only recognition still deserves a nudge toward an
			// explicit marker.
			if !tc.hasActorMarker(def) && tc.hasActorName(def) {
				tc.diags.Add(diagnostics.NewDiagnosticBuilder().
					Warning().
					WithCode("ACT010").
					WithCategory(diagnostics.CategoryPartialActor).
					WithMessagef("actor '%s' is recognized by naming convention only; declare an explicit actor marker", def.Name).
					WithSpan(def.Span).
					WithOffenders(def.Name).
					Build())
			}
			continue
		}

		if verdict == ClassMessage {
			continue
		}

		if def.Kind == ir.KindStruct {
			marked := tc.hasActorMarker(def)
			named := tc.hasActorName(def)
			hasHandler, hasLifecycle, hasInitializer := tc.methodFacts(id)

			switch {
			case marked && !hasHandler:
				tc.diags.Add(diagnostics.PartialActorWarning(def.Name,
					"declares no message handler", def.Span))
			case !marked && !named && hasHandler:
				tc.diags.Add(diagnostics.PartialActorWarning(def.Name,
					"carries no actor marker", def.Span))
			case named && hasHandler && !hasLifecycle && !hasInitializer:
				tc.diags.Add(diagnostics.PartialActorWarning(def.Name,
					"has no lifecycle hook or initializer", def.Span))
			}
		}

		if tc.hasMessageMarker(def) && (def.Kind == ir.KindStruct || def.Kind == ir.KindEnum) {
			if ok, why := tc.structurallySerializable(id, make(map[ir.TypeID]bool)); !ok {
				tc.diags.Add(diagnostics.NonSerializableMessageWarning(def.Name, why, def.Span))
			}
		}
	}
}
