// Package actorcheck implements the actor-concurrency verifier that runs
// between type checking and code generation. Over a read-only module view it
// decides which types are actors and messages, derives the relationship
// graphs between actors, assigns every actor method a concurrency mode,
// partitions actor state into isolation groups, scores deadlock risk on the
// inter-actor send graph, and validates handler coverage and cross-actor
// call legality.
//
// The verifier is single threaded and performs no I/O. Findings are
// accumulated as diagnostics; only structural failures abort a run.
package actorcheck

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/ir"
	"github.com/menchan-Rub/SwiftLight-sub000/internal/position"
)

// Classification is the verdict of the type classifier for one type.
type Classification int

const (
	ClassUnknown Classification = iota
	ClassNeither
	ClassActor
	ClassMessage
)

func (c Classification) String() string {
	switch c {
	case ClassUnknown:
		return "unknown"
	case ClassNeither:
		return "neither"
	case ClassActor:
		return "actor"
	case ClassMessage:
		return "message"
	default:
		return "invalid"
	}
}

// ProtectionLevel controls who may touch a field or call a method.
type ProtectionLevel int

const (
	ProtectionPrivate ProtectionLevel = iota
	ProtectionProtected
	ProtectionPublic
	ProtectionInternal
)

func (p ProtectionLevel) String() string {
	switch p {
	case ProtectionPrivate:
		return "private"
	case ProtectionProtected:
		return "protected"
	case ProtectionPublic:
		return "public"
	case ProtectionInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// MethodKind classifies what role a method plays in the actor's protocol.
type MethodKind int

const (
	MethodRegular MethodKind = iota
	MethodInitializer
	MethodMessageHandler
	MethodPeriodic
	MethodSupervisor
	MethodStateTransition
	MethodRecovery
)

func (k MethodKind) String() string {
	switch k {
	case MethodRegular:
		return "regular"
	case MethodInitializer:
		return "initializer"
	case MethodMessageHandler:
		return "message_handler"
	case MethodPeriodic:
		return "periodic"
	case MethodSupervisor:
		return "supervisor"
	case MethodStateTransition:
		return "state_transition"
	case MethodRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// LifecycleEvent is one point in the actor runtime's lifecycle an actor may
// hook with a method. Hook methods are recognized by these snake_case names.
type LifecycleEvent int

const (
	EventPreInit LifecycleEvent = iota
	EventPostInit
	EventPreReceive
	EventPostProcess
	EventOnError
	EventPreTerminate
	EventPreRestart
	EventPostRestart
	EventPreSuspend
	EventPostResume
	EventOnMemoryPressure
	EventOnSystemOverload

	lifecycleEventCount
)

func (e LifecycleEvent) String() string {
	switch e {
	case EventPreInit:
		return "pre_init"
	case EventPostInit:
		return "post_init"
	case EventPreReceive:
		return "pre_receive"
	case EventPostProcess:
		return "post_process"
	case EventOnError:
		return "on_error"
	case EventPreTerminate:
		return "pre_terminate"
	case EventPreRestart:
		return "pre_restart"
	case EventPostRestart:
		return "post_restart"
	case EventPreSuspend:
		return "pre_suspend"
	case EventPostResume:
		return "post_resume"
	case EventOnMemoryPressure:
		return "on_memory_pressure"
	case EventOnSystemOverload:
		return "on_system_overload"
	default:
		return "unknown"
	}
}

// LifecycleEventFromName maps a method name to the lifecycle event it hooks.
func LifecycleEventFromName(name string) (LifecycleEvent, bool) {
	for e := LifecycleEvent(0); e < lifecycleEventCount; e++ {
		if e.String() == name {
			return e, true
		}
	}
	return 0, false
}

// SupervisionStrategy is how a supervisor reacts to a supervisee failure.
type SupervisionStrategy int

const (
	// OneForOne restarts only the failed actor. The default.
	OneForOne SupervisionStrategy = iota
	// OneForAll restarts every supervisee when one fails.
	OneForAll
	// AllForOne terminates all supervisees and restarts the group.
	AllForOne
	// Escalate passes the failure to this actor's own supervisor.
	Escalate
	// Custom defers to a user-declared strategy method.
	Custom
)

func (s SupervisionStrategy) String() string {
	switch s {
	case OneForOne:
		return "one_for_one"
	case OneForAll:
		return "one_for_all"
	case AllForOne:
		return "all_for_one"
	case Escalate:
		return "escalate"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// SupervisionStrategyFromName parses a strategy attribute value. Unrecognized
// non-empty values read as Custom.
func SupervisionStrategyFromName(name string) SupervisionStrategy {
	switch name {
	case "", "one_for_one":
		return OneForOne
	case "one_for_all":
		return OneForAll
	case "all_for_one":
		return AllForOne
	case "escalate":
		return Escalate
	default:
		return Custom
	}
}

// MessagePriority is the delivery tier of a message type. FIFO ordering is
// guaranteed per actor pair within one tier only.
type MessagePriority int

const (
	PrioritySystem MessagePriority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

func (p MessagePriority) String() string {
	switch p {
	case PrioritySystem:
		return "system"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// MessagePriorityFromName parses a priority attribute value, defaulting to
// Normal.
func MessagePriorityFromName(name string) MessagePriority {
	switch name {
	case "system":
		return PrioritySystem
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	case "background":
		return PriorityBackground
	default:
		return PriorityNormal
	}
}

// DeliveryGuarantee is the requested delivery semantics of a message type.
type DeliveryGuarantee int

const (
	AtMostOnce DeliveryGuarantee = iota
	AtLeastOnce
	ExactlyOnce
	OrderedDelivery
)

func (d DeliveryGuarantee) String() string {
	switch d {
	case AtMostOnce:
		return "at_most_once"
	case AtLeastOnce:
		return "at_least_once"
	case ExactlyOnce:
		return "exactly_once"
	case OrderedDelivery:
		return "ordered"
	default:
		return "unknown"
	}
}

// DeliveryGuaranteeFromName parses a delivery attribute value, defaulting to
// AtMostOnce.
func DeliveryGuaranteeFromName(name string) DeliveryGuarantee {
	switch name {
	case "at_least_once":
		return AtLeastOnce
	case "exactly_once":
		return ExactlyOnce
	case "ordered":
		return OrderedDelivery
	default:
		return AtMostOnce
	}
}

// DistributionPolicy is where instances of an actor may be placed.
type DistributionPolicy int

const (
	LocalOnly DistributionPolicy = iota
	AnyNode
	SpecificNode
	NodeGroup
	GeoLocated
	Affinity
	LoadBalanced
)

func (d DistributionPolicy) String() string {
	switch d {
	case LocalOnly:
		return "local_only"
	case AnyNode:
		return "any_node"
	case SpecificNode:
		return "specific_node"
	case NodeGroup:
		return "node_group"
	case GeoLocated:
		return "geo_located"
	case Affinity:
		return "affinity"
	case LoadBalanced:
		return "load_balanced"
	default:
		return "unknown"
	}
}

// DistributionPolicyFromAttr parses a distribution attribute value. Values
// with a target payload use "policy:target" form, e.g. "node:worker-3".
func DistributionPolicyFromAttr(value string) (DistributionPolicy, string) {
	policy, target := value, ""
	if i := strings.IndexByte(value, ':'); i >= 0 {
		policy, target = value[:i], value[i+1:]
	}

	switch policy {
	case "any_node", "any":
		return AnyNode, target
	case "node", "specific_node":
		return SpecificNode, target
	case "group", "node_group":
		return NodeGroup, target
	case "geo", "geo_located":
		return GeoLocated, target
	case "affinity":
		return Affinity, target
	case "load_balanced", "balanced":
		return LoadBalanced, target
	default:
		return LocalOnly, target
	}
}

// SchedulingPriority is the runtime scheduling class of an actor.
type SchedulingPriority int

const (
	SchedRealTime SchedulingPriority = iota
	SchedHigh
	SchedNormal
	SchedLow
	SchedBackground
)

func (s SchedulingPriority) String() string {
	switch s {
	case SchedRealTime:
		return "realtime"
	case SchedHigh:
		return "high"
	case SchedNormal:
		return "normal"
	case SchedLow:
		return "low"
	case SchedBackground:
		return "background"
	default:
		return "unknown"
	}
}

// SchedulingPriorityFromName parses a scheduling attribute value, defaulting
// to Normal.
func SchedulingPriorityFromName(name string) SchedulingPriority {
	switch name {
	case "realtime", "real_time":
		return SchedRealTime
	case "high":
		return SchedHigh
	case "low":
		return SchedLow
	case "background":
		return SchedBackground
	default:
		return SchedNormal
	}
}

// TxIsolation is the isolation level of a transactional method.
type TxIsolation int

const (
	TxReadUncommitted TxIsolation = iota
	TxReadCommitted
	TxRepeatableRead
	TxSerializable
)

func (t TxIsolation) String() string {
	switch t {
	case TxReadUncommitted:
		return "read_uncommitted"
	case TxReadCommitted:
		return "read_committed"
	case TxRepeatableRead:
		return "repeatable_read"
	case TxSerializable:
		return "serializable"
	default:
		return "unknown"
	}
}

// TxIsolationFromName parses a transactional attribute value, defaulting to
// Serializable (the strictest level).
func TxIsolationFromName(name string) TxIsolation {
	switch name {
	case "read_uncommitted":
		return TxReadUncommitted
	case "read_committed":
		return TxReadCommitted
	case "repeatable_read":
		return TxRepeatableRead
	default:
		return TxSerializable
	}
}

// ModeKind discriminates the concurrency mode variants.
type ModeKind int

const (
	ModeAsync ModeKind = iota
	ModeReadOnly
	ModeShared
	ModeIsolated
	ModeExclusive
	ModePriorityBased
	ModeTransactional
)

func (k ModeKind) String() string {
	switch k {
	case ModeAsync:
		return "async"
	case ModeReadOnly:
		return "readonly"
	case ModeShared:
		return "shared"
	case ModeIsolated:
		return "isolated"
	case ModeExclusive:
		return "exclusive"
	case ModePriorityBased:
		return "priority"
	case ModeTransactional:
		return "transactional"
	default:
		return "unknown"
	}
}

// NoGroup marks an isolation group that has not been assigned yet.
const NoGroup = -1

// ConcurrencyMode is the per-method classification governing which accesses
// may overlap at runtime. The payload fields are meaningful only for the
// kinds that carry them.
type ConcurrencyMode struct {
	Kind ModeKind
	// Group is the isolation group id for ModeIsolated.
	Group int
	// Priority is the scheduling priority for ModePriorityBased.
	Priority uint8
	// Level is the isolation level for ModeTransactional.
	Level TxIsolation
}

// AsyncMode builds the Async concurrency mode.
func AsyncMode() ConcurrencyMode { return ConcurrencyMode{Kind: ModeAsync, Group: NoGroup} }

// ReadOnlyMode builds the ReadOnly concurrency mode.
func ReadOnlyMode() ConcurrencyMode { return ConcurrencyMode{Kind: ModeReadOnly, Group: NoGroup} }

// SharedMode builds the Shared concurrency mode.
func SharedMode() ConcurrencyMode { return ConcurrencyMode{Kind: ModeShared, Group: NoGroup} }

// IsolatedMode builds the Isolated concurrency mode over one group.
func IsolatedMode(group int) ConcurrencyMode {
	return ConcurrencyMode{Kind: ModeIsolated, Group: group}
}

// ExclusiveMode builds the Exclusive concurrency mode.
func ExclusiveMode() ConcurrencyMode { return ConcurrencyMode{Kind: ModeExclusive, Group: NoGroup} }

// PriorityBasedMode builds the PriorityBased concurrency mode.
func PriorityBasedMode(priority uint8) ConcurrencyMode {
	return ConcurrencyMode{Kind: ModePriorityBased, Group: NoGroup, Priority: priority}
}

// TransactionalMode builds the Transactional concurrency mode.
func TransactionalMode(level TxIsolation) ConcurrencyMode {
	return ConcurrencyMode{Kind: ModeTransactional, Group: NoGroup, Level: level}
}

func (m ConcurrencyMode) String() string {
	switch m.Kind {
	case ModeIsolated:
		if m.Group == NoGroup {
			return "isolated"
		}
		return fmt.Sprintf("isolated(%d)", m.Group)
	case ModePriorityBased:
		return fmt.Sprintf("priority(%d)", m.Priority)
	case ModeTransactional:
		return fmt.Sprintf("transactional(%s)", m.Level)
	default:
		return m.Kind.String()
	}
}

// Rank places the mode on the escalation lattice. Escalation only ever moves
// a method to a higher rank. PriorityBased and Transactional serialize the
// whole actor, so callers treat them like Exclusive.
func (m ConcurrencyMode) Rank() int {
	switch m.Kind {
	case ModeAsync:
		return 0
	case ModeReadOnly:
		return 1
	case ModeShared:
		return 2
	case ModeIsolated:
		return 3
	case ModeExclusive, ModePriorityBased, ModeTransactional:
		return 4
	default:
		return 0
	}
}

// AccessSummary counts how often a method touches one field.
type AccessSummary struct {
	Reads  int
	Writes int
}

// ActorField is one state field of an actor.
type ActorField struct {
	Name       string
	Type       ir.TypeID
	Index      int
	Mutable    bool
	Protection ProtectionLevel
	// Initial is the declared initial value, empty when none.
	Initial string
	// Group is the isolation group id, NoGroup until isolation analysis
	// has run. Afterwards every field belongs to exactly one group.
	Group int
	// SharedResource marks fields typed or named like an externally shared
	// resource (locks, pools, handles). Feeds deadlock severity scoring.
	SharedResource bool
}

// ActorMethod is one method of an actor together with everything the
// analyses derive about it.
type ActorMethod struct {
	Name       string
	Func       ir.FuncID
	Protection ProtectionLevel
	Kind       MethodKind
	Mode       ConcurrencyMode
	// ModeExplicit records that Mode was seeded from an attribute rather
	// than inference. An explicit mode contradicted by the method's behavior
	// is escalated to the stricter mode and the conflict is reported.
	ModeExplicit bool
	// EscalationReason is retained whenever inference raised the mode above
	// what the method's own accesses imply.
	EscalationReason string
	// Accesses maps field index to read/write counts, populated by mode
	// inference and consumed by isolation analysis. Keys are always valid
	// indices into the owning actor's field list.
	Accesses map[int]*AccessSummary

	Span position.Span
}

// AccessedFields returns the accessed field indices in ascending order.
func (m *ActorMethod) AccessedFields() []int {
	out := make([]int, 0, len(m.Accesses))
	for idx := range m.Accesses {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// WritesState reports whether the method writes any field.
func (m *ActorMethod) WritesState() bool {
	for _, a := range m.Accesses {
		if a.Writes > 0 {
			return true
		}
	}
	return false
}

// IsolationGroup is one element of an actor's state partition: a set of
// field indices whose methods must synchronize with each other but not with
// other groups.
type IsolationGroup struct {
	ID     int
	Fields []int // ascending field indices
}

// Actor is the analysis record for one actor type. Created by the type
// classifier and filled in place by the later passes.
type Actor struct {
	Type ir.TypeID
	Name string

	Fields  []*ActorField
	Methods []*ActorMethod

	// Lifecycle maps each hooked event to the hook method's function id.
	Lifecycle map[LifecycleEvent]ir.FuncID

	Strategy SupervisionStrategy
	// Supervised is the ordered set of supervisee actor types, from the
	// supervises attribute plus supervisor-method message targets.
	Supervised []ir.TypeID

	Scheduling         SchedulingPriority
	Distribution       DistributionPolicy
	DistributionTarget string

	// Critical marks actors whose failure stalls a large part of the
	// system. Set from attributes, name signal, or reference counting.
	Critical bool

	// Groups is the state partition, filled by isolation analysis. Groups
	// are disjoint and their union covers every field index.
	Groups []IsolationGroup

	Span position.Span
}

// MethodByFunc returns the method record backed by the given function.
func (a *Actor) MethodByFunc(id ir.FuncID) *ActorMethod {
	for _, m := range a.Methods {
		if m.Func == id {
			return m
		}
	}
	return nil
}

// MethodByName returns the method record with the given name.
func (a *Actor) MethodByName(name string) *ActorMethod {
	for _, m := range a.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FieldByName returns the field record with the given name.
func (a *Actor) FieldByName(name string) *ActorField {
	for _, f := range a.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddSupervised appends a supervisee, keeping the set ordered and free of
// duplicates.
func (a *Actor) AddSupervised(id ir.TypeID) {
	for _, s := range a.Supervised {
		if s == id {
			return
		}
	}
	a.Supervised = append(a.Supervised, id)
	sort.Slice(a.Supervised, func(i, j int) bool { return a.Supervised[i] < a.Supervised[j] })
}

// GroupOf returns the isolation group containing the field index, or nil
// before isolation analysis has run.
func (a *Actor) GroupOf(fieldIndex int) *IsolationGroup {
	for i := range a.Groups {
		for _, f := range a.Groups[i].Fields {
			if f == fieldIndex {
				return &a.Groups[i]
			}
		}
	}
	return nil
}

// MessageType is the analysis record for one message type.
type MessageType struct {
	Type ir.TypeID
	Name string
	// Serializable reports the recursive structural check result.
	Serializable bool
	// Immutable reports that no field of the type is mutable. Mutability
	// is a soft preference; mutable messages classify but draw an advisory.
	Immutable bool
	Priority  MessagePriority
	Guarantee DeliveryGuarantee
	Span      position.Span
}

// DeadlockCandidate is one communication cycle with its heuristic severity
// in [0,1]. Candidates below the reporting cutoff stay available here even
// though they surface only as info diagnostics.
type DeadlockCandidate struct {
	// Cycle is the ordered actor types forming the cycle; the closing edge
	// back to the first element is implied.
	Cycle []ir.TypeID
	// CycleNames mirrors Cycle as type names for presentation.
	CycleNames []string
	Severity   float64
}

// actorLabel names an actor type for diagnostics, falling back to the raw
// type id for types outside the index.
func actorLabel(byType map[ir.TypeID]*Actor, id ir.TypeID) string {
	if a := byType[id]; a != nil {
		return a.Name
	}
	return fmt.Sprintf("actor#%d", id)
}

// actorLabels maps a cycle to presentation names.
func actorLabels(byType map[ir.TypeID]*Actor, cycle []ir.TypeID) []string {
	names := make([]string, len(cycle))
	for i, id := range cycle {
		names[i] = actorLabel(byType, id)
	}
	return names
}

// firstActorSpan anchors a cycle diagnostic at its first member.
func firstActorSpan(byType map[ir.TypeID]*Actor, cycle []ir.TypeID) position.Span {
	if len(cycle) > 0 {
		if a := byType[cycle[0]]; a != nil {
			return a.Span
		}
	}
	return position.Span{}
}

// derefActor unwraps references, options and containers down to an actor in
// the index, nil when the chain ends anywhere else.
func derefActor(module *ir.Module, byType map[ir.TypeID]*Actor, id ir.TypeID) *Actor {
	visited := make(map[ir.TypeID]bool)

	for id != ir.NoType && !visited[id] {
		visited[id] = true

		if a := byType[id]; a != nil {
			return a
		}

		def, ok := module.TypeByID(id)
		if !ok {
			return nil
		}

		switch def.Kind {
		case ir.KindReference, ir.KindOption, ir.KindArray, ir.KindSlice, ir.KindMap:
			id = def.Elem
		default:
			return nil
		}
	}

	return nil
}

// parsePriority parses a numeric method priority attribute, clamping to the
// u8 range the runtime scheduler uses.
func parsePriority(value string) uint8 {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}
