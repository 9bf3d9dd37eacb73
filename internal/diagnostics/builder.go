// Package diagnostics - Diagnostic builder for easy creation of verifier findings.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/position"
)

// DiagnosticBuilder provides a fluent interface for building diagnostics.
type DiagnosticBuilder struct {
	diagnostic Diagnostic
}

// NewDiagnosticBuilder creates a new diagnostic builder.
func NewDiagnosticBuilder() *DiagnosticBuilder {
	return &DiagnosticBuilder{
		diagnostic: Diagnostic{
			Offenders: make([]string, 0),
		},
	}
}

// Error creates an error-level diagnostic.
func (db *DiagnosticBuilder) Error() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticError

	return db
}

// Warning creates a warning-level diagnostic.
func (db *DiagnosticBuilder) Warning() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticWarning

	return db
}

// Info creates an info-level diagnostic.
func (db *DiagnosticBuilder) Info() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticInfo

	return db
}

// Hint creates a hint-level diagnostic.
func (db *DiagnosticBuilder) Hint() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticHint

	return db
}

// WithCode sets the stable diagnostic code.
func (db *DiagnosticBuilder) WithCode(code string) *DiagnosticBuilder {
	db.diagnostic.Code = code

	return db
}

// WithCategory sets the diagnostic category.
func (db *DiagnosticBuilder) WithCategory(category DiagnosticCategory) *DiagnosticBuilder {
	db.diagnostic.Category = category

	return db
}

// WithMessage sets the main diagnostic message.
func (db *DiagnosticBuilder) WithMessage(message string) *DiagnosticBuilder {
	db.diagnostic.Message = message

	return db
}

// WithMessagef sets the main diagnostic message with formatting.
func (db *DiagnosticBuilder) WithMessagef(format string, args ...interface{}) *DiagnosticBuilder {
	db.diagnostic.Message = fmt.Sprintf(format, args...)

	return db
}

// WithSpan sets the source location span.
func (db *DiagnosticBuilder) WithSpan(span position.Span) *DiagnosticBuilder {
	db.diagnostic.Span = span

	return db
}

// WithOffenders records the identifiers the finding is about.
func (db *DiagnosticBuilder) WithOffenders(names ...string) *DiagnosticBuilder {
	db.diagnostic.Offenders = append(db.diagnostic.Offenders, names...)

	return db
}

// WithCycle records the ordered cycle for cycle-shaped findings.
func (db *DiagnosticBuilder) WithCycle(cycle []string) *DiagnosticBuilder {
	db.diagnostic.Cycle = cycle

	return db
}

// Build returns the constructed diagnostic.
func (db *DiagnosticBuilder) Build() Diagnostic {
	return db.diagnostic
}

// Predefined diagnostic builders for the verifier's findings.

// StructuralError creates a diagnostic for a malformed module element that
// makes further analysis of the element meaningless.
func StructuralError(detail string, span position.Span, offenders ...string) Diagnostic {
	return NewDiagnosticBuilder().
		Error().
		WithCode("ACT001").
		WithCategory(CategoryStructural).
		WithMessage(detail).
		WithSpan(span).
		WithOffenders(offenders...).
		Build()
}

// HierarchyCycleError creates a diagnostic for a cycle in one of the actor
// relationship graphs. The kind names the graph, e.g. "supervision".
func HierarchyCycleError(kind string, cycle []string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Error().
		WithCode("ACT002").
		WithCategory(CategoryHierarchyCycle).
		WithMessagef("%s cycle detected: %s", kind, strings.Join(cycle, " -> ")).
		WithSpan(span).
		WithOffenders(cycle...).
		WithCycle(cycle).
		Build()
}

// ReadOnlyWriteError creates a diagnostic for a method that declares itself
// read-only but writes actor state.
func ReadOnlyWriteError(actor, method, field string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Error().
		WithCode("ACT003").
		WithCategory(CategoryConcurrencyConsistency).
		WithMessagef("method '%s.%s' is declared read-only but writes field '%s'", actor, method, field).
		WithSpan(span).
		WithOffenders(actor, method, field).
		Build()
}

// ModeConflictError creates a diagnostic for a method whose declared
// concurrency mode contradicts its observed behavior.
func ModeConflictError(actor, method, declared, required, reason string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Error().
		WithCode("ACT004").
		WithCategory(CategoryConcurrencyConsistency).
		WithMessagef("method '%s.%s' is declared '%s' but requires '%s': %s", actor, method, declared, required, reason).
		WithSpan(span).
		WithOffenders(actor, method).
		Build()
}

// IllegalCrossActorCallError creates a diagnostic for a direct synchronous
// call from one actor's method into another actor's non-public surface.
func IllegalCrossActorCallError(caller, callee, calleeActor string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Error().
		WithCode("ACT005").
		WithCategory(CategoryIllegalCrossActorCall).
		WithMessagef("illegal direct call from '%s' to '%s' on actor '%s'; use message passing (send or ask) instead", caller, callee, calleeActor).
		WithSpan(span).
		WithOffenders(caller, callee, calleeActor).
		Build()
}

// PartialActorWarning creates a diagnostic for a type that looks like an
// incomplete actor, e.g. it has handlers but no actor attribute.
func PartialActorWarning(typeName, detail string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT010").
		WithCategory(CategoryPartialActor).
		WithMessagef("type '%s' looks like an actor but %s", typeName, detail).
		WithSpan(span).
		WithOffenders(typeName).
		Build()
}

// MissingLifecycleWarning creates a diagnostic for an actor that declares a
// restart strategy but lacks the hooks that strategy relies on.
func MissingLifecycleWarning(actor, event string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT011").
		WithCategory(CategoryMissingLifecycle).
		WithMessagef("actor '%s' has no '%s' hook for its supervision strategy", actor, event).
		WithSpan(span).
		WithOffenders(actor, event).
		Build()
}

// MessageMutabilityWarning creates a diagnostic for a message type with
// mutable fields.
func MessageMutabilityWarning(message, field string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT012").
		WithCategory(CategoryMessageMutability).
		WithMessagef("message type '%s' has mutable field '%s'; messages should be immutable", message, field).
		WithSpan(span).
		WithOffenders(message, field).
		Build()
}

// NonSerializableMessageWarning creates a diagnostic for a message type that
// cannot cross a process boundary.
func NonSerializableMessageWarning(message, reason string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT013").
		WithCategory(CategoryNonSerializableMessage).
		WithMessagef("message type '%s' is not serializable: %s", message, reason).
		WithSpan(span).
		WithOffenders(message).
		Build()
}

// MissingHandlerWarning creates a diagnostic for a message sent to an actor
// that declares no handler for it.
func MissingHandlerWarning(actor, message string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT014").
		WithCategory(CategoryMissingHandler).
		WithMessagef("actor '%s' receives message '%s' but declares no handler for it", actor, message).
		WithSpan(span).
		WithOffenders(actor, message).
		Build()
}

// IsolatedActorWarning creates a diagnostic for an actor that is never
// created, supervised or messaged.
func IsolatedActorWarning(actor string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT015").
		WithCategory(CategoryIsolatedActor).
		WithMessagef("actor '%s' is never spawned, supervised or sent a message", actor).
		WithSpan(span).
		WithOffenders(actor).
		Build()
}

// DeepHierarchyWarning creates a diagnostic for a relationship chain deeper
// than the configured limit. The path runs root first.
func DeepHierarchyWarning(kind string, path []string, limit int, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT016").
		WithCategory(CategoryDeepHierarchy).
		WithMessagef("%s chain rooted at '%s' is %d levels deep (limit %d): %s",
			kind, path[0], len(path), limit, strings.Join(path, " -> ")).
		WithSpan(span).
		WithOffenders(path...).
		Build()
}

// DelegationCycleWarning creates a diagnostic for a cycle in the delegation
// or forwarding graph. Unlike supervision and inheritance cycles these do
// not corrupt the hierarchy, they only risk livelock.
func DelegationCycleWarning(kind string, cycle []string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT017").
		WithCategory(CategoryDelegationCycle).
		WithMessagef("%s cycle detected: %s", kind, strings.Join(cycle, " -> ")).
		WithSpan(span).
		WithOffenders(cycle...).
		WithCycle(cycle).
		Build()
}

// DeadlockRiskWarning creates a diagnostic for a communication cycle whose
// severity is above the reporting cutoff.
func DeadlockRiskWarning(cycle []string, severity float64, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Warning().
		WithCode("ACT018").
		WithCategory(CategoryDeadlockRisk).
		WithMessagef("potential deadlock (severity %.2f): %s", severity, strings.Join(cycle, " -> ")).
		WithSpan(span).
		WithOffenders(cycle...).
		WithCycle(cycle).
		Build()
}

// DeadlockCandidateInfo creates a diagnostic for a communication cycle below
// the reporting cutoff. Kept at info level so tooling can still surface it.
func DeadlockCandidateInfo(cycle []string, severity float64, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Info().
		WithCode("ACT019").
		WithCategory(CategoryDeadlockCandidate).
		WithMessagef("communication cycle below deadlock cutoff (severity %.2f): %s", severity, strings.Join(cycle, " -> ")).
		WithSpan(span).
		WithOffenders(cycle...).
		WithCycle(cycle).
		Build()
}

// ModeEscalationInfo creates a diagnostic recording that inference raised a
// method's concurrency mode above its declared or default mode.
func ModeEscalationInfo(actor, method, from, to, reason string, span position.Span) Diagnostic {
	return NewDiagnosticBuilder().
		Info().
		WithCode("ACT020").
		WithCategory(CategoryModeEscalation).
		WithMessagef("method '%s.%s' escalated from '%s' to '%s': %s", actor, method, from, to, reason).
		WithSpan(span).
		WithOffenders(actor, method).
		Build()
}
