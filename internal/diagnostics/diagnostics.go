// Package diagnostics provides the finding model for the actor-concurrency
// verifier: severities, analysis categories, and an ordered manager that
// collects everything a pipeline run wants to surface. Analyses never print;
// they accumulate diagnostics here and terminal formatting happens at the
// edge (cmd tools).
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/menchan-Rub/SwiftLight-sub000/internal/position"
)

// DiagnosticLevel represents the severity level of a diagnostic
type DiagnosticLevel int

const (
	// DiagnosticError marks findings that make generated synchronization
	// unsound: structural failures, hierarchy cycles, mode inconsistencies,
	// illegal cross-actor calls.
	DiagnosticError DiagnosticLevel = iota
	// DiagnosticWarning marks advisories: the design is accepted but risky
	// or incomplete (missing handlers, deep hierarchies, deadlock risk).
	DiagnosticWarning
	// DiagnosticInfo marks low-prominence notices such as sub-threshold
	// deadlock candidates and retained escalation reasons.
	DiagnosticInfo
	// DiagnosticHint marks optional style-level suggestions.
	DiagnosticHint
)

func (dl DiagnosticLevel) String() string {
	switch dl {
	case DiagnosticError:
		return "error"
	case DiagnosticWarning:
		return "warning"
	case DiagnosticInfo:
		return "info"
	case DiagnosticHint:
		return "hint"
	default:
		return "unknown"
	}
}

// DiagnosticCategory represents the category of diagnostic
type DiagnosticCategory int

const (
	// Fatal analysis categories. Any finding in these aborts code
	// generation for the module.
	CategoryStructural DiagnosticCategory = iota
	CategoryHierarchyCycle
	CategoryConcurrencyConsistency
	CategoryIllegalCrossActorCall

	// Advisory categories.
	CategoryPartialActor
	CategoryMissingLifecycle
	CategoryMessageMutability
	CategoryNonSerializableMessage
	CategoryMissingHandler
	CategoryIsolatedActor
	CategoryDeepHierarchy
	CategoryDelegationCycle
	CategoryDeadlockRisk
	CategoryDeadlockCandidate
	CategoryModeEscalation
)

func (dc DiagnosticCategory) String() string {
	switch dc {
	case CategoryStructural:
		return "structural"
	case CategoryHierarchyCycle:
		return "hierarchy-cycle"
	case CategoryConcurrencyConsistency:
		return "concurrency-consistency"
	case CategoryIllegalCrossActorCall:
		return "illegal-cross-actor-call"
	case CategoryPartialActor:
		return "partial-actor"
	case CategoryMissingLifecycle:
		return "missing-lifecycle"
	case CategoryMessageMutability:
		return "message-mutability"
	case CategoryNonSerializableMessage:
		return "non-serializable-message"
	case CategoryMissingHandler:
		return "missing-handler"
	case CategoryIsolatedActor:
		return "isolated-actor"
	case CategoryDeepHierarchy:
		return "deep-hierarchy"
	case CategoryDelegationCycle:
		return "delegation-cycle"
	case CategoryDeadlockRisk:
		return "deadlock-risk"
	case CategoryDeadlockCandidate:
		return "deadlock-candidate"
	case CategoryModeEscalation:
		return "mode-escalation"
	default:
		return "unknown"
	}
}

// IsFatal reports whether findings of this category abort code generation.
func (dc DiagnosticCategory) IsFatal() bool {
	switch dc {
	case CategoryStructural, CategoryHierarchyCycle,
		CategoryConcurrencyConsistency, CategoryIllegalCrossActorCall:
		return true
	}
	return false
}

// Diagnostic represents one verifier finding.
type Diagnostic struct {
	Level    DiagnosticLevel
	Category DiagnosticCategory
	Message  string
	Code     string // Stable code like "ACT010"
	Span     position.Span

	// Offenders lists the identifiers (actor, method, message or field
	// names) the finding is about, most significant first.
	Offenders []string

	// Cycle carries the full ordered cycle for cycle-shaped problems, as
	// type names in traversal order. The closing edge back to the first
	// element is implied, not repeated.
	Cycle []string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Level.String())
	if d.Code != "" {
		b.WriteString("[" + d.Code + "]")
	}
	b.WriteString(": " + d.Message)
	if len(d.Cycle) > 0 {
		b.WriteString(" (cycle: " + strings.Join(d.Cycle, " -> ") + ")")
	}
	if d.Span.IsValid() {
		b.WriteString("\n  --> " + d.Span.String())
	}
	return b.String()
}

// Manager collects all diagnostics for one verifier run.
type Manager struct {
	suppressions map[string]bool
	diagnostics  []Diagnostic
	errorCount   int
	warningCount int
	maxErrors    int
	maxWarnings  int
}

// NewManager creates a new diagnostic manager
func NewManager() *Manager {
	return &Manager{
		diagnostics:  make([]Diagnostic, 0),
		maxErrors:    100,
		maxWarnings:  1000,
		suppressions: make(map[string]bool),
	}
}

// SetErrorLimit sets the maximum number of errors kept before further ones
// are dropped.
func (m *Manager) SetErrorLimit(limit int) { m.maxErrors = limit }

// SetWarningLimit sets the maximum number of warnings kept.
func (m *Manager) SetWarningLimit(limit int) { m.maxWarnings = limit }

// SuppressCategory suppresses all diagnostics of a specific category.
func (m *Manager) SuppressCategory(category DiagnosticCategory) {
	m.suppressions[category.String()] = true
}

// Add adds a new diagnostic to the manager.
func (m *Manager) Add(d Diagnostic) {
	if m.suppressions[d.Category.String()] {
		return
	}

	if d.Level == DiagnosticError && m.errorCount >= m.maxErrors {
		return
	}

	if d.Level == DiagnosticWarning && m.warningCount >= m.maxWarnings {
		return
	}

	switch d.Level {
	case DiagnosticError:
		m.errorCount++
	case DiagnosticWarning:
		m.warningCount++
	}

	m.diagnostics = append(m.diagnostics, d)
}

// Diagnostics returns all collected diagnostics in insertion order, which
// follows pipeline phase order and is deterministic for a given module.
func (m *Manager) Diagnostics() []Diagnostic { return m.diagnostics }

// ErrorCount returns the number of error-level diagnostics.
func (m *Manager) ErrorCount() int { return m.errorCount }

// WarningCount returns the number of warning-level diagnostics.
func (m *Manager) WarningCount() int { return m.warningCount }

// HasErrors returns true if any error-level diagnostic was collected.
func (m *Manager) HasErrors() bool { return m.errorCount > 0 }

// ByLevel returns diagnostics filtered by level, preserving order.
func (m *Manager) ByLevel(level DiagnosticLevel) []Diagnostic {
	var filtered []Diagnostic

	for _, d := range m.diagnostics {
		if d.Level == level {
			filtered = append(filtered, d)
		}
	}

	return filtered
}

// ByCategory returns diagnostics filtered by category, preserving order.
func (m *Manager) ByCategory(category DiagnosticCategory) []Diagnostic {
	var filtered []Diagnostic

	for _, d := range m.diagnostics {
		if d.Category == category {
			filtered = append(filtered, d)
		}
	}

	return filtered
}

// Fatal returns diagnostics whose category aborts code generation.
func (m *Manager) Fatal() []Diagnostic {
	var filtered []Diagnostic

	for _, d := range m.diagnostics {
		if d.Category.IsFatal() {
			filtered = append(filtered, d)
		}
	}

	return filtered
}

// Sort orders diagnostics by source location, severity, then message, for
// stable presentation independent of phase order.
func (m *Manager) Sort() {
	sort.SliceStable(m.diagnostics, func(i, j int) bool {
		a, b := m.diagnostics[i], m.diagnostics[j]

		if a.Span.Start.Filename != b.Span.Start.Filename {
			return a.Span.Start.Filename < b.Span.Start.Filename
		}

		if a.Span.Start.Line != b.Span.Start.Line {
			return a.Span.Start.Line < b.Span.Start.Line
		}

		if a.Level != b.Level {
			return a.Level < b.Level
		}

		return a.Message < b.Message
	})
}

// FormatSummary formats a short summary of all diagnostics.
func (m *Manager) FormatSummary() string {
	if len(m.diagnostics) == 0 {
		return "No diagnostics."
	}

	var result strings.Builder

	result.WriteString(fmt.Sprintf("Found %d error(s) and %d warning(s).",
		m.errorCount, m.warningCount))

	categoryCount := make(map[string]int)

	var categories []string

	for _, d := range m.diagnostics {
		key := d.Category.String()
		if categoryCount[key] == 0 {
			categories = append(categories, key)
		}

		categoryCount[key]++
	}

	sort.Strings(categories)

	result.WriteString("\n\nBreakdown by category:")

	for _, c := range categories {
		result.WriteString(fmt.Sprintf("\n  %s: %d", c, categoryCount[c]))
	}

	return result.String()
}
