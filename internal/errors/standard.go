// Package errors provides standardized error messaging for SwiftLight tooling.
package errors

import (
	"fmt"
	"runtime"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryInput    ErrorCategory = "INPUT"
	CategoryFixture  ErrorCategory = "FIXTURE"
	CategoryConfig   ErrorCategory = "CONFIG"
	CategoryInternal ErrorCategory = "INTERNAL"
	CategorySystem   ErrorCategory = "SYSTEM"
)

// StandardError provides a consistent error format
type StandardError struct {
	Context  map[string]interface{}
	Category ErrorCategory
	Code     string
	Message  string
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// Common error constructors
func NilModule(operation string) *StandardError {
	return NewStandardError(CategoryInput, "NIL_MODULE",
		fmt.Sprintf("Nil module passed to %s", operation),
		map[string]interface{}{"operation": operation})
}

func UnknownTypeRef(id uint32, context string) *StandardError {
	return NewStandardError(CategoryInternal, "UNKNOWN_TYPE_REF",
		fmt.Sprintf("Type id %d referenced in %s does not exist in the module", id, context),
		map[string]interface{}{"id": id, "context": context})
}

func UnknownFuncRef(id uint32, context string) *StandardError {
	return NewStandardError(CategoryInternal, "UNKNOWN_FUNC_REF",
		fmt.Sprintf("Function id %d referenced in %s does not exist in the module", id, context),
		map[string]interface{}{"id": id, "context": context})
}

func UnknownFieldRef(index int, context string) *StandardError {
	return NewStandardError(CategoryInternal, "UNKNOWN_FIELD_REF",
		fmt.Sprintf("Field index %d referenced in %s is outside the receiver layout", index, context),
		map[string]interface{}{"index": index, "context": context})
}

func UnsupportedFixtureVersion(version, constraint string) *StandardError {
	return NewStandardError(CategoryFixture, "UNSUPPORTED_FIXTURE_VERSION",
		fmt.Sprintf("Fixture format version %s does not satisfy %s", version, constraint),
		map[string]interface{}{"version": version, "constraint": constraint})
}

func MalformedFixture(path, detail string) *StandardError {
	return NewStandardError(CategoryFixture, "MALFORMED_FIXTURE",
		fmt.Sprintf("Fixture %s is malformed: %s", path, detail),
		map[string]interface{}{"path": path, "detail": detail})
}

func InvalidConfigValue(key string, value interface{}, reason string) *StandardError {
	return NewStandardError(CategoryConfig, "INVALID_CONFIG_VALUE",
		fmt.Sprintf("Invalid value %v for %s: %s", value, key, reason),
		map[string]interface{}{"key": key, "value": value, "reason": reason})
}

func AnalysisNotRun(operation string) *StandardError {
	return NewStandardError(CategoryInput, "ANALYSIS_NOT_RUN",
		fmt.Sprintf("%s requires a completed verification run", operation),
		map[string]interface{}{"operation": operation})
}
