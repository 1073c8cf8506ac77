package core

import (
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation  ErrorCategory = "validation"  // Invalid input or configuration
	ErrCatProvider    ErrorCategory = "provider"    // LLM provider unavailable or misbehaving
	ErrCatPricing     ErrorCategory = "pricing"     // Model missing from the pricing table
	ErrCatSection     ErrorCategory = "section"     // A section subgraph failed fatally
	ErrCatAggregation ErrorCategory = "aggregation" // Aggregator invariant violated
	ErrCatState       ErrorCategory = "state"       // Run store failure
	ErrCatInternal    ErrorCategory = "internal"    // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on category and code so callers can compare against sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrProviderUnavailable signals that no LLM provider is reachable. It is
// recovered locally by the stub fallback and never surfaces as a run failure.
func ErrProviderUnavailable(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatProvider,
		Code:      "provider_unavailable",
		Message:   message,
		Retryable: true,
	}
}

// ErrUnknownModel signals that a model has no pricing entry. Callers record
// the call at zero cost instead of aborting the run.
func ErrUnknownModel(model string) *DomainError {
	return &DomainError{
		Category:  ErrCatPricing,
		Code:      "unknown_model",
		Message:   fmt.Sprintf("model %q is not in the pricing table", model),
		Retryable: false,
	}
}

// ErrSectionFailure marks a section subgraph as fatally failed, typically
// because a collaborator returned a malformed response.
func ErrSectionFailure(section, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatSection,
		Code:      "section_step_failure",
		Message:   message,
		Retryable: false,
		Details:   map[string]interface{}{"section": section},
	}
}

// ErrAggregationPrecondition signals that the aggregator observed a section
// that had not terminated. This is a programming error: the join barrier must
// make it unreachable.
func ErrAggregationPrecondition(section string) *DomainError {
	return &DomainError{
		Category:  ErrCatAggregation,
		Code:      "aggregation_precondition",
		Message:   fmt.Sprintf("section %q has not terminated", section),
		Retryable: false,
	}
}

// ErrReportOverwrite signals an attempt to replace an already-populated final
// report with different content.
func ErrReportOverwrite() *DomainError {
	return &DomainError{
		Category:  ErrCatAggregation,
		Code:      "report_overwrite",
		Message:   "final report is write-once",
		Retryable: false,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrState creates a run store error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrInternal creates an internal error.
func ErrInternal(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatInternal,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}
