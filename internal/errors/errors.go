// Package errors provides typed rating errors.
// Every data gap is a hard failure with a remediation hint; nothing is defaulted.
package errors

import (
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeInput indicates a structurally invalid rating request
	TypeInput Type = "INPUT_ERROR"

	// TypeStateNotSupported indicates the state has no rate program at all
	TypeStateNotSupported Type = "STATE_NOT_SUPPORTED"

	// TypeNoApprovedRate indicates a supported state lacks an approved table
	TypeNoApprovedRate Type = "NO_APPROVED_RATE"

	// TypeTerritoryNotFound indicates no territory record matches the ZIP
	TypeTerritoryNotFound Type = "TERRITORY_NOT_FOUND"

	// TypeFactorLookup indicates an input fell outside all defined factor bands
	TypeFactorLookup Type = "FACTOR_LOOKUP"

	// TypeRuleViolation indicates error-severity business rule violations
	TypeRuleViolation Type = "RULE_VIOLATION"

	// TypeCalculationTimeout indicates the calculation was cancelled or timed out
	TypeCalculationTimeout Type = "CALCULATION_TIMEOUT"

	// TypeRepository indicates a reference-data repository failure
	TypeRepository Type = "REPOSITORY_ERROR"

	// TypeCache indicates a cache backend failure (recovered locally, never surfaced)
	TypeCache Type = "CACHE_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a rating error with context and a remediation hint
type Error struct {
	Type        Type                   `json:"type"`
	Message     string                 `json:"message"`
	Remediation string                 `json:"remediation,omitempty"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRemediation attaches a human-actionable remediation hint
func (e *Error) WithRemediation(hint string) *Error {
	e.Remediation = hint
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, t Type) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == t
	}
	return false
}

// StateNotSupported creates a state-not-supported error listing supported states
func StateNotSupported(state string, supported []string) *Error {
	return Newf(TypeStateNotSupported, "state %s has no configured rate program; supported states: %v", state, supported).
		WithRemediation(fmt.Sprintf("add state %s to the supported state list and file rate tables for it", state))
}

// NoApprovedRate creates an error enumerating the coverages available in the state
func NoApprovedRate(state, product, coverage string, available []string) *Error {
	return Newf(TypeNoApprovedRate, "no approved rate table for %s/%s in %s; available coverages: %v", product, coverage, state, available).
		WithRemediation(fmt.Sprintf("an admin must approve a rate table for coverage %s (product %s) in state %s", coverage, product, state))
}

// TerritoryNotFound creates a territory lookup error
func TerritoryNotFound(state, zip, product string) *Error {
	return Newf(TypeTerritoryNotFound, "no territory factor for ZIP %s in %s (product %s)", zip, state, product).
		WithRemediation(fmt.Sprintf("file a territory definition covering ZIP %s for state %s", zip, state))
}

// FactorLookup creates a factor band lookup error
func FactorLookup(table, input string) *Error {
	return Newf(TypeFactorLookup, "%s has no band covering %s", table, input).
		WithRemediation(fmt.Sprintf("extend the %s bands or declare an open-ended end band", table))
}

// Repository creates a repository error
func Repository(message string, cause error) *Error {
	return Wrap(TypeRepository, message, cause)
}

// Cache creates a cache error
func Cache(message string, cause error) *Error {
	return Wrap(TypeCache, message, cause)
}

// Config creates a configuration error
func Config(message string) *Error {
	return New(TypeConfig, message)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
