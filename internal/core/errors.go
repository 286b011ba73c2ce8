package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions. Capability
// adapters populate the category when they catch underlying errors, so
// recoverability is a data-driven match rather than message sniffing.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatCapability ErrorCategory = "capability" // External capability unavailable
	ErrCatStorage    ErrorCategory = "storage"    // Store rejected or failed the operation
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatNetwork    ErrorCategory = "network"    // Network connectivity
	ErrCatRateLimit  ErrorCategory = "rate_limit" // API rate limited
	ErrCatAuth       ErrorCategory = "auth"       // Authentication failure
	ErrCatState      ErrorCategory = "state"      // State conflict or invariant violation
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
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

// Is checks if this error matches a target.
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

// ErrValidation creates a validation error. Inbound protocol validation is
// reported straight to the client; validation failures inside a workflow
// step count as recoverable.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrCapability creates a capability-unavailable error. These are never
// retried; the caller degrades to its deterministic fallback instead.
func ErrCapability(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatCapability,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrStorage creates a storage error. Storage policy rejections are
// treated as recoverable.
func ErrStorage(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatStorage,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrNetwork creates a network error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "NETWORK",
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrAuth creates an authentication error.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatAuth,
		Code:      "AUTH_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrOutOfRounds signals the clarification round ceiling was hit. Never
// user-visible: the state machine catches it and forces generation.
func ErrOutOfRounds(round, maxRounds int) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      CodeOutOfRounds,
		Message:   fmt.Sprintf("clarification round %d exceeds ceiling %d", round, maxRounds),
		Retryable: false,
		Details: map[string]interface{}{
			"round":      round,
			"max_rounds": maxRounds,
		},
	}
}

// IsRetryable checks if an error is retryable. Unknown (non-domain) errors
// default to retryable once wrapped; a raw error reaching this predicate is
// classified internal and not retried.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeWorkflowBusy       = "WORKFLOW_BUSY"
	CodeWorkflowNotFound   = "WORKFLOW_NOT_FOUND"
	CodeInvalidState       = "INVALID_STATE"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeOutOfRounds        = "OUT_OF_ROUNDS"
	CodeSessionError       = "SESSION_ERROR"
	CodeAgentFailed        = "AGENT_FAILED"
	CodeAgentTimeout       = "AGENT_TIMEOUT"
	CodeMandatoryAgent     = "MANDATORY_AGENT_FAILED"
	CodeLLMUnavailable     = "LLM_UNAVAILABLE"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeParseFailed        = "PARSE_FAILED"
	CodeGenerationFailed   = "GENERATION_FAILED"
	CodeRetriesExhausted   = "RETRIES_EXHAUSTED"

	// Validation error codes
	CodeEmptyInput       = "EMPTY_INPUT"
	CodeInputTooLong     = "INPUT_TOO_LONG"
	CodeUnknownMessage   = "UNKNOWN_MESSAGE_TYPE"
	CodeMalformedMessage = "MALFORMED_MESSAGE"
	CodeUnknownRound     = "UNKNOWN_ROUND"
	CodeInvalidConfig    = "INVALID_CONFIG"
)

// MaxInputLength is the maximum allowed user input length.
const MaxInputLength = 5000
