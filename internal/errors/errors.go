package errors

import (
	"fmt"
)

// LoreError is the structured error type for lorekeep.
// It provides rich context for error handling, logging, and user presentation.
type LoreError struct {
	// Code is the unique error code (e.g., "ERR_205_CORRUPT_INDEX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *LoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LoreError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with LoreError.
func (e *LoreError) Is(target error) bool {
	if t, ok := target.(*LoreError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *LoreError) WithDetail(key, value string) *LoreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *LoreError) WithSuggestion(suggestion string) *LoreError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LoreError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *LoreError {
	return &LoreError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a LoreError from an existing error.
// The error's message becomes the LoreError message.
func Wrap(code string, err error) *LoreError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *LoreError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ParseError creates a document parse error. Parse failures skip the
// document and the indexing run continues.
func ParseError(message string, cause error) *LoreError {
	return New(ErrCodeParseFailure, message, cause)
}

// EmbeddingError creates an embedding failure. The affected document keeps
// its prior indexed state and the run continues.
func EmbeddingError(message string, cause error) *LoreError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// BackendUnavailable creates a fatal backend error that aborts the run.
func BackendUnavailable(message string, cause error) *LoreError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// CorruptIndex creates a storage corruption finding. Remediation is a full
// rebuild; nothing attempts automatic repair.
func CorruptIndex(message string, cause error) *LoreError {
	return New(ErrCodeCorruptIndex, message, cause).
		WithSuggestion("Run 'lorekeep rebuild' to rebuild the index from scratch.")
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *LoreError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *LoreError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a LoreError with the Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if le, ok := err.(*LoreError); ok {
		return le.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if le, ok := err.(*LoreError); ok {
		return le.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a LoreError.
// Returns empty string if not a LoreError.
func GetCode(err error) string {
	if le, ok := err.(*LoreError); ok {
		return le.Code
	}
	return ""
}

// GetCategory extracts the category from a LoreError.
// Returns empty string if not a LoreError.
func GetCategory(err error) Category {
	if le, ok := err.(*LoreError); ok {
		return le.Category
	}
	return ""
}
