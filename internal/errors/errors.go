package errors

import (
	"errors"
	"fmt"
)

// GeoError is the structured error type used across GeoFlow CDS.
type GeoError struct {
	// Code is the stable error code (ERR_XXX_NAME).
	Code string
	// Message is a human-readable description.
	Message string
	// Category classifies the error domain.
	Category Category
	// Severity indicates how the caller should react.
	Severity Severity
	// Details carries optional structured context.
	Details map[string]any
	// Cause is the wrapped underlying error, if any.
	Cause error
	// Retryable reports whether retrying the operation may succeed.
	Retryable bool
	// Suggestion is an optional remediation hint for operators.
	Suggestion string
}

// Error implements the error interface.
func (e *GeoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *GeoError) Unwrap() error {
	return e.Cause
}

// Is matches two GeoErrors by code.
func (e *GeoError) Is(target error) bool {
	var ge *GeoError
	if errors.As(target, &ge) {
		return e.Code == ge.Code
	}
	return false
}

// WithDetail attaches a key/value pair to the error and returns it.
func (e *GeoError) WithDetail(key string, value any) *GeoError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets a remediation hint and returns the error.
func (e *GeoError) WithSuggestion(s string) *GeoError {
	e.Suggestion = s
	return e
}

// New creates a GeoError with the given code and message.
func New(code, message string) *GeoError {
	return &GeoError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a GeoError with a formatted message.
func Newf(code, format string, args ...any) *GeoError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a GeoError wrapping an underlying cause.
func Wrap(cause error, code, message string) *GeoError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// Code extracts the error code from err, or ERR_501_INTERNAL if err is not
// a GeoError.
func Code(err error) string {
	var ge *GeoError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	var ge *GeoError
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// StoreUnavailable builds the fatal error for an unreachable document store.
func StoreUnavailable(path string, cause error) *GeoError {
	return Wrap(cause, ErrCodeStoreUnavailable,
		fmt.Sprintf("document store unavailable at %s", path)).
		WithDetail("path", path).
		WithSuggestion("verify the store path exists and the ingest job has run")
}

// CollectionNotFound builds the fatal error for a missing corpus collection.
func CollectionNotFound(name string) *GeoError {
	return Newf(ErrCodeCollectionNotFound, "collection %q not found", name).
		WithDetail("collection", name).
		WithSuggestion("run the corpus ingest before starting the server")
}

// EmbeddingFailed wraps an embedding provider failure.
func EmbeddingFailed(cause error) *GeoError {
	return Wrap(cause, ErrCodeEmbedFailed, "embedding request failed")
}

// EmbeddingUnavailable wraps an unreachable embedding provider.
func EmbeddingUnavailable(provider string, cause error) *GeoError {
	return Wrap(cause, ErrCodeEmbedUnavailable,
		fmt.Sprintf("embedding provider %s unavailable", provider)).
		WithDetail("provider", provider)
}

// InvalidArgument builds a validation error for a bad caller input.
func InvalidArgument(message string) *GeoError {
	return New(ErrCodeInvalidArgument, message)
}

// QueryEmpty is the validation error for a blank search query.
func QueryEmpty() *GeoError {
	return New(ErrCodeQueryEmpty, "query must not be empty")
}

// AgentNotFound builds the lookup error for an unknown agent name.
func AgentNotFound(kind, name string, available []string) *GeoError {
	return Newf(ErrCodeAgentNotFound, "%s %q not found", kind, name).
		WithDetail("available", available)
}
