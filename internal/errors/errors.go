package errors

import (
	"fmt"
)

// LawError is the structured error type for law-search.
// It carries enough context for logging and user presentation without the
// caller needing to inspect wrapped errors.
type LawError struct {
	// Code is the unique error code (e.g., "ERR_301_XML_MALFORMED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Acquisition, Structure, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *LawError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LawError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is with sentinel LawErrors.
func (e *LawError) Is(target error) bool {
	if t, ok := target.(*LawError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *LawError) WithDetail(key, value string) *LawError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new LawError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *LawError {
	return &LawError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a LawError from an existing error.
// Returns nil when err is nil.
func Wrap(code string, err error) *LawError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// AcquisitionError creates a source-acquisition error.
func AcquisitionError(message string, cause error) *LawError {
	return New(ErrCodeDownloadFailed, message, cause)
}

// StructuralError creates a document-shape error.
func StructuralError(message string, cause error) *LawError {
	return New(ErrCodeXMLStructure, message, cause)
}

// EmbeddingError creates an embedding-generation error.
func EmbeddingError(message string, cause error) *LawError {
	return New(ErrCodeEmbedFailed, message, cause)
}

// StorageError creates a storage-layer error.
func StorageError(message string, cause error) *LawError {
	return New(ErrCodeStorageQuery, message, cause)
}

// IsRetryable reports whether an error is a retryable LawError.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if le, ok := err.(*LawError); ok {
		return le.Retryable
	}
	return false
}

// GetCode extracts the error code from a LawError.
// Returns empty string for other error types.
func GetCode(err error) string {
	if le, ok := err.(*LawError); ok {
		return le.Code
	}
	return ""
}

// GetCategory extracts the category from a LawError.
func GetCategory(err error) Category {
	if le, ok := err.(*LawError); ok {
		return le.Category
	}
	return ""
}
