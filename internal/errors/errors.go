package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// Validation errors - invalid input data
	ErrorTypeValidation
	// Internal errors - unexpected internal state
	ErrorTypeInternal
	// ConnectionFailure - a session could not be established or refreshed
	ErrorTypeConnectionFailure
	// NotConnected - no usable session and lazy connect failed
	ErrorTypeNotConnected
	// VertexNotFound - a vertex uid did not resolve
	ErrorTypeVertexNotFound
	// EdgeNotFound - an edge uid did not resolve
	ErrorTypeEdgeNotFound
	// QueryLanguageNotSupported - the query language tag does not match the backend
	ErrorTypeQueryLanguageNotSupported
	// QueryExecution - the backend rejected or failed a query
	ErrorTypeQueryExecution
	// UnsupportedOperation - the backend cannot perform the requested mutation
	ErrorTypeUnsupportedOperation
	// PartialExtraction - some result elements were replaced by placeholders
	ErrorTypePartialExtraction
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Sentinels for use with the standard library errors.Is.
var (
	ErrConnectionFailure         = &Error{Type: ErrorTypeConnectionFailure}
	ErrNotConnected              = &Error{Type: ErrorTypeNotConnected}
	ErrVertexNotFound            = &Error{Type: ErrorTypeVertexNotFound}
	ErrEdgeNotFound              = &Error{Type: ErrorTypeEdgeNotFound}
	ErrQueryLanguageNotSupported = &Error{Type: ErrorTypeQueryLanguageNotSupported}
	ErrQueryExecution            = &Error{Type: ErrorTypeQueryExecution}
	ErrUnsupportedOperation      = &Error{Type: ErrorTypeUnsupportedOperation}
	ErrPartialExtraction         = &Error{Type: ErrorTypePartialExtraction}
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
	Timestamp  string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		e.Type.String(),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Context:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, e.Context[k]))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

// String returns the upper-case kind name
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeInternal:
		return "INTERNAL"
	case ErrorTypeConnectionFailure:
		return "CONNECTION_FAILURE"
	case ErrorTypeNotConnected:
		return "NOT_CONNECTED"
	case ErrorTypeVertexNotFound:
		return "VERTEX_NOT_FOUND"
	case ErrorTypeEdgeNotFound:
		return "EDGE_NOT_FOUND"
	case ErrorTypeQueryLanguageNotSupported:
		return "QUERY_LANGUAGE_NOT_SUPPORTED"
	case ErrorTypeQueryExecution:
		return "QUERY_EXECUTION"
	case ErrorTypeUnsupportedOperation:
		return "UNSUPPORTED_OPERATION"
	case ErrorTypePartialExtraction:
		return "PARTIAL_EXTRACTION"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

func newError(errType ErrorType, severity Severity, message string, cause error) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      cause,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(3),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return newError(errType, severity, message, nil)
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return newError(errType, severity, message, err)
}

// Convenience constructors for common error types

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return newError(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...), nil)
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return newError(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...), nil)
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return newError(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...), nil)
}

// ConnectionFailure wraps a failure to open or refresh a backend session.
// A nil cause is allowed: configuration problems are reported the same way.
func ConnectionFailure(cause error, format string, args ...interface{}) *Error {
	return newError(ErrorTypeConnectionFailure, SeverityHigh, fmt.Sprintf(format, args...), cause)
}

// NotConnected wraps the failure of a lazy connect
func NotConnected(cause error, format string, args ...interface{}) *Error {
	return newError(ErrorTypeNotConnected, SeverityHigh, fmt.Sprintf(format, args...), cause)
}

// VertexNotFound reports an unresolved vertex uid
func VertexNotFound(uid string) *Error {
	return newError(ErrorTypeVertexNotFound, SeverityMedium, fmt.Sprintf("vertex %q not found", uid), nil).
		WithContext("uid", uid)
}

// EdgeNotFound reports an unresolved edge uid
func EdgeNotFound(uid string) *Error {
	return newError(ErrorTypeEdgeNotFound, SeverityMedium, fmt.Sprintf("edge %q not found", uid), nil).
		WithContext("uid", uid)
}

// QueryLanguageNotSupported reports a language tag the backend does not speak
func QueryLanguageNotSupported(backend, language string) *Error {
	return newError(ErrorTypeQueryLanguageNotSupported, SeverityMedium,
		fmt.Sprintf("%s does not support query language %q", backend, language), nil).
		WithContext("backend", backend).
		WithContext("language", language)
}

// QueryExecution wraps a backend rejection or failure of a statement
func QueryExecution(cause error, format string, args ...interface{}) *Error {
	return newError(ErrorTypeQueryExecution, SeverityMedium, fmt.Sprintf(format, args...), cause)
}

// Unsupported reports a schema mutation the backend cannot perform
func Unsupported(format string, args ...interface{}) *Error {
	return newError(ErrorTypeUnsupportedOperation, SeverityMedium, fmt.Sprintf(format, args...), nil)
}

// PartialExtraction reports result elements replaced by placeholders
func PartialExtraction(count int, warnings []string) *Error {
	return newError(ErrorTypePartialExtraction, SeverityLow,
		fmt.Sprintf("%d result element(s) could not be converted", count), nil).
		WithContext("warnings", warnings)
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e.Severity
	}

	return SeverityMedium
}

// GetType returns the type of the outermost *Error in the chain
func GetType(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// AsError returns the outermost *Error in the chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType reports whether any *Error in the chain has the given type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, &Error{Type: errType})
}
