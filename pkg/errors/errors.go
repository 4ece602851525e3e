// Package errors defines the structured error type shared by all
// reconciliation components.
//
// Every error carries a category, a machine-readable code, and optional
// context describing the record or file that triggered it. Categories map to
// process exit codes so the CLI can signal the kind of failure to callers.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the subsystem that produced them
type ErrorCategory string

const (
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryBaseline       ErrorCategory = "baseline"
	CategoryRecord         ErrorCategory = "record"
	CategoryParse          ErrorCategory = "parse"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryReport         ErrorCategory = "report"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category
type ErrorCode string

const (
	// Configuration errors
	CodeInvalidTolerance ErrorCode = "invalid_tolerance"
	CodeInvalidWindow    ErrorCode = "invalid_window"
	CodeInvalidOption    ErrorCode = "invalid_option"
	CodeMissingOption    ErrorCode = "missing_option"

	// Baseline errors
	CodeBaselineNotFound  ErrorCode = "baseline_not_found"
	CodeBaselineCorrupted ErrorCode = "baseline_corrupted"
	CodeSheetUnknown      ErrorCode = "sheet_unknown"

	// Record errors
	CodeMalformedRecord ErrorCode = "malformed_record"
	CodeInvalidAmount   ErrorCode = "invalid_amount"
	CodeInvalidTime     ErrorCode = "invalid_time"
	CodeStatusConflict  ErrorCode = "status_conflict"

	// Parse errors
	CodeFileNotFound  ErrorCode = "file_not_found"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidFormat ErrorCode = "invalid_format"

	// Reconciliation errors
	CodeStageFailed ErrorCode = "stage_failed"
	CodeAborted     ErrorCode = "aborted"

	// Report errors
	CodeReportWrite ErrorCode = "report_write"
	CodeReportStore ErrorCode = "report_store"

	// Internal errors
	CodeUnexpected ErrorCode = "unexpected_error"
)

// Context carries additional key/value detail about an error
type Context map[string]interface{}

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns the process exit code for the error category
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryConfiguration:
		return 2
	case CategoryBaseline, CategoryParse:
		return 3
	case CategoryRecord:
		return 4
	case CategoryReconciliation, CategoryReport, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// stackTracer is implemented by github.com/pkg/errors values
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new ReconcilerError with a captured stack trace
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context.
// Returns nil when err is nil so call sites can wrap unconditionally.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// ConfigurationError creates an error for an invalid option value. These are
// fatal and reported before any pipeline stage runs.
func ConfigurationError(code ErrorCode, option string, value interface{}) *ReconcilerError {
	return New(CategoryConfiguration, code,
		fmt.Sprintf("invalid configuration option %q: %v", option, value)).
		WithSuggestion("check the flag or config file value").
		WithContext("option", option).
		WithContext("value", value)
}

// MalformedRecordError creates a fatal error for a record that reached the
// engine with an unusable amount or timestamp. The parser contract should
// prevent this, so the whole run aborts.
func MalformedRecordError(code ErrorCode, origin, detail string) *ReconcilerError {
	return New(CategoryRecord, code,
		fmt.Sprintf("malformed record from %s: %s", origin, detail)).
		WithSuggestion("verify the channel export and parser configuration").
		WithContext("origin", origin)
}

// BaselineError creates an error for baseline workbook problems
func BaselineError(code ErrorCode, path string, err error) *ReconcilerError {
	var message, suggestion string
	switch code {
	case CodeBaselineNotFound:
		message = fmt.Sprintf("baseline workbook not found: %s", path)
		suggestion = "check the baseline directory path or pass --baseline"
	case CodeBaselineCorrupted:
		message = fmt.Sprintf("baseline sheet unreadable: %s", path)
		suggestion = "re-export the baseline workbook and retry"
	default:
		message = fmt.Sprintf("baseline error: %s", path)
		suggestion = "check the baseline workbook"
	}

	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategoryBaseline, code, message)
	} else {
		result = New(CategoryBaseline, code, message)
	}
	return result.WithSuggestion(suggestion).WithContext("path", path)
}

// ParseError creates an error for a channel export that cannot be read
func ParseError(code ErrorCode, file string, line int, detail string, err error) *ReconcilerError {
	message := fmt.Sprintf("parse error in %s at line %d: %s", file, line, detail)
	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}
	return result.
		WithSuggestion("check the export format against the channel parser configuration").
		WithContext("file", file).
		WithContext("line", line)
}

// ReportError creates an error for a report that could not be written
func ReportError(code ErrorCode, destination string, err error) *ReconcilerError {
	return Wrap(err, CategoryReport, code,
		fmt.Sprintf("failed to write report to %s", destination)).
		WithContext("destination", destination)
}

// IsCategory reports whether err is a ReconcilerError of the given category
func IsCategory(err error, category ErrorCategory) bool {
	var re *ReconcilerError
	if errors.As(err, &re) {
		return re.Category == category
	}
	return false
}

// GetExitCode extracts an exit code from any error
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	var re *ReconcilerError
	if errors.As(err, &re) {
		return re.GetExitCode()
	}
	return 1
}
