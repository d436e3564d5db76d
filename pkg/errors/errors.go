// Package errors defines the error taxonomy for the shortage pipeline.
//
// Every error the pipeline surfaces belongs to one of a small set of
// categories (configuration, ingestion, validation, computation, internal).
// Errors carry a machine-readable code, a human-readable message, an optional
// suggestion for fixing the problem, and a context map with the values that
// triggered the failure. Stack traces are captured via github.com/pkg/errors.
//
// Example usage:
//
//	err := errors.IngestionError(errors.CodeNoInputFiles, inputDir, nil)
//	return err.WithSuggestion("Place at least one CSV export in the input directory")
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of pipeline errors
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryIngestion     ErrorCategory = "ingestion"
	CategoryValidation    ErrorCategory = "validation"
	CategoryComputation   ErrorCategory = "computation"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Configuration errors
	CodeMissingConfig ErrorCode = "missing_config"
	CodeInvalidConfig ErrorCode = "invalid_config"

	// Ingestion errors
	CodeInputDirMissing ErrorCode = "input_dir_missing"
	CodeNoInputFiles    ErrorCode = "no_input_files"
	CodeMissingColumn   ErrorCode = "missing_column"
	CodeInvalidField    ErrorCode = "invalid_field"
	CodeFileUnreadable  ErrorCode = "file_unreadable"

	// Validation errors
	CodeEmptyDataset     ErrorCode = "empty_dataset"
	CodeSchemaViolation  ErrorCode = "schema_violation"
	CodeCurrencyMismatch ErrorCode = "currency_mismatch"
	CodeInvalidDate      ErrorCode = "invalid_date"
	CodeFutureDate       ErrorCode = "future_date"

	// Computation errors
	CodeContractViolation ErrorCode = "contract_violation"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeExportFailed    ErrorCode = "export_failed"
)

// PipelineError is the base error type for all application errors
type PipelineError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate process exit code for the error
func (e *PipelineError) GetExitCode() int {
	switch e.Category {
	case CategoryIngestion:
		return 2
	case CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryComputation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *PipelineError) WithSuggestion(suggestion string) *PipelineError {
	e.Suggestion = suggestion
	return e
}

// New creates a new PipelineError
func New(category ErrorCategory, code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with PipelineError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *PipelineError {
	if err == nil {
		return nil
	}

	return &PipelineError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *PipelineError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting in the settings or rules file"
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration file for valid values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// IngestionError creates an ingestion-related error
func IngestionError(code ErrorCode, source string, err error) *PipelineError {
	var message string
	var suggestion string

	switch code {
	case CodeInputDirMissing:
		message = fmt.Sprintf("raw input directory not found: %s", source)
		suggestion = "check that the configured input directory exists"
	case CodeNoInputFiles:
		message = fmt.Sprintf("no CSV files found in %s", source)
		suggestion = "place at least one invoice CSV export in the input directory"
	case CodeFileUnreadable:
		message = fmt.Sprintf("cannot read input file: %s", source)
		suggestion = "check file permissions and encoding"
	default:
		message = fmt.Sprintf("ingestion error for %s", source)
		suggestion = "check the input files and try again"
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryIngestion, code, message)
	} else {
		result = New(CategoryIngestion, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("source", source)
}

// ParseError creates an ingestion error pinned to a file location
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *PipelineError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidField:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryIngestion, code, message)
	} else {
		result = New(CategoryIngestion, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

// ValidationError creates a quality-gate validation error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *PipelineError {
	var message string
	var suggestion string

	switch code {
	case CodeEmptyDataset:
		message = "quality check failed: record set is empty"
		suggestion = "verify the input files contain rows in the expected currency"
	case CodeSchemaViolation:
		message = fmt.Sprintf("schema violation in field '%s': %v", field, value)
		suggestion = "fix the offending records in the source data"
	case CodeCurrencyMismatch:
		message = fmt.Sprintf("non-compliant currency detected in field '%s': %v", field, value)
		suggestion = "remove or convert records that are not in the expected currency"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date values found in field '%s'", field)
		suggestion = "fix unparseable dates in the source data"
	case CodeFutureDate:
		message = fmt.Sprintf("future-dated values found in field '%s'", field)
		suggestion = "check the date convention (day-first vs month-first) in the settings"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ComputationError creates an error for upstream contract violations detected
// during derivation. These indicate a defect, not bad user data.
func ComputationError(operation string, err error) *PipelineError {
	message := fmt.Sprintf("computation contract violated during %s", operation)

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryComputation, CodeContractViolation, message)
	} else {
		result = New(CategoryComputation, CodeContractViolation, message)
	}

	return result.
		WithSuggestion("this is likely a bug - report it with the error details").
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *PipelineError {
	var message string
	var suggestion string

	switch code {
	case CodeExportFailed:
		message = fmt.Sprintf("failed to export %s", operation)
		suggestion = "check the output directory permissions and free disk space"
	default:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	var result *PipelineError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// IsPipelineError checks if an error is a PipelineError
func IsPipelineError(err error) bool {
	_, ok := AsPipelineError(err)
	return ok
}

// AsPipelineError extracts a PipelineError from an error chain
func AsPipelineError(err error) (*PipelineError, bool) {
	for err != nil {
		if pErr, ok := err.(*PipelineError); ok {
			return pErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}

// WrapIfNeeded wraps an error as a PipelineError unless it already is one
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *PipelineError {
	if err == nil {
		return nil
	}
	if pErr, ok := AsPipelineError(err); ok {
		return pErr
	}
	return Wrap(err, category, code, message)
}

// ExitCodeFor returns the exit code for any error, defaulting to 1
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if pErr, ok := AsPipelineError(err); ok {
		return pErr.GetExitCode()
	}
	return 1
}

// FormatCategory returns a short human-readable label for a category
func FormatCategory(category ErrorCategory) string {
	return strings.ToUpper(string(category))
}
