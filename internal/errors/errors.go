// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConnection         = errors.New("connection failed")
	ErrStartupFailure     = errors.New("session startup failed")
	ErrServiceOpenFailure = errors.New("service open failed")
	ErrInvalidQuery       = errors.New("invalid query")
	ErrSubmission         = errors.New("request submission failed")
	ErrReport             = errors.New("report request failed")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrMalformedEvent     = errors.New("malformed event")
	ErrTimeout            = errors.New("operation timed out")
	ErrCancelled          = errors.New("cancelled")
	ErrSessionStopped     = errors.New("session stopped")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDatabaseError      = errors.New("database error")
)

// SessionError represents a failure of a session-level operation such as
// dialing, starting, opening a service or submitting a request.
type SessionError struct {
	Op     string
	Reason string
	Err    error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session error [%s]: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("session error [%s]: %s", e.Op, e.Reason)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError.
func NewSessionError(op, reason string, err error) *SessionError {
	return &SessionError{
		Op:     op,
		Reason: reason,
		Err:    err,
	}
}

// ValidationError represents a query parameter that failed validation.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidQuery
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ReportError is the service-level error payload returned instead of a report.
type ReportError struct {
	Code    int
	Message string
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report error [%d]: %s", e.Code, e.Message)
}

func (e *ReportError) Unwrap() error {
	return ErrReport
}

// NewReportError creates a new ReportError.
func NewReportError(code int, message string) *ReportError {
	return &ReportError{
		Code:    code,
		Message: message,
	}
}

// RecordError represents a response payload that does not match the expected shape.
// Index is -1 when the failure is not tied to a single record.
type RecordError struct {
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	where := e.Field
	if e.Index >= 0 {
		where = fmt.Sprintf("records[%d].%s", e.Index, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed record [%s]: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed record [%s]: %s", where, e.Reason)
}

func (e *RecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError creates a new RecordError.
func NewRecordError(index int, field, reason string, err error) *RecordError {
	return &RecordError{
		Index:  index,
		Field:  field,
		Reason: reason,
		Err:    err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
