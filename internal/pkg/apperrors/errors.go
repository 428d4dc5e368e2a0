package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")

	// Storage errors
	ErrStorage = errors.New("storage failure")
)

// Student errors
var (
	ErrStudentNotFound = errors.New("student not found")
)

// Attendance errors
var (
	ErrEntryNotFound    = errors.New("attendance entry not found")
	ErrInvalidStatus    = errors.New("invalid attendance status")
	ErrInvalidSource    = errors.New("invalid attendance source")
	ErrInvalidDayOption = errors.New("invalid day option")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrPeriodNotFound   = errors.New("period not found")
)

// Leave errors
var (
	ErrLeaveTypeNotFound      = errors.New("leave type not found")
	ErrInvalidLeaveType       = errors.New("invalid leave type")
	ErrLeaveRequestNotFound   = errors.New("leave request not found")
	ErrLeaveRequestNotPending = errors.New("leave request is not pending")
)

// NewStorageError wraps a persistence failure so callers can match
// on ErrStorage regardless of the underlying driver error.
func NewStorageError(op string, err error) error {
	return &CustomError{
		Err:     ErrStorage,
		Message: op + ": " + err.Error(),
		cause:   err,
	}
}

// NewValidationError creates a validation error with a message
func NewValidationError(message string) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	cause   error
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is to match both the sentinel and the cause
func (e *CustomError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}
