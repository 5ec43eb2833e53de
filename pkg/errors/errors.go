package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`

	// fault marks integrity/infrastructure failures as opposed to policy refusals.
	fault bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so callers can use errors.Is against the predefined values.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// IsFault reports whether the error is an internal fault rather than a policy refusal.
func (e *Error) IsFault() bool {
	return e != nil && e.fault
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// NewFault creates an Error that is reported as a fault.
func NewFault(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, fault: true}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err, fault: status >= http.StatusInternalServerError}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = NewFault("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrMaintenance          = New("MAINTENANCE_MODE", http.StatusServiceUnavailable, "system is in maintenance mode")
	ErrDeadlineNotSet       = New("DEADLINE_NOT_SET", http.StatusPreconditionFailed, "deadline has not been configured")
	ErrDeadlinePassed       = New("DEADLINE_PASSED", http.StatusPreconditionFailed, "deadline has passed")
	ErrDuplicateEnrollment  = New("DUPLICATE_ENROLLMENT", http.StatusConflict, "already registered for this section")
	ErrCourseTermConflict   = New("COURSE_TERM_CONFLICT", http.StatusConflict, "already registered for this course in the same term")
	ErrSectionFull          = New("SECTION_FULL", http.StatusConflict, "section is full")
	ErrSectionHasEnrollment = New("SECTION_HAS_ENROLLMENTS", http.StatusConflict, "section has enrolled students")
	ErrDuplicateUsername    = New("DUPLICATE_USERNAME", http.StatusConflict, "username already exists")
	ErrDuplicateCourse      = New("DUPLICATE_COURSE", http.StatusConflict, "course code already exists")
	ErrInvalidScore         = New("INVALID_SCORE", http.StatusBadRequest, "score must be between 0 and 100")
	ErrInvalidBoundaries    = New("INVALID_BOUNDARIES", http.StatusBadRequest, "grade boundaries must be 5 strictly descending values between 0 and 100")
	ErrPartialFailure       = New("PARTIAL_FAILURE", http.StatusMultiStatus, "some rows could not be processed")
	ErrInconsistentState    = NewFault("INCONSISTENT_STATE", http.StatusInternalServerError, "unexpected error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// IsFault reports whether err carries an internal fault. Untyped errors count as faults.
func IsFault(err error) bool {
	if err == nil {
		return false
	}
	return FromError(err).IsFault()
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
