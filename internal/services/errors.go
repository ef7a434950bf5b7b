package services

import (
	"errors"
	"fmt"
	"time"
)

// Kind groups error codes by who is at fault and how callers should react.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindPermission
	KindState
	KindNotFound
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindInfrastructure:
		return "infrastructure"
	}
	return "unknown"
}

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeDuplicateIdentity   Code = "DUPLICATE_IDENTITY"
	CodeInvalidTimeRange    Code = "INVALID_TIME_RANGE"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeAccountLocked       Code = "ACCOUNT_LOCKED"
	CodeAccountInactive     Code = "ACCOUNT_INACTIVE"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeUnauthorizedAccess  Code = "UNAUTHORIZED_ACCESS"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeSlotConflict        Code = "SLOT_CONFLICT"
	CodeNoOp                Code = "NO_OP"
	CodeFacilityUnavailable Code = "FACILITY_UNAVAILABLE"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInternal            Code = "INTERNAL"
)

// Error is the single error type returned by the booking core. Message is
// always safe to show to the end user; Err is for logs only.
type Error struct {
	Kind       Kind
	Code       Code
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that errors.Is works against the sentinels below
// even when the message was customised.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrValidation          = &Error{Kind: KindValidation, Code: CodeValidation, Message: "Invalid input"}
	ErrDuplicateIdentity   = &Error{Kind: KindValidation, Code: CodeDuplicateIdentity, Message: "Username or email already exists"}
	ErrInvalidTimeRange    = &Error{Kind: KindValidation, Code: CodeInvalidTimeRange, Message: "End time must be after start time"}
	ErrInvalidCredentials  = &Error{Kind: KindAuth, Code: CodeInvalidCredentials, Message: "Invalid credentials"}
	ErrAccountLocked       = &Error{Kind: KindAuth, Code: CodeAccountLocked, Message: "Account locked"}
	ErrAccountInactive     = &Error{Kind: KindAuth, Code: CodeAccountInactive, Message: "Account is deactivated"}
	ErrRateLimited         = &Error{Kind: KindAuth, Code: CodeRateLimited, Message: "Too many attempts. Try again in 5 minutes."}
	ErrUnauthenticated     = &Error{Kind: KindAuth, Code: CodeUnauthenticated, Message: "Please login first"}
	ErrForbidden           = &Error{Kind: KindPermission, Code: CodeForbidden, Message: "You do not have permission to modify this booking"}
	ErrUnauthorizedAccess  = &Error{Kind: KindPermission, Code: CodeUnauthorizedAccess, Message: "Access denied"}
	ErrInvalidState        = &Error{Kind: KindState, Code: CodeInvalidState, Message: "Booking cannot be changed in its current state"}
	ErrSlotConflict        = &Error{Kind: KindState, Code: CodeSlotConflict, Message: "Time slot already booked"}
	ErrNoOp                = &Error{Kind: KindState, Code: CodeNoOp, Message: "Nothing to update"}
	ErrFacilityUnavailable = &Error{Kind: KindState, Code: CodeFacilityUnavailable, Message: "Facility not available"}
	ErrNotFound            = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "Not found"}
	ErrInternal            = &Error{Kind: KindInfrastructure, Code: CodeInternal, Message: "Something went wrong. Please try again later."}
)

// withMessage copies a sentinel with a more specific user-facing message.
func withMessage(base *Error, msg string) *Error {
	e := *base
	e.Message = msg
	return &e
}

func validationError(msg string) *Error {
	return withMessage(ErrValidation, msg)
}

// internalError wraps an infrastructure failure behind a generic message.
func internalError(msg string, err error) *Error {
	e := *ErrInternal
	if msg != "" {
		e.Message = msg
	}
	e.Err = err
	return &e
}

// AsError converts any error to *Error; unknown errors become infrastructure errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError("", err)
}

// Result is the uniform response shape of every public core operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func OK(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// Fail renders err without leaking internals.
func Fail(err error) Result {
	return Result{Success: false, Message: AsError(err).Message}
}

// NewResult builds a Result from an operation's outcome.
func NewResult(message string, data any, err error) Result {
	if err != nil {
		return Fail(err)
	}
	return OK(message, data)
}
