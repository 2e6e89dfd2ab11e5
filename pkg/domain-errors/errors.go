// Package domainerrors provides coded errors for the gateway's business
// surface. Stores and infrastructure return sentinel errors (pkg/platform/
// sentinel); services translate them into coded errors here so transports can
// map them to protocol responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error classification.
type Code string

const (
	// CodeValidation covers malformed or out-of-range input caught at the
	// transport boundary.
	CodeValidation Code = "VALIDATION"
	// CodeInvalidInput covers bad arguments to domain constructors.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeUnauthenticated is raised before any network attempt when a session
	// has neither a bearer token nor a credential tuple.
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	// CodeUnauthorized covers gateway callers presenting a bad operator token.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeConfirmationRequired is the guardrail confirmation gate failure.
	CodeConfirmationRequired Code = "CONFIRMATION_REQUIRED"
	// CodeCapExceeded covers bulk, coupon, and discount cap violations. The
	// details payload names the limit and the offending value.
	CodeCapExceeded Code = "CAP_EXCEEDED"
	// CodeFieldNotAllowed is raised when a requested field falls outside a
	// resource's allow-list. Details carry the offending field names.
	CodeFieldNotAllowed Code = "FIELD_NOT_ALLOWED"
	// CodeScopeRequired is raised when a write-affecting call carries no
	// store scope.
	CodeScopeRequired Code = "SCOPE_REQUIRED"
	// CodePlanNotFound covers both unknown and expired plan ids; the store
	// does not distinguish them.
	CodePlanNotFound Code = "PLAN_NOT_FOUND"
	// CodeRateLimited is raised by the purge throttle.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodePlatformError wraps a non-2xx response from the commerce platform.
	CodePlatformError Code = "PLATFORM_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL"
)

// Error is a coded error with an optional structured details payload.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail attaches a key to the details payload and returns the error so
// call sites can chain it.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a
// coded error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DetailsOf returns the structured payload carried by err, or nil.
func DetailsOf(err error) map[string]any {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}
