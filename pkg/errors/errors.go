package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodePlanLimit     Code = "PLAN_LIMIT_REACHED"
	CodePlanRequired  Code = "PLAN_UPGRADE_REQUIRED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is the public face of a Code. EchoMessage lets the caller's own
// message reach the client instead of PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	EchoMessage    bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", true, true},
	CodeUnauthorized:  {http.StatusUnauthorized, false, "authentication required", false, true},
	CodeForbidden:     {http.StatusForbidden, false, "access denied", false, true},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", false, true},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", false, true},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", true, true},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", true, true},
	CodeRateLimit:     {http.StatusTooManyRequests, true, "rate limit exceeded", false, true},
	CodePlanLimit:     {http.StatusPaymentRequired, false, "subscription limit reached for current plan", true, true},
	CodePlanRequired:  {http.StatusPaymentRequired, false, "feature requires the pro plan", false, true},
	CodeInternal:      {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:    {http.StatusServiceUnavailable, true, "dependency unavailable", true, false},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed error every service layer returns to handlers.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Field builds a validation error pointing at one request field.
func Field(field, message string) *Error {
	return New(CodeValidation, message).WithDetails(map[string]string{"field": field})
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost typed error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether a worker should retry after err. Untyped
// errors are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.code).Retryable
}
