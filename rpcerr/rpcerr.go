// Package rpcerr implements the authoritative error taxonomy and its
// mapping to HTTP-style status codes (spec §7). Handlers throw (return)
// *Error values; the error_handler middleware maps them to a response
// body, and maps any other error to 500; the last-resort recovery
// middleware turns a panic into an Internal *Error.
package rpcerr

import "fmt"

// Kind is one of the fixed taxonomy entries from §7.
type Kind string

const (
	KindBadRequest         Kind = "BadRequestError"
	KindUnauthorized       Kind = "UnauthorizedError"
	KindForbidden          Kind = "ForbiddenError"
	KindNotFound           Kind = "NotFoundError"
	KindConflict           Kind = "ConflictError"
	KindValidation         Kind = "ValidationError"
	KindRateLimit          Kind = "RateLimitError"
	KindServiceUnavailable Kind = "ServiceUnavailableError"
	KindTimeout            Kind = "TimeoutError"
	KindInternal           Kind = "InternalError"
)

// statusByKind is the authoritative Kind → HTTP status mapping from §7.
var statusByKind = map[Kind]int{
	KindBadRequest:         400,
	KindUnauthorized:       401,
	KindForbidden:          403,
	KindNotFound:           404,
	KindConflict:           409,
	KindValidation:         422,
	KindRateLimit:          429,
	KindServiceUnavailable: 503,
	KindTimeout:            504,
	KindInternal:           500,
}

// Error is the typed error every handler and middleware communicates
// through. Message is the human-readable text surfaced as the response
// body's "error" field; Kind's string is the stable identifier surfaced
// as "type".
type Error struct {
	Kind             Kind
	Message          string
	RetryAfterSecs   int                 // only meaningful for KindRateLimit
	ValidationErrors map[string][]string // only meaningful for KindValidation
	Cause            error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP-style status for this error's Kind.
func (e *Error) Status() int {
	return StatusForKind(e.Kind)
}

// StatusForKind returns the authoritative status for a Kind, defaulting
// to 500 for any value outside the fixed taxonomy — "any other
// exception" per §7.
func StatusForKind(k Kind) int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return 500
}

// StatusFor returns the status an arbitrary error should be reported
// with: the Kind-specific status for an *Error, 500 otherwise.
func StatusFor(err error) int {
	var e *Error
	if As(err, &e) {
		return e.Status()
	}
	return 500
}

// As is a small indirection over errors.As kept local so callers don't
// need a second import in the common case of unwrapping an *Error.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func BadRequest(msg string) *Error   { return New(KindBadRequest, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func Internal(msg string) *Error     { return New(KindInternal, msg) }

func ServiceUnavailable(msg string) *Error {
	return New(KindServiceUnavailable, msg)
}

func Timeout(msg string) *Error {
	return New(KindTimeout, msg)
}

func RateLimit(msg string, retryAfterSecs int) *Error {
	return &Error{Kind: KindRateLimit, Message: msg, RetryAfterSecs: retryAfterSecs}
}

func Validation(msg string, fieldErrors map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, ValidationErrors: fieldErrors}
}

// Body returns the user-visible response body fields for this error,
// shaped per §7's per-Kind body field list.
func (e *Error) Body() map[string]any {
	body := map[string]any{
		"error": e.Message,
		"type":  string(e.Kind),
	}
	if e.Kind == KindValidation && e.ValidationErrors != nil {
		body["validation_errors"] = e.ValidationErrors
	}
	if e.Kind == KindRateLimit {
		body["retry_after"] = e.RetryAfterSecs
	}
	return body
}
