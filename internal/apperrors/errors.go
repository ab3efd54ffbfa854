// Package apperrors defines the error taxonomy shared by the indexer. Every
// error that crosses a component boundary carries an explicit Kind so callers
// never have to sniff error messages to decide how to react.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strings"
	"syscall"
)

// Kind classifies an error for retry and HTTP mapping purposes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindRateLimit
	KindDatabase
	KindTransientNetwork
	KindPayloadTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	case KindDatabase:
		return "database"
	case KindTransientNetwork:
		return "transient_network"
	case KindPayloadTooLarge:
		return "payload_too_large"
	default:
		return "internal"
	}
}

// Default codes rendered in the JSON error body.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeNotFound      = "NOT_FOUND"
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeDatabase      = "DATABASE_ERROR"
	CodeTransient     = "TRANSIENT_NETWORK_ERROR"
	CodeInternal      = "INTERNAL_ERROR"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeTooLarge      = "PAYLOAD_TOO_LARGE"
)

// Error is the concrete error type used across the indexer.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Transient marks a Database error whose cause is a connection-level
	// failure. Only such database errors are retried.
	Transient bool
	Err       error

	pcs []uintptr
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two *Error values by Kind and Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// StatusCode maps the error kind onto an HTTP status.
func (e *Error) StatusCode() int {
	return StatusFor(e.Kind)
}

// Stack renders the call stack captured when the error was constructed.
func (e *Error) Stack() string {
	if len(e.pcs) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(e.pcs)
	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(kind Kind, code, msg string, err error) *Error {
	if code == "" {
		code = defaultCode(kind)
	}
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Code: code, Message: msg, Err: err, pcs: pcs[:n]}
}

func defaultCode(kind Kind) string {
	switch kind {
	case KindValidation:
		return CodeValidation
	case KindUnauthorized:
		return CodeUnauthorized
	case KindNotFound:
		return CodeNotFound
	case KindRateLimit:
		return CodeRateLimit
	case KindDatabase:
		return CodeDatabase
	case KindTransientNetwork:
		return CodeTransient
	case KindPayloadTooLarge:
		return CodeTooLarge
	default:
		return CodeInternal
	}
}

// New builds an error of the given kind. An empty code selects the kind's
// default code.
func New(kind Kind, code, msg string) *Error {
	return newError(kind, code, msg, nil)
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, code, msg string) *Error {
	return newError(kind, code, msg, err)
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, "", fmt.Sprintf(format, args...), nil)
}

func Unauthorized(msg string) *Error {
	return newError(KindUnauthorized, "", msg, nil)
}

// NotFound builds a not-found error with a domain specific code such as
// ARENA_NOT_FOUND.
func NotFound(code, format string, args ...any) *Error {
	return newError(KindNotFound, code, fmt.Sprintf(format, args...), nil)
}

func RateLimited(msg string) *Error {
	return newError(KindRateLimit, "", msg, nil)
}

// Database wraps a store failure. transient reports whether the cause was
// classified as a connection-level failure.
func Database(err error, transient bool, format string, args ...any) *Error {
	e := newError(KindDatabase, "", fmt.Sprintf(format, args...), err)
	e.Transient = transient
	return e
}

func TransientNetwork(err error, msg string) *Error {
	return newError(KindTransientNetwork, "", msg, err)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Retryable reports whether err is worth another attempt: transient network
// failures always are, database failures only when their cause was transient.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransientNetwork:
		return true
	case KindDatabase:
		return e.Transient
	default:
		return false
	}
}

// StatusFor maps a kind onto an HTTP status code.
func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// IsTransientCause reports whether a raw I/O error is a connection-level
// failure: connection reset or refused, a timeout, or a DNS lookup failure.
func IsTransientCause(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
