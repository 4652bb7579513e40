package services

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures the way callers need to react to them.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation_error"
	KindAuth        ErrorKind = "auth_error"
	KindNotFound    ErrorKind = "not_found"
	KindPermission  ErrorKind = "permission_denied"
	KindRateLimited ErrorKind = "rate_limited"
	KindUpstream    ErrorKind = "upstream_error"
)

// Retryable reports whether the caller may retry the same request with backoff.
func (k ErrorKind) Retryable() bool {
	return k == KindUpstream || k == KindRateLimited
}

// Error is the only error type the engine hands to callers. Msg is safe to show to
// the client; Err keeps the internal cause for logs and is never serialized.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Msg == ""
}

// Sentinels for errors.Is checks
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrPermission  = &Error{Kind: KindPermission}
	ErrRateLimited = &Error{Kind: KindRateLimited}
	ErrUpstream    = &Error{Kind: KindUpstream}
)

// ValidationError reports a malformed request. The message is shown to the client.
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing user or resource.
func NotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// AuthError reports a request without a resolvable user.
func AuthError(msg string) *Error {
	return &Error{Kind: KindAuth, Msg: msg}
}

// PermissionError models a capability the user refused on their device (location, radio access).
// The engine never produces it from storage; clients use it to tell "you said no" apart from a server failure.
func PermissionError(msg string) *Error {
	return &Error{Kind: KindPermission, Msg: msg}
}

// RateLimitedError reports a caller over their discovery budget.
func RateLimitedError(msg string) *Error {
	return &Error{Kind: KindRateLimited, Msg: msg}
}

// UpstreamError wraps a store or oracle failure. A deadline hit is reported as a timeout.
func UpstreamError(op string, err error) *Error {
	msg := "a dependency is unavailable, try again later"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "a dependency timed out, try again later"
	}
	return &Error{Kind: KindUpstream, Msg: msg, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
