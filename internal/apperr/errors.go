// Package apperr carries the error taxonomy shared by the guard, the booking
// pipeline and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Kind string

const (
	KindSecurity    Kind = "security"
	KindLockout     Kind = "lockout"
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindPersistence Kind = "persistence"
	// KindUnauthenticated covers wrong credentials and missing admin sessions.
	KindUnauthenticated Kind = "unauthenticated"
	KindUnknown         Kind = "unknown"
)

// Error is a classified failure. Message is safe to show to end users;
// Cause and Op are for logs only.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Fields holds per-field messages for KindValidation.
	Fields map[string]string
	// RetryAfter is set for KindLockout.
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s", e.Kind, e.Op, e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap classifies err. An err that is already an *Error keeps its kind.
func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// IsKind reports whether the first *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

const (
	msgSecurity    = "Your request could not be verified. Please refresh the page and try again."
	msgNotFound    = "We could not process your booking. Please review your selection and try again."
	msgPersistence = "Something went wrong on our side. Please try again later."
	msgValidation  = "Please correct the highlighted fields."
	msgCredentials = "Invalid username or password."
)

// Security reports a CSRF or rate-limit rejection. The user-facing message
// is identical for every cause.
func Security(op string, cause error) *Error {
	return &Error{Kind: KindSecurity, Op: op, Message: msgSecurity, Cause: cause}
}

// Lockout reports a temporarily locked login identifier.
func Lockout(op string, remaining time.Duration) *Error {
	return &Error{
		Kind:       KindLockout,
		Op:         op,
		Message:    fmt.Sprintf("Too many failed attempts. Please try again in %d minute(s).", RemainingMinutes(remaining)),
		RetryAfter: remaining,
	}
}

// Validation carries per-field messages.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msgValidation, Fields: fields}
}

// NotFound never includes the looked-up identifier in Message.
func NotFound(op string, cause error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: msgNotFound, Cause: cause}
}

// Unauthenticated never says whether the login or the password was wrong.
func Unauthenticated(op string, cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Op: op, Message: msgCredentials, Cause: cause}
}

func Persistence(op string, cause error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Message: msgPersistence, Cause: cause}
}

// RemainingMinutes rounds a wait time up to whole minutes, minimum 1.
func RemainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	m := int((d + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}
