// Package apperr carries the error taxonomy shared by every handler.
package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidState
	KindPolicyViolation
	KindLocked
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindPolicyViolation:
		return "policy_violation"
	case KindLocked:
		return "locked"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is shown to clients verbatim.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(format string, args ...any) *Error { return newf(KindInvalidInput, format, args...) }
func Unauthenticated(format string, args ...any) *Error {
	return newf(KindUnauthenticated, format, args...)
}
func Forbidden(format string, args ...any) *Error    { return newf(KindForbidden, format, args...) }
func NotFound(format string, args ...any) *Error     { return newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error     { return newf(KindConflict, format, args...) }
func InvalidState(format string, args ...any) *Error { return newf(KindInvalidState, format, args...) }
func PolicyViolation(format string, args ...any) *Error {
	return newf(KindPolicyViolation, format, args...)
}
func Locked(format string, args ...any) *Error { return newf(KindLocked, format, args...) }

// Wrap classifies err under kind keeping it in the chain.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFoundIfNoRows turns sql.ErrNoRows into a NotFound error and passes anything else through.
func NotFoundIfNoRows(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound(format, args...)
	}
	return err
}

// KindOf returns the kind of the first *Error in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput, KindInvalidState, KindPolicyViolation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "not found"
	}
	return err.Error()
}
