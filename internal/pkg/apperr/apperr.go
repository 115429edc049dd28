// Package apperr defines the typed error used across domain services.
// Handlers map it to HTTP responses through errorhandler.Respond.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	NotFound     Kind = "not_found"
	Forbidden    Kind = "forbidden"
	Conflict     Kind = "conflict"
	InvalidState Kind = "invalid_state"
	Gone         Kind = "gone"
	RateLimited  Kind = "rate_limited"
	Cooldown     Kind = "cooldown"
	SelfReport   Kind = "self_report"
	Validation   Kind = "validation"
	Internal     Kind = "internal"
)

// Error is a domain error with a public message.
// Fields carries per-field validation messages, Meta extra public details.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Meta    map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors carrying the same code, so sentinels still match
// after WithMeta has produced a copy.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e == t
}

// WithMeta returns a copy of e carrying key=value in Meta.
func (e *Error) WithMeta(key, value string) *Error {
	cp := *e
	cp.Meta = make(map[string]string, len(e.Meta)+1)
	for k, v := range e.Meta {
		cp.Meta[k] = v
	}
	cp.Meta[key] = value
	return &cp
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func ValidationErr(msg string, fields map[string]string) *Error {
	return &Error{Kind: Validation, Code: "VALIDATION_ERROR", Message: msg, Fields: fields}
}

// Wrap hides err behind a generic internal error.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Internal, Code: "INTERNAL_ERROR", Message: msg, Err: err}
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns Internal for errors that are not *Error.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case InvalidState, SelfReport, Validation:
		return http.StatusBadRequest
	case Gone:
		return http.StatusGone
	case RateLimited, Cooldown:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
