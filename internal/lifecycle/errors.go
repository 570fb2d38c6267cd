package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies why an engine operation failed. Callers map kinds to
// user-facing messages; only KindStorageUnavailable is worth a retry.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindExpired            Kind = "expired"
	KindConflict           Kind = "conflict"
	KindInvalidState       Kind = "invalid_state"
	KindInvalidArgument    Kind = "invalid_argument"
	KindStorageUnavailable Kind = "storage_unavailable"
)

func (k Kind) Retryable() bool {
	return k == KindStorageUnavailable
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrExpired            = &Error{Kind: KindExpired}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrExpired)
// works on errors built by the engine.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of an engine error, or KindStorageUnavailable
// for anything the engine did not classify.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageUnavailable
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func storageError(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Op: op, Msg: "storage unavailable", Err: err}
}
