package engine

import (
	"errors"
	"fmt"
)

// Kind classifies the errors HandleTurn and the session operations report.
type Kind string

const (
	// KindValidation rejects a malformed request before any work is done.
	KindValidation Kind = "validation"

	// KindNotFound reports an unknown or foreign session.
	KindNotFound Kind = "not_found"

	// KindBusy reports another turn in flight for the same session. The
	// client should resubmit.
	KindBusy Kind = "busy"

	// KindUnavailable reports an infrastructure failure that outlasted its
	// retries.
	KindUnavailable Kind = "unavailable"

	// KindFailed reports a provider failure that retrying will not fix.
	KindFailed Kind = "failed"
)

// Sentinels for errors.Is.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrBusy        = &Error{Kind: KindBusy}
	ErrUnavailable = &Error{Kind: KindUnavailable}
	ErrFailed      = &Error{Kind: KindFailed}
)

// Error is the only error type the engine returns to callers. Message is
// safe to show to end users; Err is for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindFailed for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFailed
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "service temporarily unavailable, please try again", Err: err}
}

func failed(err error) *Error {
	return &Error{Kind: KindFailed, Message: "the assistant could not answer, please try again", Err: err}
}

func notFound() *Error {
	return &Error{Kind: KindNotFound, Message: "session not found"}
}
